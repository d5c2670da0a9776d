package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pydawan/pydabot/internal/core"
	"github.com/pydawan/pydabot/internal/logger"
	"github.com/pydawan/pydabot/internal/metrics"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	configFile string

	startCmd = &cobra.Command{
		Use:   "start",
		Short: "Connect to IRC and run the bot",
		Long:  "Connect to the configured IRC server, join channels and run until SIGINT or SIGTERM",
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := core.LoadConfig(configFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			if err := initLogger(config); err != nil {
				return err
			}

			logger.WithFields(logrus.Fields{
				"config_file": configFile,
				"log_level":   config.Logging.Level,
				"log_file":    config.Logging.File,
			}).Info("logger-initialized")

			b, err := core.NewBotFromConfig(config)
			if err != nil {
				return fmt.Errorf("failed to create bot: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runBot(ctx, b, config.Metrics.Listen)
		},
	}
)

// lifecycle is the part of core.Bot the start command drives
type lifecycle interface {
	Start() error
	Stop() error
}

// runBot starts b, serves metrics on listen (when set) and stops b once ctx is done
func runBot(ctx context.Context, b lifecycle, listen string) error {
	metricsErr := make(chan error, 1)
	if listen != "" {
		metrics.Register()
		go func() {
			metricsErr <- metrics.Serve(ctx, listen)
		}()
	}

	if err := b.Start(); err != nil {
		return fmt.Errorf("failed to start bot: %w", err)
	}

	select {
	case <-ctx.Done():
		logger.Info("shutdown-signal-received")
	case err := <-metricsErr:
		if err != nil {
			logger.WithFields(logrus.Fields{
				"listen": listen,
				"error":  err,
			}).Error("metrics-server-failed")
		}
		<-ctx.Done()
		logger.Info("shutdown-signal-received")
	}

	if err := b.Stop(); err != nil && !errors.Is(err, core.ErrNotRunning) {
		return fmt.Errorf("failed to stop bot: %w", err)
	}
	logger.Info("pydabot-stopped")
	return nil
}

func initLogger(config *core.Config) error {
	logConfig := logger.Config{
		Level:        config.Logging.Level,
		File:         config.Logging.File,
		MaxSize:      config.Logging.MaxSize,
		MaxBackups:   config.Logging.MaxBackups,
		MaxAge:       config.Logging.MaxAge,
		Compress:     config.Logging.Compress,
		EnableStdout: config.Logging.EnableStdout,
	}
	if err := logger.InitLogger(logConfig); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

func init() {
	startCmd.Flags().StringVarP(&configFile, "config", "c", "config.yaml", "Configuration file path")
}
