package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pydawan/pydabot/internal/core"
	"github.com/pydawan/pydabot/internal/irc"
	"github.com/pydawan/pydabot/pkg/constants"
	"github.com/spf13/cobra"
)

var (
	validateConfigFile string
	validateShow       bool
	validateJSON       bool
)

// ValidationResult represents the validation result
type ValidationResult struct {
	Valid         bool     `json:"valid"`
	Config        string   `json:"config"`
	Server        string   `json:"server,omitempty"`
	Channels      int      `json:"channels"`
	Replies       int      `json:"replies"`
	Moderation    bool     `json:"moderation"`
	Announcements int      `json:"announcements"`
	Errors        []string `json:"errors,omitempty"`
	Warnings      []string `json:"warnings,omitempty"`
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate pydabot configuration file",
	Long: `Validate the pydabot configuration file without connecting.

This command checks:
  - YAML or TOML syntax
  - Required server fields
  - Moderation severities and response formats
  - Announcement weights and schedule

Exit codes:
  0 - Configuration is valid
  1 - Configuration has errors`,
	Run: func(cmd *cobra.Command, args []string) {
		path := validateConfigFile
		if path == "" {
			path = findConfigFile()
		}
		if path == "" {
			fmt.Println("❌ No configuration file found")
			fmt.Println("\nSpecify a config file with --config or ensure one exists at:")
			for _, loc := range defaultConfigLocations() {
				fmt.Printf("  - %s\n", loc)
			}
			os.Exit(1)
		}

		result := validateFile(cmd.OutOrStdout(), path, validateShow)
		outputValidationResult(cmd.OutOrStdout(), result, validateJSON)
		if !result.Valid {
			os.Exit(1)
		}
	},
}

func defaultConfigLocations() []string {
	return []string{
		"config.yaml",
		filepath.Join(os.Getenv("HOME"), ".config/pydabot/config.yaml"),
		"/etc/pydabot/config.yaml",
	}
}

func findConfigFile() string {
	for _, loc := range defaultConfigLocations() {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}
	return ""
}

// validateFile loads path and collects errors and warnings. With show, the loaded
// configuration is printed to w (secrets masked).
func validateFile(w io.Writer, path string, show bool) ValidationResult {
	cfg, err := core.LoadConfig(path)
	if err != nil {
		return ValidationResult{
			Valid:  false,
			Config: path,
			Errors: []string{err.Error()},
		}
	}

	result := ValidationResult{
		Valid:         true,
		Config:        path,
		Server:        irc.Config{Hostname: cfg.Server.Hostname, Port: cfg.Server.Port}.Server(),
		Channels:      len(cfg.Channels),
		Replies:       len(cfg.Commands.Replies),
		Moderation:    cfg.Moderation.Enabled,
		Announcements: len(cfg.Announcements.Items),
		Warnings:      validateConfigDetails(cfg),
	}

	if show {
		printConfig(w, cfg)
	}
	return result
}

func printConfig(w io.Writer, cfg *core.Config) {
	fmt.Fprintf(w, "Server: %s:%d (tls: %v)\n", cfg.Server.Hostname, cfg.Server.Port, cfg.Server.TLS)
	fmt.Fprintf(w, "Nickname: %s\n", cfg.Server.Nickname)
	if cfg.Server.Password != "" {
		fmt.Fprintf(w, "Password: %s\n", maskSecret(cfg.Server.Password))
	}

	fmt.Fprintf(w, "\nChannels (%d):\n", len(cfg.Channels))
	for _, ch := range cfg.Channels {
		fmt.Fprintf(w, "  - %s\n", irc.ChannelOf(ch))
	}

	names := make([]string, 0, len(cfg.Commands.Replies))
	for name := range cfg.Commands.Replies {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Fprintf(w, "\nReplies (%d):\n", len(names))
	for _, name := range names {
		fmt.Fprintf(w, "  - %s%s\n", cfg.Commands.Prefix, name)
	}

	fmt.Fprintf(w, "\nModeration: enabled=%v rules=%d\n", cfg.Moderation.Enabled, len(cfg.Moderation.Rules))

	delay, period := cfg.AnnouncementSchedule()
	fmt.Fprintf(w, "\nAnnouncements (%d, delay %s, period %s):\n", len(cfg.Announcements.Items), delay, period)
	for _, a := range cfg.Announcements.Items {
		fmt.Fprintf(w, "  - %s (weight %g): %s\n", irc.ChannelOf(a.Channel), a.Weight, a.Message)
	}
	fmt.Fprintln(w)
}

func outputValidationResult(w io.Writer, result ValidationResult, jsonFormat bool) {
	if jsonFormat {
		output, err := json.Marshal(result)
		if err != nil {
			fmt.Fprintf(w, "{\"error\": \"failed to marshal json: %v\"}\n", err)
			return
		}
		fmt.Fprintln(w, string(output))
		return
	}

	if result.Valid {
		fmt.Fprintln(w, "✓ Configuration is valid")
		fmt.Fprintf(w, "  - Config: %s\n", result.Config)
		fmt.Fprintf(w, "  - Server: %s\n", result.Server)
		fmt.Fprintf(w, "  - Channels: %d\n", result.Channels)
		fmt.Fprintf(w, "  - Replies: %d\n", result.Replies)
		fmt.Fprintf(w, "  - Moderation: %v\n", result.Moderation)
		fmt.Fprintf(w, "  - Announcements: %d\n", result.Announcements)
	} else {
		fmt.Fprintln(w, "❌ Configuration validation failed:")
		if len(result.Errors) > 0 {
			fmt.Fprintln(w, "\nErrors:")
			for _, errMsg := range result.Errors {
				fmt.Fprintf(w, "  - %s\n", errMsg)
			}
		}
	}

	if len(result.Warnings) > 0 {
		fmt.Fprintln(w, "\n⚠️  Warnings:")
		for _, warning := range result.Warnings {
			fmt.Fprintf(w, "  - %s\n", warning)
		}
	}
}

// validateConfigDetails reports settings that load fine but are probably mistakes
func validateConfigDetails(cfg *core.Config) []string {
	var warnings []string

	if len(cfg.Channels) == 0 {
		warnings = append(warnings, "No channels configured - the bot will only answer private messages")
	}

	joined := make(map[string]bool, len(cfg.Channels))
	for _, ch := range cfg.Channels {
		joined[strings.ToLower(irc.ChannelOf(ch))] = true
	}
	for _, a := range cfg.Announcements.Items {
		ch := irc.ChannelOf(a.Channel)
		if !joined[strings.ToLower(ch)] {
			warnings = append(warnings, fmt.Sprintf("Announcement channel %s is not in channels - the server may reject it", ch))
		}
	}

	if cfg.Moderation.Enabled && len(cfg.Moderation.Rules) == 0 {
		warnings = append(warnings, "Moderation is enabled but has no rules")
	}

	if cfg.Server.Password != "" && !cfg.Server.TLS {
		warnings = append(warnings, "Server password is sent without TLS")
	}

	return warnings
}

// maskSecret hides all but the ends of a secret
func maskSecret(secret string) string {
	if len(secret) < constants.MinSecretLengthForMasking {
		return "****"
	}
	return secret[:constants.SecretMaskPrefixLength] + "****" + secret[len(secret)-constants.SecretMaskSuffixLength:]
}

func init() {
	validateCmd.Flags().StringVarP(&validateConfigFile, "config", "c", "", "Configuration file path")
	validateCmd.Flags().BoolVar(&validateShow, "show", false, "Show full configuration details")
	validateCmd.Flags().BoolVar(&validateJSON, "json", false, "Output in JSON format")
}
