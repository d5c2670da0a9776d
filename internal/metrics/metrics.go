// Package metrics exposes bot activity counters to Prometheus.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pydabot"

var (
	registerOnce sync.Once

	messagesReceived = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "irc",
			Name:      "messages_received_total",
			Help:      "PRIVMSG events dispatched to listeners.",
		},
	)
	connections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "irc",
			Name:      "connections_total",
			Help:      "Connection attempts by outcome.",
		},
		[]string{"outcome"},
	)
	commandsDispatched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "commands",
			Name:      "dispatched_total",
			Help:      "Commands matched and handled.",
		},
		[]string{"command"},
	)
	moderationActions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "moderation",
			Name:      "responses_total",
			Help:      "Moderation responses sent, by severity.",
		},
		[]string{"severity"},
	)
	announcementsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "announcements",
			Name:      "sent_total",
			Help:      "Announcements sent, by channel.",
		},
		[]string{"channel"},
	)
)

// Register adds the bot collectors to the default registry. Safe to call repeatedly.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(messagesReceived, connections, commandsDispatched, moderationActions, announcementsSent)
	})
}

// MessageReceived counts one inbound PRIVMSG
func MessageReceived() {
	messagesReceived.Inc()
}

// ConnectionEnded records how a connection attempt finished (closed, failed, forced or panic)
func ConnectionEnded(outcome string) {
	connections.WithLabelValues(outcome).Inc()
}

// CommandDispatched counts a command handled by the router
func CommandDispatched(command string) {
	commandsDispatched.WithLabelValues(command).Inc()
}

// ModerationResponse counts a moderation reply by severity
func ModerationResponse(severity string) {
	moderationActions.WithLabelValues(severity).Inc()
}

// AnnouncementSent counts an announcement posted to channel
func AnnouncementSent(channel string) {
	announcementsSent.WithLabelValues(channel).Inc()
}

// Serve runs a /metrics endpoint on addr until ctx is cancelled
func Serve(ctx context.Context, addr string) error {
	Register()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			srv.Close()
			return err
		}
		return nil
	}
}
