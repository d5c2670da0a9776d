package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pydawan/pydabot/internal/announce"
	"github.com/pydawan/pydabot/internal/irc"
	"github.com/pydawan/pydabot/internal/listener"
	"github.com/pydawan/pydabot/internal/logger"
	"github.com/pydawan/pydabot/internal/metrics"
	"github.com/pydawan/pydabot/pkg/constants"
	"github.com/sirupsen/logrus"
)

var (
	// ErrAlreadyRunning is returned by Start when a connection is already active
	ErrAlreadyRunning = errors.New("bot is already running")
	// ErrNotRunning is returned by Stop and SendMessage when there is no connection
	ErrNotRunning = errors.New("bot is not running")
)

// Connection outcomes recorded when an event loop ends
const (
	outcomeClosed = "closed"
	outcomeFailed = "failed"
	outcomeForced = "forced"
	outcomePanic  = "panic"
)

// Dialer builds a connection for one session. irc.Dial is the default.
type Dialer func(cfg irc.Config) irc.Conn

// Bot owns one IRC connection at a time, the listeners that react to it, and the
// announcement schedule that runs while it is up.
//
// Listeners and channels are snapshotted by Start: changes made while running take
// effect on the next Start.
type Bot struct {
	// lifecycle serializes Start and Stop
	lifecycle sync.Mutex

	mu        sync.RWMutex
	identity  Identity
	channels  map[string]struct{}
	listeners map[listener.Listener]struct{}
	state     State
	conn      irc.Conn
	done      chan struct{}
	runID     string
	forced    bool

	dial        Dialer
	gracePeriod time.Duration
	quitMessage string
	debug       bool
	delay       time.Duration
	period      time.Duration
	worker      *announce.Worker
	scheduler   *announce.Scheduler
}

// Option configures a Bot
type Option func(*Bot)

// WithDialer replaces the connection factory
func WithDialer(dial Dialer) Option {
	return func(b *Bot) {
		b.dial = dial
	}
}

// WithGracePeriod sets how long Stop waits for the server to acknowledge QUIT
func WithGracePeriod(d time.Duration) Option {
	return func(b *Bot) {
		if d > 0 {
			b.gracePeriod = d
		}
	}
}

// WithQuitMessage sets the QUIT reason
func WithQuitMessage(msg string) Option {
	return func(b *Bot) {
		b.quitMessage = msg
	}
}

// WithDebug enables protocol debug logging on new connections
func WithDebug(debug bool) Option {
	return func(b *Bot) {
		b.debug = debug
	}
}

// WithWorker sets the announcement worker
func WithWorker(w *announce.Worker) Option {
	return func(b *Bot) {
		b.worker = w
	}
}

// WithSchedule sets the announcement delay and period
func WithSchedule(delay, period time.Duration) Option {
	return func(b *Bot) {
		b.delay = delay
		if period > 0 {
			b.period = period
		}
	}
}

// NewBot creates an idle bot
func NewBot(identity Identity, opts ...Option) *Bot {
	b := &Bot{
		identity:    identity,
		channels:    make(map[string]struct{}),
		listeners:   make(map[listener.Listener]struct{}),
		state:       StateIdle,
		dial:        irc.Dial,
		gracePeriod: constants.DefaultGracePeriod,
		quitMessage: constants.DefaultQuitMessage,
		delay:       constants.DefaultAnnouncementDelay,
		period:      constants.DefaultAnnouncementPeriod,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.worker == nil {
		b.worker, _ = announce.NewWorker(nil)
	}
	b.scheduler = announce.NewScheduler(b.worker)
	return b
}

// Start connects using the current identity, channels and listeners. It returns once
// the event loop has been launched; registration with the server happens
// asynchronously and connection failures are reported to listeners via OnDisconnect.
func (b *Bot) Start() error {
	b.lifecycle.Lock()
	defer b.lifecycle.Unlock()

	b.mu.RLock()
	if b.state != StateIdle {
		b.mu.RUnlock()
		return ErrAlreadyRunning
	}
	cfg := irc.Config{
		Hostname:    b.identity.Hostname,
		Port:        b.identity.Port,
		Nickname:    b.identity.Nickname,
		Password:    b.identity.Password,
		UseTLS:      b.identity.UseTLS,
		QuitMessage: b.quitMessage,
		Debug:       b.debug,
	}
	channels := b.channelListLocked()
	listeners := b.listenerListLocked()
	b.mu.RUnlock()

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid identity: %w", err)
	}

	conn := b.dial(cfg)
	runID := uuid.NewString()
	server := cfg.Server()
	b.registerCallbacks(conn, server, channels, listeners)

	done := make(chan struct{})
	b.mu.Lock()
	b.conn = conn
	b.done = done
	b.runID = runID
	b.forced = false
	b.state = StateRunning
	b.mu.Unlock()

	b.worker.SetConn(conn)

	logger.WithFields(logrus.Fields{
		"run_id":    runID,
		"server":    server,
		"nick":      cfg.Nickname,
		"channels":  channels,
		"listeners": len(listeners),
	}).Info("bot-starting")

	go b.run(conn, server, listeners, done, runID)

	if err := b.scheduler.Start(context.Background(), b.delay, b.period); err != nil {
		logger.WithFields(logrus.Fields{
			"run_id": runID,
			"error":  err,
		}).Warn("failed-to-schedule-announcements")
	}

	return nil
}

func (b *Bot) registerCallbacks(conn irc.Conn, server string, channels []string, listeners []listener.Listener) {
	conn.OnEvent(irc.EventWelcome, func(e *irc.Event) {
		for _, ch := range channels {
			conn.Join(irc.ChannelOf(ch))
		}
		logger.WithFields(logrus.Fields{
			"server":   server,
			"channels": channels,
		}).Info("bot-connected")
		listener.DispatchConnect(listeners, &listener.ConnectEvent{Server: server, Conn: e.Conn})
	})
	conn.OnEvent(irc.EventPrivmsg, func(e *irc.Event) {
		metrics.MessageReceived()
		listener.DispatchMessage(listeners, listener.NewMessageEvent(e))
	})
	conn.OnEvent(irc.EventPing, func(e *irc.Event) {
		listener.DispatchPing(listeners, listener.NewPingEvent(e))
	})
}

// run drives the event loop until the connection ends, however it ends
func (b *Bot) run(conn irc.Conn, server string, listeners []listener.Listener, done chan struct{}, runID string) {
	defer close(done)

	var err error
	outcome := outcomeClosed
	func() {
		defer func() {
			if r := recover(); r != nil {
				outcome = outcomePanic
				err = fmt.Errorf("event loop panic: %v", r)
				logger.WithFields(logrus.Fields{
					"run_id": runID,
					"panic":  r,
				}).Error("event-loop-panic-recovered")
			}
		}()
		err = conn.Run()
	}()

	if outcome != outcomePanic {
		switch {
		case errors.Is(err, irc.ErrConnectFailed):
			outcome = outcomeFailed
		case b.wasForced():
			outcome = outcomeForced
		}
	}

	fields := logrus.Fields{
		"run_id":  runID,
		"server":  server,
		"outcome": outcome,
	}
	if err != nil {
		fields["error"] = err
	}
	if outcome == outcomeFailed {
		logger.WithFields(fields).Error("bot-connection-failed")
	} else {
		logger.WithFields(fields).Info("bot-disconnected")
	}
	metrics.ConnectionEnded(outcome)

	listener.DispatchDisconnect(listeners, &listener.ConnectEvent{Server: server, Conn: conn, Err: err})
}

func (b *Bot) wasForced() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.forced
}

// Stop sends QUIT and waits up to the grace period for the server to close the
// connection. If it does not, the transport is closed forcibly. Stop always waits for
// the event loop to finish before returning.
func (b *Bot) Stop() error {
	b.lifecycle.Lock()
	defer b.lifecycle.Unlock()

	b.mu.RLock()
	state, conn, done, runID := b.state, b.conn, b.done, b.runID
	b.mu.RUnlock()

	if state == StateIdle || conn == nil {
		return ErrNotRunning
	}

	if err := b.scheduler.Stop(); err != nil && !errors.Is(err, announce.ErrNotScheduled) {
		logger.WithField("error", err).Warn("failed-to-stop-announcements")
	}

	conn.Quit()
	b.setState(StateClosing)

	entry := logger.WithFields(logrus.Fields{
		"run_id":       runID,
		"grace_period": b.gracePeriod.String(),
	})
	entry.Info("bot-quit-sent")

	timer := time.NewTimer(b.gracePeriod)
	defer timer.Stop()

	select {
	case <-done:
	case <-timer.C:
		entry.Warn("quit-not-acknowledged-forcing-disconnect")
		b.mu.Lock()
		b.forced = true
		b.mu.Unlock()
		conn.Disconnect()
		<-done
	}

	b.worker.SetConn(nil)

	b.mu.Lock()
	b.conn = nil
	b.done = nil
	b.state = StateIdle
	b.mu.Unlock()

	entry.Info("bot-stopped")
	return nil
}

// Restart stops the bot if it is running and starts it again
func (b *Bot) Restart() error {
	if err := b.Stop(); err != nil && !errors.Is(err, ErrNotRunning) {
		return fmt.Errorf("failed to stop bot: %w", err)
	}
	return b.Start()
}

func (b *Bot) setState(s State) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = s
}

// State returns the lifecycle state
func (b *Bot) State() State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// IsRunning reports whether the event loop of the current connection is still active
func (b *Bot) IsRunning() bool {
	b.mu.RLock()
	done := b.done
	b.mu.RUnlock()

	if done == nil {
		return false
	}
	select {
	case <-done:
		return false
	default:
		return true
	}
}

// IsConnected reports whether the connection reports itself connected
func (b *Bot) IsConnected() bool {
	b.mu.RLock()
	conn := b.conn
	b.mu.RUnlock()
	return conn != nil && conn.Connected()
}

// SendMessage sends message to channel (bare names get a "#" prefix)
func (b *Bot) SendMessage(channel, message string) error {
	b.mu.RLock()
	conn := b.conn
	b.mu.RUnlock()

	if conn == nil {
		return ErrNotRunning
	}
	conn.Privmsg(irc.ChannelOf(channel), message)
	return nil
}

// Identity returns the connection identity
func (b *Bot) Identity() Identity {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.identity
}

// SetIdentity replaces the connection identity. Only allowed while idle.
func (b *Bot) SetIdentity(id Identity) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != StateIdle {
		return ErrAlreadyRunning
	}
	b.identity = id
	return nil
}

// AddListener registers l. Listeners are compared by identity, so pass pointers.
func (b *Bot) AddListener(l listener.Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners[l] = struct{}{}
}

// RemoveListener unregisters l
func (b *Bot) RemoveListener(l listener.Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.listeners, l)
}

// Listeners returns the registered listeners in no particular order
func (b *Bot) Listeners() []listener.Listener {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.listenerListLocked()
}

func (b *Bot) listenerListLocked() []listener.Listener {
	ls := make([]listener.Listener, 0, len(b.listeners))
	for l := range b.listeners {
		ls = append(ls, l)
	}
	return ls
}

// AddChannel adds a channel to join on connect
func (b *Bot) AddChannel(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.channels[name] = struct{}{}
}

// RemoveChannel removes a channel from the join set
func (b *Bot) RemoveChannel(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.channels, name)
}

// Channels returns the channel names, sorted
func (b *Bot) Channels() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.channelListLocked()
}

func (b *Bot) channelListLocked() []string {
	chs := make([]string, 0, len(b.channels))
	for ch := range b.channels {
		chs = append(chs, ch)
	}
	sort.Strings(chs)
	return chs
}

// Worker returns the announcement worker
func (b *Bot) Worker() *announce.Worker {
	return b.worker
}

// AnnouncementsScheduled reports whether the announcement tick is active
func (b *Bot) AnnouncementsScheduled() bool {
	return b.scheduler.Scheduled()
}
