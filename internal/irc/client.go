package irc

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/pydawan/pydabot/internal/logger"
	"github.com/pydawan/pydabot/pkg/constants"
	"github.com/sirupsen/logrus"
	ircevent "github.com/thoj/go-ircevent"
)

var (
	// ErrClosed is returned by Run when the connection was force-closed
	ErrClosed = errors.New("irc connection closed")
	// ErrConnectFailed wraps errors from the initial dial and registration
	ErrConnectFailed = errors.New("irc connect failed")
)

// Client implements Conn on top of github.com/thoj/go-ircevent.
//
// A Client serves exactly one connection attempt: the library's own reconnect loop
// is not used, so Run returns as soon as the server goes away. The socket to the
// server is owned by the Client (see relay), so Disconnect takes effect at once even
// while the library is blocked reading from a silent server.
//
// The library's built-in PING handler is removed; PONGs come from listener.Pong.
type Client struct {
	cfg  Config
	conn *ircevent.Connection

	// mu guards connected and serializes sends against teardown, which closes the
	// library's outbound queue
	mu        sync.RWMutex
	connected bool
	relay     *relay

	closed       chan struct{}
	closeOnce    sync.Once
	teardownOnce sync.Once
}

// NewClient prepares a connection. No network I/O happens until Run.
func NewClient(cfg Config) *Client {
	username := cfg.Username
	if username == "" {
		username = cfg.Nickname
	}

	conn := ircevent.IRC(cfg.Nickname, username)
	conn.Password = cfg.Password
	conn.QuitMessage = cfg.QuitMessage
	conn.Debug = cfg.Debug
	conn.VerboseCallbackHandler = cfg.Debug
	conn.Log = logger.StdLogger(logrus.DebugLevel)
	conn.ClearCallback(EventPing)

	return &Client{
		cfg:    cfg,
		conn:   conn,
		closed: make(chan struct{}),
	}
}

// Dial is the default connection factory used by the bot
func Dial(cfg Config) Conn {
	return NewClient(cfg)
}

// OnEvent registers fn for events with the given code
func (c *Client) OnEvent(code string, fn func(*Event)) {
	c.conn.AddCallback(code, func(ev *ircevent.Event) {
		fn(&Event{
			Code:      ev.Code,
			Nick:      ev.Nick,
			User:      ev.User,
			Host:      ev.Host,
			Arguments: ev.Arguments,
			Conn:      c,
		})
	})
}

// Run connects and blocks until the server closes the connection or Disconnect is called
func (c *Client) Run() error {
	if c.isClosed() {
		return ErrClosed
	}

	server := c.cfg.Server()
	logger.WithFields(logrus.Fields{
		"server": server,
		"nick":   c.cfg.Nickname,
		"tls":    c.cfg.UseTLS,
	}).Info("irc-connecting")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-c.closed:
			cancel()
		case <-ctx.Done():
		}
	}()

	r, err := dialRelay(ctx, c.cfg)
	if err != nil {
		if c.isClosed() {
			return ErrClosed
		}
		return fmt.Errorf("%w: %s: %w", ErrConnectFailed, server, err)
	}

	// Held across Connect: callbacks fired by the first server lines wait here
	// instead of finding the client not yet connected.
	c.mu.Lock()
	if c.isClosed() {
		c.mu.Unlock()
		r.Close()
		return ErrClosed
	}
	c.relay = r
	if err := c.conn.Connect(r.Addr()); err != nil {
		c.mu.Unlock()
		r.Close()
		return fmt.Errorf("%w: %s: %w", ErrConnectFailed, server, err)
	}
	c.connected = true
	c.mu.Unlock()
	defer c.teardown()

	select {
	case err := <-c.conn.ErrorChan():
		logger.WithFields(logrus.Fields{
			"server": server,
			"error":  err,
		}).Info("irc-connection-ended")
		return err
	case <-c.closed:
		return ErrClosed
	}
}

// Quit sends QUIT; the server is expected to close the connection in response
func (c *Client) Quit() {
	c.send(c.conn.Quit)
}

// Disconnect closes the transport without waiting for the server. Run returns
// ErrClosed right after.
func (c *Client) Disconnect() {
	c.closeOnce.Do(func() { close(c.closed) })
	c.markDisconnected()
}

// Connected reports whether the transport is up
func (c *Client) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// Privmsg sends a message to target, one PRIVMSG per line. Dropped when not connected.
func (c *Client) Privmsg(target, message string) {
	lines := SplitMessage(message, constants.MaxMessageLength)
	sent := c.send(func() {
		for _, line := range lines {
			c.conn.Privmsg(target, line)
		}
	})
	if !sent {
		logger.WithField("target", target).Debug("irc-privmsg-dropped-not-connected")
		return
	}
	if len(lines) > 1 {
		logger.WithFields(logrus.Fields{
			"target": target,
			"length": len(message),
			"lines":  len(lines),
		}).Debug("splitting-long-message")
	}
}

// SendRaw sends a raw line. Dropped when not connected.
func (c *Client) SendRaw(line string) {
	c.send(func() { c.conn.SendRaw(line) })
}

// Join joins channel
func (c *Client) Join(channel string) {
	c.send(func() { c.conn.Join(channel) })
}

// send runs fn while the connection is known to be up. Teardown waits for it.
func (c *Client) send(fn func()) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.connected {
		return false
	}
	fn()
	return true
}

func (c *Client) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// markDisconnected stops further sends and closes the sockets
func (c *Client) markDisconnected() {
	c.mu.Lock()
	c.connected = false
	r := c.relay
	c.mu.Unlock()

	if r != nil {
		r.Close()
	}
}

func (c *Client) teardown() {
	c.teardownOnce.Do(func() {
		c.markDisconnected()
		c.conn.Disconnect()
	})
}
