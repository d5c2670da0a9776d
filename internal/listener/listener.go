// Package listener defines the pluggable behaviors that react to IRC events.
//
// A behavior implements Listener. Most embed Adapter, which answers every event
// with a no-op, and override only the events they care about:
//
//	type Greeter struct{ listener.Adapter }
//
//	func (g *Greeter) OnMessage(e *listener.MessageEvent) {
//		if e.Message == "hi" {
//			e.Respond("hello " + e.Nick)
//		}
//	}
//
// # Threading
//
// Callbacks run inline on the connection's event loop. They may be invoked
// concurrently with each other and must not block for long: a slow listener delays
// every event behind it.
package listener

import (
	"fmt"

	"github.com/pydawan/pydabot/internal/irc"
	"github.com/pydawan/pydabot/internal/logger"
	"github.com/sirupsen/logrus"
)

// Listener receives one callback per event kind
type Listener interface {
	OnConnect(e *ConnectEvent)
	OnDisconnect(e *ConnectEvent)
	OnMessage(e *MessageEvent)
	OnPing(e *PingEvent)
}

// Adapter implements Listener with no-ops
type Adapter struct{}

func (Adapter) OnConnect(*ConnectEvent)    {}
func (Adapter) OnDisconnect(*ConnectEvent) {}
func (Adapter) OnMessage(*MessageEvent)    {}
func (Adapter) OnPing(*PingEvent)          {}

// MessageEvent is a PRIVMSG sent to a channel or to the bot
type MessageEvent struct {
	Nick    string
	User    string
	Host    string
	Target  string // channel, or the bot's nick for private messages
	Message string
	Conn    irc.Sender
}

// NewMessageEvent converts a PRIVMSG protocol event
func NewMessageEvent(e *irc.Event) *MessageEvent {
	return &MessageEvent{
		Nick:    e.Nick,
		User:    e.User,
		Host:    e.Host,
		Target:  e.Target(),
		Message: e.Message(),
		Conn:    e.Conn,
	}
}

// Respond sends text back to where the message came from
func (e *MessageEvent) Respond(text string) {
	if e.Conn == nil {
		return
	}
	e.Conn.Privmsg(irc.ReplyTarget(e.Target, e.Nick), text)
}

// PingEvent is a server keep-alive check
type PingEvent struct {
	Payload string
	Conn    irc.Sender
}

// NewPingEvent converts a PING protocol event
func NewPingEvent(e *irc.Event) *PingEvent {
	return &PingEvent{Payload: e.Message(), Conn: e.Conn}
}

// ConnectEvent signals that a connection was established or has ended
type ConnectEvent struct {
	Server string
	Conn   irc.Sender
	Err    error // why the connection ended, nil on connect
}

// DispatchConnect delivers e to every listener's OnConnect
func DispatchConnect(ls []Listener, e *ConnectEvent) {
	for _, l := range ls {
		safely(l, "connect", func() { l.OnConnect(e) })
	}
}

// DispatchDisconnect delivers e to every listener's OnDisconnect
func DispatchDisconnect(ls []Listener, e *ConnectEvent) {
	for _, l := range ls {
		safely(l, "disconnect", func() { l.OnDisconnect(e) })
	}
}

// DispatchMessage delivers e to every listener's OnMessage
func DispatchMessage(ls []Listener, e *MessageEvent) {
	for _, l := range ls {
		safely(l, "message", func() { l.OnMessage(e) })
	}
}

// DispatchPing delivers e to every listener's OnPing
func DispatchPing(ls []Listener, e *PingEvent) {
	for _, l := range ls {
		safely(l, "ping", func() { l.OnPing(e) })
	}
}

// safely runs fn, containing a panic to the listener that raised it
func safely(l Listener, event string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.WithFields(logrus.Fields{
				"listener": fmt.Sprintf("%T", l),
				"event":    event,
				"panic":    r,
			}).Error("listener-panic-recovered")
		}
	}()
	fn()
}
