// Package irc adapts an IRC client library to the small surface the bot drives.
//
// The bot never talks to the wire protocol directly. It builds a Conn from a Config,
// registers callbacks with OnEvent, and runs the connection's blocking event loop
// with Run. Everything a listener needs to answer an event is reachable through the
// Sender carried by the Event.
//
// # Shutdown
//
// Quit asks the server to close the connection politely; Run returns once the
// server hangs up. Disconnect closes the socket without waiting for the server,
// even if the server has gone silent, and Run returns right after.
package irc

import (
	"fmt"
	"strconv"
)

// Common IRC event codes
const (
	EventWelcome = "001"
	EventPrivmsg = "PRIVMSG"
	EventPing    = "PING"
)

// Sender is the outbound half of a connection
type Sender interface {
	// Privmsg sends message to a channel or nick
	Privmsg(target, message string)
	// SendRaw sends a raw protocol line without the trailing CRLF
	SendRaw(line string)
}

// Conn is a single IRC connection attempt
type Conn interface {
	Sender

	// OnEvent registers fn for events with the given code. Must be called before Run.
	OnEvent(code string, fn func(*Event))

	// Join joins a channel on the live connection
	Join(channel string)

	// Run connects and serves events until the connection ends
	Run() error

	// Quit sends QUIT and lets the server close the connection
	Quit()

	// Disconnect force-closes the transport
	Disconnect()

	// Connected reports the transport's connected flag
	Connected() bool
}

// Config holds everything needed to open a connection
type Config struct {
	Hostname    string
	Port        int
	Nickname    string
	Username    string
	Password    string
	UseTLS      bool
	QuitMessage string
	Debug       bool
}

// Server returns the host:port address of the server
func (c Config) Server() string {
	return c.Hostname + ":" + strconv.Itoa(c.Port)
}

// Validate checks that the connection can be attempted
func (c Config) Validate() error {
	if c.Hostname == "" {
		return fmt.Errorf("hostname is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.Nickname == "" {
		return fmt.Errorf("nickname is required")
	}
	return nil
}

// Event is an inbound protocol event, already parsed
type Event struct {
	Code      string
	Nick      string
	User      string
	Host      string
	Arguments []string

	// Conn is the connection the event arrived on
	Conn Sender
}

// Target returns the first argument (the channel or nick a message was sent to)
func (e *Event) Target() string {
	if len(e.Arguments) == 0 {
		return ""
	}
	return e.Arguments[0]
}

// Message returns the trailing argument
func (e *Event) Message() string {
	if len(e.Arguments) == 0 {
		return ""
	}
	return e.Arguments[len(e.Arguments)-1]
}
