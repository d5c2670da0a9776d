package listener

import (
	"regexp"
	"sort"
	"strings"

	"github.com/pydawan/pydabot/internal/logger"
	"github.com/pydawan/pydabot/internal/metrics"
	"github.com/sirupsen/logrus"
)

// commandPattern matches "!name" optionally followed by whitespace and arguments.
// Group 1 is the command name, group 2 the raw argument string.
var commandPattern = regexp.MustCompile(`^!(\w+)(?:\s+(.*))?$`)

// Command handles a parsed command. It is responsible for any reply.
type Command func(e *MessageEvent, args []string)

// CommandLookup resolves a command name to its handler
type CommandLookup func(name string) (Command, bool)

// CommandMap is a static name -> handler table
type CommandMap map[string]Command

// Lookup implements CommandLookup
func (m CommandMap) Lookup(name string) (Command, bool) {
	cmd, ok := m[name]
	return cmd, ok
}

// Names returns the registered command names, sorted
func (m CommandMap) Names() []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ParseCommand splits a message into a command name and its arguments.
// ok is false when the message is not a command.
func ParseCommand(message string) (name string, args []string, ok bool) {
	m := commandPattern.FindStringSubmatch(strings.TrimLeft(message, " \t"))
	if m == nil {
		return "", nil, false
	}
	return m[1], splitArgs(m[2]), true
}

// splitArgs splits on single spaces. Trailing empty fields are dropped, so an
// empty argument string yields an empty list.
func splitArgs(raw string) []string {
	args := strings.Split(raw, " ")
	for len(args) > 0 && args[len(args)-1] == "" {
		args = args[:len(args)-1]
	}
	return args
}

// CommandRouter dispatches "!name arg..." messages to handlers
type CommandRouter struct {
	Adapter
	lookup CommandLookup
}

// NewCommandRouter creates a router resolving names through lookup
func NewCommandRouter(lookup CommandLookup) *CommandRouter {
	if lookup == nil {
		panic("listener: nil command lookup")
	}
	return &CommandRouter{lookup: lookup}
}

// OnMessage runs the matching handler, if any
func (r *CommandRouter) OnMessage(e *MessageEvent) {
	name, args, ok := ParseCommand(e.Message)
	if !ok {
		return
	}

	cmd, found := r.lookup(name)
	if !found || cmd == nil {
		return
	}

	logger.WithFields(logrus.Fields{
		"command": name,
		"args":    len(args),
		"nick":    e.Nick,
		"target":  e.Target,
	}).Debug("dispatching-command")

	metrics.CommandDispatched(name)
	cmd(e, args)
}
