package listener

import (
	"strings"

	"github.com/pydawan/pydabot/internal/metrics"
	"github.com/pydawan/pydabot/pkg/constants"
)

// ReplyLookup resolves a command name to a canned reply
type ReplyLookup func(name string) (string, bool)

// ReplyMap adapts a static map to ReplyLookup
func ReplyMap(m map[string]string) ReplyLookup {
	return func(name string) (string, bool) {
		reply, ok := m[name]
		return reply, ok
	}
}

// SimpleCommandRouter answers argument-less commands with a canned reply.
// A command is the first space-separated token of a message; anything after it is ignored.
type SimpleCommandRouter struct {
	Adapter
	prefix string
	lookup ReplyLookup
}

// NewSimpleCommandRouter creates a router for prefix (DefaultCommandPrefix when empty)
func NewSimpleCommandRouter(lookup ReplyLookup, prefix string) *SimpleCommandRouter {
	if lookup == nil {
		panic("listener: nil reply lookup")
	}
	if prefix == "" {
		prefix = constants.DefaultCommandPrefix
	}
	return &SimpleCommandRouter{prefix: prefix, lookup: lookup}
}

// Prefix returns the command prefix
func (r *SimpleCommandRouter) Prefix() string {
	return r.prefix
}

// OnMessage replies with the canned answer for a known command
func (r *SimpleCommandRouter) OnMessage(e *MessageEvent) {
	token, _, _ := strings.Cut(strings.TrimLeft(e.Message, " \t"), " ")
	if !strings.HasPrefix(token, r.prefix) {
		return
	}

	name := token[len(r.prefix):]
	reply, ok := r.lookup(name)
	if !ok {
		return
	}

	metrics.CommandDispatched(name)
	e.Respond(reply)
}
