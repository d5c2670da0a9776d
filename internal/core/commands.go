package core

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pydawan/pydabot/internal/listener"
)

// builtinCommandNames are answered by the "!" command router unless disabled
var builtinCommandNames = map[string]struct{}{
	"echo":   {},
	"help":   {},
	"status": {},
}

// BuiltinCommands returns the argument commands handled by every bot:
//
//	!echo <text>  - repeat text
//	!help         - list available commands
//	!status       - connection state and announcement pool size
//
// replies are the canned reply names answered with prefix, listed by !help.
func BuiltinCommands(b *Bot, prefix string, replies []string) listener.CommandMap {
	cmds := listener.CommandMap{
		"echo": func(e *listener.MessageEvent, args []string) {
			if len(args) == 0 {
				return
			}
			e.Respond(strings.Join(args, " "))
		},
		"status": func(e *listener.MessageEvent, args []string) {
			e.Respond(fmt.Sprintf("state=%s connected=%t channels=%d announcements=%d",
				b.State(), b.IsConnected(), len(b.Channels()), b.Worker().Len()))
		},
	}

	cmds["help"] = func(e *listener.MessageEvent, args []string) {
		names := make([]string, 0, len(cmds)+len(replies))
		for _, name := range cmds.Names() {
			names = append(names, "!"+name)
		}
		sorted := append([]string(nil), replies...)
		sort.Strings(sorted)
		for _, name := range sorted {
			names = append(names, prefix+name)
		}
		e.Respond("commands: " + strings.Join(names, " "))
	}

	return cmds
}
