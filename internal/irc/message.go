package irc

import (
	"strings"
	"unicode/utf8"
)

// SplitMessage breaks message into lines that can each be sent as one PRIVMSG.
// Line breaks start a new line, blank lines are dropped and lines longer than max
// bytes are cut on rune boundaries.
func SplitMessage(message string, max int) []string {
	var out []string
	for _, line := range strings.Split(message, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		for len(line) > max && max > 0 {
			cut := max
			for cut > 0 && !utf8.RuneStart(line[cut]) {
				cut--
			}
			if cut == 0 {
				// a single rune wider than max
				_, cut = utf8.DecodeRuneInString(line)
			}
			out = append(out, line[:cut])
			line = line[cut:]
		}
		out = append(out, line)
	}
	return out
}
