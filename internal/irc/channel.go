package irc

import "strings"

// channelPrefixes are the leading characters that mark an IRC target as a channel
const channelPrefixes = "#&+!"

// ChannelOf turns a bare channel name into its addressable form ("pydawan" -> "#pydawan").
// Names that already carry a channel prefix are returned unchanged.
func ChannelOf(name string) string {
	name = strings.TrimSpace(name)
	if IsChannel(name) {
		return name
	}
	return "#" + name
}

// IsChannel reports whether target names a channel rather than a user
func IsChannel(target string) bool {
	return target != "" && strings.ContainsRune(channelPrefixes, rune(target[0]))
}

// ReplyTarget returns where a reply to a message sent to target by nick should go:
// the channel for channel messages, the sender for private messages.
func ReplyTarget(target, nick string) string {
	if IsChannel(target) {
		return target
	}
	return nick
}
