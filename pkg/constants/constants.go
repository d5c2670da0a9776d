package constants

import "time"

// Connection defaults
const (
	// DefaultIRCPort is the plain-text IRC port used when none is configured
	DefaultIRCPort = 6667
	// DefaultIRCTLSPort is the port used when TLS is enabled and no port is configured
	DefaultIRCTLSPort = 6697
	// DefaultGracePeriod is how long Stop waits for the server to acknowledge QUIT
	// before the transport is force-closed
	DefaultGracePeriod = 1000 * time.Millisecond
	// DialTimeout bounds connecting to the server, TLS handshake included
	DialTimeout = time.Minute
	// DefaultQuitMessage is sent along with QUIT when none is configured
	DefaultQuitMessage = "pydabot shutting down"
	// MaxMessageLength is the longest PRIVMSG text sent in one line, in bytes. The
	// protocol caps a whole line at 512 bytes including the prefix and target.
	MaxMessageLength = 400
)

// Announcement scheduling
const (
	// DefaultAnnouncementDelay is the delay before the first announcement tick
	DefaultAnnouncementDelay = 60 * time.Second
	// DefaultAnnouncementPeriod is the interval between announcement ticks
	DefaultAnnouncementPeriod = 60 * time.Second
)

// Commands
const (
	// DefaultCommandPrefix prefixes simple (canned reply) commands
	DefaultCommandPrefix = "!"
)

// Logging defaults
const (
	// DefaultLogMaxSize is the default maximum log file size in MB
	DefaultLogMaxSize = 100
	// DefaultLogMaxBackups is the default number of rotated log files to keep
	DefaultLogMaxBackups = 5
	// DefaultLogMaxAge is the default maximum number of days to retain old logs
	DefaultLogMaxAge = 30
)

// Secret masking
const (
	// MinSecretLengthForMasking is the minimum secret length to show a prefix and suffix
	MinSecretLengthForMasking = 8
	// SecretMaskPrefixLength is the length of prefix to show before masking
	SecretMaskPrefixLength = 2
	// SecretMaskSuffixLength is the length of suffix to show after masking
	SecretMaskSuffixLength = 2
)
