package listener

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownSeverity is returned when a severity name cannot be parsed
var ErrUnknownSeverity = errors.New("unknown severity")

// Severity grades a message for moderation. Higher values are more severe.
type Severity int

const (
	SeverityNone Severity = iota
	SeverityWarn
	SeverityBan
)

// Severities lists every level in ascending order
var Severities = []Severity{SeverityNone, SeverityWarn, SeverityBan}

func (s Severity) String() string {
	switch s {
	case SeverityNone:
		return "none"
	case SeverityWarn:
		return "warn"
	case SeverityBan:
		return "ban"
	default:
		return fmt.Sprintf("severity(%d)", int(s))
	}
}

// ParseSeverity parses a severity name, case-insensitively
func ParseSeverity(name string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "none", "":
		return SeverityNone, nil
	case "warn", "warning":
		return SeverityWarn, nil
	case "ban":
		return SeverityBan, nil
	}
	return SeverityNone, fmt.Errorf("%w: %q", ErrUnknownSeverity, name)
}

// MaxSeverity returns the most severe of a and b
func MaxSeverity(a, b Severity) Severity {
	if a > b {
		return a
	}
	return b
}
