package listener

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pydawan/pydabot/internal/logger"
	"github.com/pydawan/pydabot/internal/metrics"
	"github.com/sirupsen/logrus"
)

// ErrMissingResponse is returned when no response format exists for a produced severity
var ErrMissingResponse = errors.New("no moderation response configured for severity")

// Classifier grades a message. It must return a severity for every input.
type Classifier func(message string) Severity

// Responder decides what to say to sender for a severity. An empty response means
// no reply; an error means the policy is misconfigured.
type Responder func(sender string, severity Severity) (string, error)

// Moderator classifies every message and replies when the policy asks for it.
// It holds no policy of its own.
type Moderator struct {
	Adapter
	classify Classifier
	respond  Responder
}

// NewModerator creates a moderator from a classifier and a responder
func NewModerator(classify Classifier, respond Responder) *Moderator {
	if classify == nil || respond == nil {
		panic("listener: moderator needs a classifier and a responder")
	}
	return &Moderator{classify: classify, respond: respond}
}

// NewFormatModerator creates a moderator replying with formats[severity], where the
// format's single %s is replaced by the sender's nick. SeverityNone without a format
// produces no reply; any other severity without a format is ErrMissingResponse.
func NewFormatModerator(classify Classifier, formats map[Severity]string) *Moderator {
	table := make(map[Severity]string, len(formats))
	for s, f := range formats {
		table[s] = f
	}
	return NewModerator(classify, FormatResponder(table))
}

// FormatResponder builds a Responder from a severity -> format table
func FormatResponder(formats map[Severity]string) Responder {
	return func(sender string, severity Severity) (string, error) {
		format, ok := formats[severity]
		if !ok {
			if severity == SeverityNone {
				return "", nil
			}
			return "", fmt.Errorf("%w: %s", ErrMissingResponse, severity)
		}
		return fmt.Sprintf(format, sender), nil
	}
}

// Moderate runs the classify-then-respond pipeline for one message
func (m *Moderator) Moderate(e *MessageEvent) error {
	severity := m.classify(e.Message)

	response, err := m.respond(e.Nick, severity)
	if err != nil {
		return err
	}
	if response == "" {
		return nil
	}

	logger.WithFields(logrus.Fields{
		"nick":     e.Nick,
		"target":   e.Target,
		"severity": severity.String(),
	}).Info("moderation-response-sent")

	metrics.ModerationResponse(severity.String())
	e.Respond(response)
	return nil
}

// OnMessage moderates every message
func (m *Moderator) OnMessage(e *MessageEvent) {
	if err := m.Moderate(e); err != nil {
		logger.WithFields(logrus.Fields{
			"nick":  e.Nick,
			"error": err,
		}).Error("moderation-failed")
	}
}

// KeywordRule assigns a severity to messages containing any of its keywords
type KeywordRule struct {
	Severity Severity
	Keywords []string
}

// KeywordClassifier grades a message with the highest severity among the rules
// whose keywords it contains (case-insensitive). Messages matching nothing are SeverityNone.
func KeywordClassifier(rules []KeywordRule) Classifier {
	lowered := make([]KeywordRule, len(rules))
	for i, r := range rules {
		kws := make([]string, 0, len(r.Keywords))
		for _, kw := range r.Keywords {
			if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
				kws = append(kws, kw)
			}
		}
		lowered[i] = KeywordRule{Severity: r.Severity, Keywords: kws}
	}

	return func(message string) Severity {
		msg := strings.ToLower(message)
		severity := SeverityNone
		for _, r := range lowered {
			if r.Severity <= severity {
				continue
			}
			for _, kw := range r.Keywords {
				if strings.Contains(msg, kw) {
					severity = MaxSeverity(severity, r.Severity)
					break
				}
			}
		}
		return severity
	}
}
