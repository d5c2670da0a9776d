package core

import (
	"fmt"
	"strings"

	"github.com/pydawan/pydabot/internal/announce"
	"github.com/pydawan/pydabot/internal/listener"
	"github.com/pydawan/pydabot/internal/logger"
	"github.com/sirupsen/logrus"
)

// NewBotFromConfig builds an idle bot from a validated configuration: channels,
// announcement pool and schedule, and the standard listeners (Pong, canned replies,
// built-in commands and moderation). opts are applied after the configured ones.
func NewBotFromConfig(config *Config, opts ...Option) (*Bot, error) {
	items := make([]announce.Announcement, 0, len(config.Announcements.Items))
	for _, item := range config.Announcements.Items {
		items = append(items, announce.Announcement{
			Channel: strings.TrimSpace(item.Channel),
			Message: item.Message,
			Weight:  item.Weight,
		})
	}
	worker, err := announce.NewWorker(items)
	if err != nil {
		return nil, fmt.Errorf("failed to build announcement pool: %w", err)
	}

	delay, period := config.AnnouncementSchedule()
	base := []Option{
		WithWorker(worker),
		WithSchedule(delay, period),
		WithGracePeriod(config.GracePeriod()),
		WithQuitMessage(config.Server.QuitMessage),
		WithDebug(config.Server.Debug),
	}
	b := NewBot(config.Identity(), append(base, opts...)...)

	for _, ch := range config.Channels {
		b.AddChannel(ch)
	}

	b.AddListener(listener.NewPong())

	replyNames := make([]string, 0, len(config.Commands.Replies))
	for name := range config.Commands.Replies {
		replyNames = append(replyNames, name)
	}
	if len(replyNames) > 0 {
		b.AddListener(listener.NewSimpleCommandRouter(
			listener.ReplyMap(config.Commands.Replies), config.Commands.Prefix))
	}

	if !config.Commands.DisableBuiltins {
		b.AddListener(listener.NewCommandRouter(
			BuiltinCommands(b, config.Commands.Prefix, replyNames).Lookup))
	}

	if config.Moderation.Enabled {
		rules, formats, err := config.ModerationPolicy()
		if err != nil {
			return nil, err
		}
		b.AddListener(listener.NewFormatModerator(listener.KeywordClassifier(rules), formats))
	}

	logger.WithFields(logrus.Fields{
		"server":        config.Identity().Hostname,
		"channels":      len(config.Channels),
		"replies":       len(replyNames),
		"moderation":    config.Moderation.Enabled,
		"announcements": len(items),
	}).Debug("bot-configured")

	return b, nil
}
