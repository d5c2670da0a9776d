// Package core wires configuration, listeners and the announcement scheduler around
// a single IRC connection.
//
// # Main Components
//
//   - Bot: connection lifecycle (Start, Stop, Restart) and listener/channel registry
//   - Config: configuration structure, loading and validation
//   - NewBotFromConfig: builds a ready-to-start Bot from a Config
//
// # Configuration
//
// Configuration is loaded from a YAML file, or a TOML file when the path ends in
// ".toml". ${VAR} references are expanded from the environment before parsing.
//
//	server:
//	  hostname: irc.libera.chat
//	  port: 6697
//	  tls: true
//	  nickname: pydabot
//	  password: ${IRC_PASSWORD}
//	channels: [pydawan]
//	commands:
//	  replies:
//	    hello: "Hello, world!"
//	moderation:
//	  enabled: true
//	  rules:
//	    - severity: ban
//	      keywords: [spam]
//	  responses:
//	    ban: "%s has been warned"
//	announcements:
//	  period: 10m
//	  items:
//	    - channel: pydawan
//	      message: "Follow the stream!"
//	      weight: 2
package core

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pydawan/pydabot/internal/listener"
	"github.com/pydawan/pydabot/pkg/constants"
	"gopkg.in/yaml.v3"
)

const (
	DefaultLogLevel           = "info"
	DefaultGracePeriod        = "1s"
	DefaultAnnouncementDelay  = "60s"
	DefaultAnnouncementPeriod = "60s"
)

// LoadConfig loads configuration from file and expands environment variables
func LoadConfig(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expandedData, err := expandEnv(string(data))
	if err != nil {
		return nil, fmt.Errorf("failed to expand environment variables: %w", err)
	}

	var config Config
	if strings.EqualFold(filepath.Ext(configPath), ".toml") {
		if _, err := toml.Decode(expandedData, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expandedData), &config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// envVarPattern matches ${VAR_NAME}. A bare $ (as in "$5") is left alone.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnv replaces ${VAR_NAME} patterns with environment variable values
func expandEnv(input string) (string, error) {
	var missingVars []string

	result := envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		key := match[2 : len(match)-1]
		if val := os.Getenv(key); val != "" {
			return val
		}
		missingVars = append(missingVars, key)
		return ""
	})

	if len(missingVars) > 0 {
		return "", fmt.Errorf("missing required environment variables: %s",
			strings.Join(missingVars, ", "))
	}

	return result, nil
}

// validateConfig fills in defaults and rejects configurations the bot cannot run
func validateConfig(config *Config) error {
	if err := validateServer(&config.Server); err != nil {
		return err
	}

	channels := config.Channels[:0]
	for _, ch := range config.Channels {
		if ch = strings.TrimSpace(ch); ch != "" {
			channels = append(channels, ch)
		}
	}
	config.Channels = channels

	if config.Commands.Prefix == "" {
		config.Commands.Prefix = constants.DefaultCommandPrefix
	}
	if !config.Commands.DisableBuiltins && config.Commands.Prefix == "!" {
		for name := range config.Commands.Replies {
			if _, reserved := builtinCommandNames[name]; reserved {
				return fmt.Errorf("commands.replies.%s clashes with a built-in command", name)
			}
		}
	}

	if config.Moderation.Enabled {
		if _, _, err := config.ModerationPolicy(); err != nil {
			return err
		}
	}

	if err := validateAnnouncements(&config.Announcements); err != nil {
		return err
	}

	if config.Logging == (LoggingConfig{}) {
		config.Logging.Compress = true
		config.Logging.EnableStdout = true
	}
	if config.Logging.Level == "" {
		config.Logging.Level = DefaultLogLevel
	}
	if config.Logging.MaxSize == 0 {
		config.Logging.MaxSize = constants.DefaultLogMaxSize
	}
	if config.Logging.MaxBackups == 0 {
		config.Logging.MaxBackups = constants.DefaultLogMaxBackups
	}
	if config.Logging.MaxAge == 0 {
		config.Logging.MaxAge = constants.DefaultLogMaxAge
	}

	return nil
}

func validateServer(server *ServerConfig) error {
	server.Hostname = strings.TrimSpace(server.Hostname)
	if server.Hostname == "" {
		return fmt.Errorf("server.hostname is required")
	}
	if strings.TrimSpace(server.Nickname) == "" {
		return fmt.Errorf("server.nickname is required")
	}
	if strings.ContainsAny(server.Nickname, " ,*?!@#") {
		return fmt.Errorf("server.nickname %q contains invalid characters", server.Nickname)
	}

	if server.Port == 0 {
		if server.TLS {
			server.Port = constants.DefaultIRCTLSPort
		} else {
			server.Port = constants.DefaultIRCPort
		}
	}
	if server.Port < 1 || server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535 (got %d)", server.Port)
	}

	if server.QuitMessage == "" {
		server.QuitMessage = constants.DefaultQuitMessage
	}

	if server.GracePeriod == "" {
		server.GracePeriod = DefaultGracePeriod
	}
	grace, err := time.ParseDuration(server.GracePeriod)
	if err != nil {
		return fmt.Errorf("invalid server.grace_period: %w", err)
	}
	if grace <= 0 {
		return fmt.Errorf("server.grace_period must be positive (got %v)", grace)
	}

	return nil
}

func validateAnnouncements(a *AnnouncementsConfig) error {
	if a.Delay == "" {
		a.Delay = DefaultAnnouncementDelay
	}
	if a.Period == "" {
		a.Period = DefaultAnnouncementPeriod
	}

	delay, err := time.ParseDuration(a.Delay)
	if err != nil {
		return fmt.Errorf("invalid announcements.delay: %w", err)
	}
	if delay < 0 {
		return fmt.Errorf("announcements.delay must not be negative (got %v)", delay)
	}

	period, err := time.ParseDuration(a.Period)
	if err != nil {
		return fmt.Errorf("invalid announcements.period: %w", err)
	}
	if period <= 0 {
		return fmt.Errorf("announcements.period must be positive (got %v)", period)
	}

	for i, item := range a.Items {
		if strings.TrimSpace(item.Channel) == "" {
			return fmt.Errorf("announcements.items[%d]: channel is required", i)
		}
		if item.Message == "" {
			return fmt.Errorf("announcements.items[%d]: message is required", i)
		}
		if !(item.Weight > 0) {
			return fmt.Errorf("announcements.items[%d]: weight must be positive (got %v)", i, item.Weight)
		}
	}

	return nil
}

// GracePeriod returns the parsed QUIT acknowledgement timeout
func (c *Config) GracePeriod() time.Duration {
	d, err := time.ParseDuration(c.Server.GracePeriod)
	if err != nil || d <= 0 {
		return constants.DefaultGracePeriod
	}
	return d
}

// AnnouncementSchedule returns the parsed delay and period
func (c *Config) AnnouncementSchedule() (delay, period time.Duration) {
	delay, err := time.ParseDuration(c.Announcements.Delay)
	if err != nil || delay < 0 {
		delay = constants.DefaultAnnouncementDelay
	}
	period, err = time.ParseDuration(c.Announcements.Period)
	if err != nil || period <= 0 {
		period = constants.DefaultAnnouncementPeriod
	}
	return delay, period
}

// Identity returns the connection identity described by the server section
func (c *Config) Identity() Identity {
	return Identity{
		Hostname: c.Server.Hostname,
		Port:     c.Server.Port,
		Nickname: c.Server.Nickname,
		Password: c.Server.Password,
		UseTLS:   c.Server.TLS,
	}
}

// ModerationPolicy parses the moderation rules and responses. Every severity a rule
// can produce must have a response containing exactly one %s.
func (c *Config) ModerationPolicy() ([]listener.KeywordRule, map[listener.Severity]string, error) {
	formats := make(map[listener.Severity]string, len(c.Moderation.Responses))
	for name, format := range c.Moderation.Responses {
		severity, err := listener.ParseSeverity(name)
		if err != nil {
			return nil, nil, fmt.Errorf("moderation.responses: %w", err)
		}
		if strings.Count(format, "%s") != 1 || strings.Count(format, "%") != 1 {
			return nil, nil, fmt.Errorf("moderation.responses.%s must contain exactly one %%s placeholder", name)
		}
		formats[severity] = format
	}

	rules := make([]listener.KeywordRule, 0, len(c.Moderation.Rules))
	for i, r := range c.Moderation.Rules {
		severity, err := listener.ParseSeverity(r.Severity)
		if err != nil {
			return nil, nil, fmt.Errorf("moderation.rules[%d]: %w", i, err)
		}
		if severity == listener.SeverityNone {
			return nil, nil, fmt.Errorf("moderation.rules[%d]: severity must be above none", i)
		}
		if len(r.Keywords) == 0 {
			return nil, nil, fmt.Errorf("moderation.rules[%d]: at least one keyword is required", i)
		}
		if _, ok := formats[severity]; !ok {
			return nil, nil, fmt.Errorf("moderation.rules[%d]: no response configured for severity %s", i, severity)
		}
		rules = append(rules, listener.KeywordRule{Severity: severity, Keywords: r.Keywords})
	}

	return rules, formats, nil
}
