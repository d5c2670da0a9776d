package core

// State is the lifecycle state of a Bot
type State string

const (
	StateIdle    State = "idle"    // No connection; Start is allowed
	StateRunning State = "running" // Event loop launched (may not be connected yet)
	StateClosing State = "closing" // QUIT sent, waiting for the event loop to end
)

// Identity is who the bot connects as, and where
type Identity struct {
	Hostname string
	Port     int
	Nickname string
	Password string
	UseTLS   bool
}

// Config represents the complete pydabot configuration file
type Config struct {
	Server        ServerConfig        `yaml:"server" toml:"server"`
	Channels      []string            `yaml:"channels" toml:"channels"`
	Commands      CommandsConfig      `yaml:"commands" toml:"commands"`
	Moderation    ModerationConfig    `yaml:"moderation" toml:"moderation"`
	Announcements AnnouncementsConfig `yaml:"announcements" toml:"announcements"`
	Logging       LoggingConfig       `yaml:"logging" toml:"logging"`
	Metrics       MetricsConfig       `yaml:"metrics" toml:"metrics"`
}

// ServerConfig represents the IRC server and the bot's identity on it
type ServerConfig struct {
	Hostname    string `yaml:"hostname" toml:"hostname"`
	Port        int    `yaml:"port" toml:"port"` // Default: 6667, or 6697 with TLS
	Nickname    string `yaml:"nickname" toml:"nickname"`
	Username    string `yaml:"username" toml:"username"` // Default: nickname
	Password    string `yaml:"password" toml:"password"` // Server password (PASS), optional
	TLS         bool   `yaml:"tls" toml:"tls"`
	QuitMessage string `yaml:"quit_message" toml:"quit_message"`
	GracePeriod string `yaml:"grace_period" toml:"grace_period"` // Wait for QUIT acknowledgement (default: 1s)
	Debug       bool   `yaml:"debug" toml:"debug"`               // Log raw protocol traffic
}

// CommandsConfig represents command routing configuration
type CommandsConfig struct {
	Prefix          string            `yaml:"prefix" toml:"prefix"`   // Prefix for canned replies (default: "!")
	Replies         map[string]string `yaml:"replies" toml:"replies"` // Command name -> canned reply
	DisableBuiltins bool              `yaml:"disable_builtins" toml:"disable_builtins"`
}

// ModerationConfig represents keyword based moderation
type ModerationConfig struct {
	Enabled   bool              `yaml:"enabled" toml:"enabled"`
	Rules     []ModerationRule  `yaml:"rules" toml:"rules"`
	Responses map[string]string `yaml:"responses" toml:"responses"` // Severity -> format with one %s for the nick
}

// ModerationRule assigns a severity to messages containing any keyword
type ModerationRule struct {
	Severity string   `yaml:"severity" toml:"severity"`
	Keywords []string `yaml:"keywords" toml:"keywords"`
}

// AnnouncementsConfig represents the scheduled announcement pool
type AnnouncementsConfig struct {
	Delay  string               `yaml:"delay" toml:"delay"`   // Before the first announcement (default: 60s)
	Period string               `yaml:"period" toml:"period"` // Between announcements (default: 60s)
	Items  []AnnouncementConfig `yaml:"items" toml:"items"`
}

// AnnouncementConfig is one weighted announcement
type AnnouncementConfig struct {
	Channel string  `yaml:"channel" toml:"channel"`
	Message string  `yaml:"message" toml:"message"`
	Weight  float64 `yaml:"weight" toml:"weight"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level        string `yaml:"level" toml:"level"`                 // debug, info, warn, error
	File         string `yaml:"file" toml:"file"`                   // Log file path
	MaxSize      int    `yaml:"max_size" toml:"max_size"`           // Single file max size in MB (default: 100)
	MaxBackups   int    `yaml:"max_backups" toml:"max_backups"`     // Number of backups to keep (default: 5)
	MaxAge       int    `yaml:"max_age" toml:"max_age"`             // Maximum days to retain (default: 30)
	Compress     bool   `yaml:"compress" toml:"compress"`           // Whether to compress old logs
	EnableStdout bool   `yaml:"enable_stdout" toml:"enable_stdout"` // Also output to stdout
}

// MetricsConfig represents the Prometheus endpoint
type MetricsConfig struct {
	Listen string `yaml:"listen" toml:"listen"` // e.g. ":9090"; empty disables the endpoint
}
