package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func captureLogger(t *testing.T, level logrus.Level) *lockedBuffer {
	t.Helper()
	buf := &lockedBuffer{}
	l := logrus.New()
	l.SetOutput(buf)
	l.SetLevel(level)
	l.SetFormatter(&logrus.JSONFormatter{})
	SetLogger(l)
	return buf
}

func TestInitLogger(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name   string
		config Config
	}{
		{
			name: "file output",
			config: Config{
				Level:      "info",
				File:       filepath.Join(dir, "pydabot.log"),
				MaxSize:    1,
				MaxBackups: 1,
				MaxAge:     1,
			},
		},
		{
			name:   "stdout only",
			config: Config{Level: "debug", EnableStdout: true},
		},
		{
			name: "file and stdout",
			config: Config{
				Level:        "warn",
				File:         filepath.Join(dir, "both.log"),
				EnableStdout: true,
			},
		},
		{
			name:   "no writers",
			config: Config{Level: "info"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, InitLogger(tt.config))
			assert.NotNil(t, GetLogger())
		})
	}
}

func TestInitLogger_CreatesLogDirectory(t *testing.T) {
	logDir := filepath.Join(t.TempDir(), "nested", "logs")

	err := InitLogger(Config{Level: "info", File: filepath.Join(logDir, "bot.log")})
	require.NoError(t, err)

	info, err := os.Stat(logDir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestLogLevelSetting(t *testing.T) {
	tests := []struct {
		level    string
		expected logrus.Level
	}{
		{"debug", logrus.DebugLevel},
		{"info", logrus.InfoLevel},
		{"warn", logrus.WarnLevel},
		{"error", logrus.ErrorLevel},
		{"invalid", logrus.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			require.NoError(t, InitLogger(Config{Level: tt.level}))
			assert.Equal(t, tt.expected, GetLogger().GetLevel())
		})
	}
}

func TestFormatterSetting(t *testing.T) {
	require.NoError(t, InitLogger(Config{Level: "debug"}))
	assert.IsType(t, &logrus.TextFormatter{}, GetLogger().Formatter)

	require.NoError(t, InitLogger(Config{Level: "info"}))
	assert.IsType(t, &logrus.JSONFormatter{}, GetLogger().Formatter)
}

func TestGetLogger_ReturnsSameInstance(t *testing.T) {
	assert.Same(t, GetLogger(), GetLogger())
}

func TestLogFunctions_RespectLevel(t *testing.T) {
	buf := captureLogger(t, logrus.InfoLevel)

	Debug("debug message")
	Info("info message")
	Warn("warn message")
	Error("error message")

	output := buf.String()
	assert.NotContains(t, output, "debug message")
	assert.Contains(t, output, "info message")
	assert.Contains(t, output, "warn message")
	assert.Contains(t, output, "error message")
}

func TestWithFields(t *testing.T) {
	buf := captureLogger(t, logrus.InfoLevel)

	WithFields(logrus.Fields{"nick": "alice", "channel": "#pydawan"}).Info("message-received")
	WithField("key", "value").Info("single-field")

	output := buf.String()
	assert.Contains(t, output, "alice")
	assert.Contains(t, output, "#pydawan")
	assert.Contains(t, output, "value")
}

func TestStdLogger_WritesThroughLogrus(t *testing.T) {
	buf := captureLogger(t, logrus.DebugLevel)

	std := StdLogger(logrus.WarnLevel)
	std.Println("from the irc library")

	assert.Eventually(t, func() bool {
		return strings.Contains(buf.String(), "from the irc library")
	}, time.Second, 10*time.Millisecond)
	assert.Contains(t, buf.String(), `"level":"warning"`)
}
