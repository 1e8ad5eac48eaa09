package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/kelseyhightower/envconfig"
)

// AppConfig holds all application-level configuration loaded from environment variables.
type AppConfig struct {
	// Port is the HTTP server port. Defaults to 8991.
	Port int `envconfig:"PORT" default:"8991"`

	// DataDir is the root data directory. Defaults to ~/.emitter.
	DataDir string `envconfig:"EMITTER_DATA_DIR"`

	// LogLevel sets the minimum log level (debug, info, warn, error). Defaults to info.
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// SchedulesPath overrides the location of the schedules YAML file.
	SchedulesPath string `envconfig:"EMITTER_SCHEDULES_FILE"`

	// InboxSize caps how many deliveries a subscriber keeps before dropping the oldest.
	InboxSize int `envconfig:"EMITTER_INBOX_SIZE" default:"256"`

	// CORSOrigins is a comma separated list of allowed origins.
	CORSOrigins []string `envconfig:"EMITTER_CORS_ORIGINS" default:"*"`

	// JournalEnabled turns the SQLite emission journal on or off.
	JournalEnabled bool `envconfig:"EMITTER_JOURNAL" default:"true"`

	// JournalWorkers is the number of goroutines writing journal records.
	JournalWorkers int `envconfig:"EMITTER_JOURNAL_WORKERS" default:"2"`

	// JournalRetention is how long emissions stay in the journal. Zero keeps them forever.
	JournalRetention time.Duration `envconfig:"EMITTER_JOURNAL_RETENTION" default:"168h"`

	// OnceReturnValue is a JSON literal used as the initial auto-remove value.
	// Empty keeps the default (true). A value that is not valid JSON is used as a string.
	OnceReturnValue string `envconfig:"EMITTER_ONCE_RETURN_VALUE"`
}

// Load reads AppConfig from environment variables using envconfig.
// DataDir defaults to ~/.emitter if not set.
func Load() (*AppConfig, error) {
	var c AppConfig
	if err := envconfig.Process("", &c); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if c.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolving home directory: %w", err)
		}
		c.DataDir = filepath.Join(home, ".emitter")
	}
	if c.InboxSize <= 0 {
		return nil, fmt.Errorf("loading config: EMITTER_INBOX_SIZE must be positive, got %d", c.InboxSize)
	}
	return &c, nil
}

// SlogLevel converts the LogLevel string to a slog.Level.
// Unknown values default to slog.LevelInfo.
func (c *AppConfig) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// InitialOnceReturnValue decodes OnceReturnValue. The second result is false
// when no value is configured.
func (c *AppConfig) InitialOnceReturnValue() (any, bool) {
	raw := strings.TrimSpace(c.OnceReturnValue)
	if raw == "" {
		return nil, false
	}
	var v any
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.UnmarshalFromString(raw, &v); err != nil {
		return raw, true
	}
	return v, true
}

// LogDir returns the path to the log directory (~/.emitter/logs).
func (c *AppConfig) LogDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// DatabasePath returns the path to the SQLite journal database.
func (c *AppConfig) DatabasePath() string {
	return filepath.Join(c.DataDir, "emitter.db")
}

// SchedulesFile returns the path to the schedules YAML file.
func (c *AppConfig) SchedulesFile() string {
	if c.SchedulesPath != "" {
		return c.SchedulesPath
	}
	return filepath.Join(c.DataDir, "schedules.yaml")
}
