package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/kelseyhightower/envconfig"
	toml "github.com/pelletier/go-toml/v2"
)

// EnvPrefix namespaces environment overrides, e.g. SPRINTBOARD_DATABASE_PATH.
const EnvPrefix = "SPRINTBOARD"

type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// Config fields carry no envconfig tags: a tag would also be looked up unprefixed.
type Config struct {
	Database DatabaseConfig `toml:"database"`
	Board    BoardConfig    `toml:"board"`
	Server   ServerConfig   `toml:"server"`
	Metrics  MetricsConfig  `toml:"metrics"`
	Logging  LoggingConfig  `toml:"logging"`
}

type DatabaseConfig struct {
	Driver        Driver `toml:"driver"`
	Path          string `toml:"path"`
	DSN           string `toml:"dsn"`
	BusyTimeoutMS int    `toml:"busy_timeout_ms" split_words:"true"`
	MaxTxAttempts int    `toml:"max_tx_attempts" split_words:"true"`
}

type BoardConfig struct {
	TicketPrefix string `toml:"ticket_prefix" split_words:"true"`
	TicketWidth  int    `toml:"ticket_width" split_words:"true"`
	CopySuffix   string `toml:"copy_suffix" split_words:"true"`
}

type ServerConfig struct {
	HTTPBind        string `toml:"http_bind" split_words:"true"`
	APIEndpoint     string `toml:"api_endpoint" split_words:"true"`
	MCPEndpoint     string `toml:"mcp_endpoint" split_words:"true"`
	MetricsEndpoint string `toml:"metrics_endpoint" split_words:"true"`
}

type MetricsConfig struct {
	Enabled   bool   `toml:"enabled"`
	Namespace string `toml:"namespace"`
}

type LoggingConfig struct {
	Level   string        `toml:"level"`
	DevFile DevFileConfig `toml:"dev_file" split_words:"true"`
}

// DevFileConfig controls the logfmt file sink used in --dev runs.
type DevFileConfig struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
}

func Default(dbPath string) Config {
	return Config{
		Database: DatabaseConfig{
			Driver:        DriverSQLite,
			Path:          dbPath,
			BusyTimeoutMS: 5000,
			MaxTxAttempts: 5,
		},
		Board: BoardConfig{
			TicketPrefix: "PT",
			TicketWidth:  4,
			CopySuffix:   " (copy)",
		},
		Server: ServerConfig{
			HTTPBind:        "127.0.0.1:8080",
			APIEndpoint:     "/api/v1",
			MCPEndpoint:     "/mcp",
			MetricsEndpoint: "/metrics",
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "sprintboard",
		},
		Logging: LoggingConfig{
			Level: "info",
			DevFile: DevFileConfig{
				Enabled: true,
				Dir:     ".sprintboard/log",
			},
		},
	}
}

// Load layers the TOML file at path over defaults. A missing or empty file keeps defaults.
func Load(path string, defaults Config) (Config, error) {
	cfg := defaults
	if strings.TrimSpace(path) == "" {
		return cfg, cfg.Validate()
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, cfg.Validate()
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if len(content) == 0 {
		return cfg, cfg.Validate()
	}

	decoder := toml.NewDecoder(bytes.NewReader(content))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode toml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// ApplyEnv overlays SPRINTBOARD_* environment variables; unset variables keep current values.
func ApplyEnv(cfg Config) (Config, error) {
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("load env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.Database.Driver {
	case DriverSQLite:
		if strings.TrimSpace(c.Database.Path) == "" {
			return errors.New("database.path is required for the sqlite driver")
		}
	case DriverPostgres:
		if strings.TrimSpace(c.Database.DSN) == "" {
			return errors.New("database.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("invalid database.driver: %q", c.Database.Driver)
	}
	if c.Database.BusyTimeoutMS < 0 {
		return fmt.Errorf("database.busy_timeout_ms must be >= 0")
	}
	if c.Database.MaxTxAttempts < 0 {
		return fmt.Errorf("database.max_tx_attempts must be >= 0")
	}

	prefix := strings.TrimSpace(c.Board.TicketPrefix)
	if prefix == "" || strings.ContainsAny(prefix, " \t-") {
		return fmt.Errorf("invalid board.ticket_prefix: %q", c.Board.TicketPrefix)
	}
	if c.Board.TicketWidth < 1 || c.Board.TicketWidth > 12 {
		return fmt.Errorf("board.ticket_width must be between 1 and 12")
	}

	if _, err := log.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("invalid logging.level: %q", c.Logging.Level)
	}
	return nil
}

// BusyTimeout returns the sqlite busy timeout as a duration.
func (c DatabaseConfig) BusyTimeout() time.Duration {
	return time.Duration(c.BusyTimeoutMS) * time.Millisecond
}

func EnsureConfigDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
