package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default("/tmp/sprintboard.db")
	if cfg.Database.Path != "/tmp/sprintboard.db" {
		t.Fatalf("unexpected db path %q", cfg.Database.Path)
	}
	if cfg.Database.Driver != DriverSQLite {
		t.Fatalf("unexpected driver %q", cfg.Database.Driver)
	}
	if cfg.Board.TicketPrefix != "PT" || cfg.Board.TicketWidth != 4 {
		t.Fatalf("unexpected ticket defaults %q/%d", cfg.Board.TicketPrefix, cfg.Board.TicketWidth)
	}
	if got := cfg.Database.BusyTimeout(); got != 5*time.Second {
		t.Fatalf("BusyTimeout() = %v, want 5s", got)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	defaults := Default("/tmp/sprintboard.db")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"), defaults)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Database.Path != defaults.Database.Path {
		t.Fatalf("expected default db path, got %q", cfg.Database.Path)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[database]
driver = "postgres"
dsn = "postgres://board@localhost/board"
max_tx_attempts = 9

[board]
ticket_prefix = "OPS"
ticket_width = 5
copy_suffix = " copy"

[server]
http_bind = "0.0.0.0:9000"

[logging]
level = "debug"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(path, Default("/tmp/default.db"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Database.Driver != DriverPostgres || cfg.Database.MaxTxAttempts != 9 {
		t.Fatalf("unexpected database config %#v", cfg.Database)
	}
	if cfg.Board.TicketPrefix != "OPS" || cfg.Board.TicketWidth != 5 || cfg.Board.CopySuffix != " copy" {
		t.Fatalf("unexpected board config %#v", cfg.Board)
	}
	if cfg.Server.HTTPBind != "0.0.0.0:9000" || cfg.Server.MCPEndpoint != "/mcp" {
		t.Fatalf("unexpected server config %#v", cfg.Server)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("unexpected logging level %q", cfg.Logging.Level)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"driver":        "[database]\ndriver = \"mysql\"\n",
		"postgres dsn":  "[database]\ndriver = \"postgres\"\n",
		"ticket prefix": "[board]\nticket_prefix = \"A-B\"\n",
		"ticket width":  "[board]\nticket_width = 0\n",
		"log level":     "[logging]\nlevel = \"chatty\"\n",
		"unknown key":   "[board]\nwip_limit = 3\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
				t.Fatalf("WriteFile() error = %v", err)
			}
			if _, err := Load(path, Default("/tmp/default.db")); err == nil {
				t.Fatalf("expected error for %s", name)
			}
		})
	}
}

func TestApplyEnvOverridesFile(t *testing.T) {
	t.Setenv("SPRINTBOARD_DATABASE_PATH", "/env/board.db")
	t.Setenv("SPRINTBOARD_DATABASE_BUSY_TIMEOUT_MS", "250")
	t.Setenv("SPRINTBOARD_BOARD_TICKET_PREFIX", "ENV")
	t.Setenv("SPRINTBOARD_SERVER_HTTP_BIND", ":7000")
	t.Setenv("SPRINTBOARD_LOGGING_DEV_FILE_ENABLED", "false")

	cfg, err := ApplyEnv(Default("/tmp/default.db"))
	if err != nil {
		t.Fatalf("ApplyEnv() error = %v", err)
	}
	if cfg.Database.Path != "/env/board.db" || cfg.Database.BusyTimeout() != 250*time.Millisecond {
		t.Fatalf("unexpected database config %#v", cfg.Database)
	}
	if cfg.Board.TicketPrefix != "ENV" || cfg.Board.TicketWidth != 4 {
		t.Fatalf("unexpected board config %#v", cfg.Board)
	}
	if cfg.Server.HTTPBind != ":7000" {
		t.Fatalf("unexpected http bind %q", cfg.Server.HTTPBind)
	}
	if cfg.Logging.DevFile.Enabled {
		t.Fatal("expected dev file logging disabled from env")
	}
}

func TestApplyEnvRejectsInvalidValues(t *testing.T) {
	t.Setenv("SPRINTBOARD_BOARD_TICKET_WIDTH", "wide")
	if _, err := ApplyEnv(Default("/tmp/default.db")); err == nil {
		t.Fatal("expected parse error for non-numeric ticket width")
	}
}

func TestEnsureConfigDir(t *testing.T) {
	target := filepath.Join(t.TempDir(), "a", "b", "config.toml")
	if err := EnsureConfigDir(target); err != nil {
		t.Fatalf("EnsureConfigDir() error = %v", err)
	}
	if _, err := os.Stat(filepath.Dir(target)); err != nil {
		t.Fatalf("expected dir to exist, stat error %v", err)
	}
}
