package main

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/evanschultz/sprintboard/internal/app"
	"github.com/evanschultz/sprintboard/internal/config"
	"github.com/evanschultz/sprintboard/internal/domain"
)

// TestMain sets deterministic environment defaults for CLI tests.
func TestMain(m *testing.M) {
	_ = os.Setenv("SPRINTBOARD_DEV_MODE", "false")
	os.Exit(m.Run())
}

// cliEnv isolates one test from user config and data directories.
type cliEnv struct {
	dir    string
	dbPath string
	cfg    string
}

func newCLIEnv(t *testing.T) cliEnv {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("SPRINTBOARD_HOME", dir)
	return cliEnv{
		dir:    dir,
		dbPath: filepath.Join(dir, "board.db"),
		cfg:    filepath.Join(dir, "missing.toml"),
	}
}

// runJSON runs one CLI invocation against env and decodes stdout into T.
func runJSON[T any](t *testing.T, env cliEnv, args ...string) T {
	t.Helper()
	full := append([]string{"--db", env.dbPath, "--config", env.cfg, "--actor", "cli-user"}, args...)
	var out bytes.Buffer
	if err := run(context.Background(), full, &out, io.Discard); err != nil {
		t.Fatalf("run(%v) error = %v", args, err)
	}
	var got T
	if err := json.Unmarshal(out.Bytes(), &got); err != nil {
		t.Fatalf("decode output of %v: %v (%q)", args, err, out.String())
	}
	return got
}

// TestRunVersionCommand verifies the version subcommand output.
func TestRunVersionCommand(t *testing.T) {
	var out strings.Builder
	if err := run(context.Background(), []string{"version"}, &out, io.Discard); err != nil {
		t.Fatalf("run(version) error = %v", err)
	}
	if !strings.Contains(out.String(), "sprintboard") {
		t.Fatalf("expected version output, got %q", out.String())
	}
}

// TestRunInvalidFlag verifies flag parse failures surface as errors.
func TestRunInvalidFlag(t *testing.T) {
	if err := run(context.Background(), []string{"--unknown-flag"}, io.Discard, io.Discard); err == nil {
		t.Fatal("expected flag parse error")
	}
}

// TestRunUnknownCommand verifies behavior for the covered scenario.
func TestRunUnknownCommand(t *testing.T) {
	err := run(context.Background(), []string{"unknown-command"}, io.Discard, io.Discard)
	if err == nil || !strings.Contains(err.Error(), "unknown command") {
		t.Fatalf("expected unknown command error, got %v", err)
	}
}

// TestRunPathsCommand verifies behavior for the covered scenario.
func TestRunPathsCommand(t *testing.T) {
	env := newCLIEnv(t)
	var out strings.Builder
	if err := run(context.Background(), []string{"--app", "boardx", "--dev", "paths"}, &out, io.Discard); err != nil {
		t.Fatalf("run(paths) error = %v", err)
	}
	output := out.String()
	for _, want := range []string{"app: boardx", "dev_mode: true", "db: " + env.dir} {
		if !strings.Contains(output, want) {
			t.Fatalf("expected %q in paths output, got %q", want, output)
		}
	}
}

// TestRunTaskFlow drives create, move, duplicate, delete, and history through the CLI.
func TestRunTaskFlow(t *testing.T) {
	env := newCLIEnv(t)

	a := runJSON[domain.Task](t, env, "task", "create", "--title", "A", "--sprint", "s1")
	b := runJSON[domain.Task](t, env, "task", "create", "--title", "B", "--sprint", "s1", "--priority", "HIGH")
	c := runJSON[domain.Task](t, env, "task", "create", "--title", "C")
	if a.Ticket != "PT-0001" || c.Ticket != "PT-0003" {
		t.Fatalf("unexpected tickets %q %q", a.Ticket, c.Ticket)
	}
	if b.Priority != domain.PriorityHigh {
		t.Fatalf("expected high priority, got %q", b.Priority)
	}
	if c.Position != 3 {
		t.Fatalf("expected C appended at 3, got %d", c.Position)
	}

	moved := runJSON[app.MoveResult](t, env, "task", "move", c.ID, "--position", "1")
	if moved.Task.Position != 1 || len(moved.Columns) != 1 {
		t.Fatalf("unexpected same-column move result %#v", moved)
	}

	cross := runJSON[app.MoveResult](t, env, "task", "move", b.ID, "--status", "in progress", "--position", "9")
	if cross.Task.Status != domain.StatusInProgress || cross.Task.Position != 1 || len(cross.Columns) != 2 {
		t.Fatalf("unexpected cross-column move result %#v", cross)
	}

	dup := runJSON[app.DuplicateResult](t, env, "task", "duplicate", a.ID)
	if dup.Task.Title != "A (copy)" || dup.Scope.Scope.Kind != domain.ScopeSprint {
		t.Fatalf("unexpected duplicate %#v", dup)
	}

	sprint := runJSON[domain.ScopeSnapshot](t, env, "sprint", "s1")
	gotIDs := make([]string, 0, len(sprint.Tasks))
	for _, task := range sprint.Tasks {
		gotIDs = append(gotIDs, task.ID)
	}
	if want := []string{a.ID, dup.Task.ID, b.ID}; strings.Join(gotIDs, ",") != strings.Join(want, ",") {
		t.Fatalf("sprint order = %v, want %v", gotIDs, want)
	}

	deleted := runJSON[app.DeleteResult](t, env, "task", "delete", c.ID)
	for i, task := range deleted.Column.Tasks {
		if task.Position != i+1 {
			t.Fatalf("column not dense after delete: %#v", deleted.Column.Tasks)
		}
	}

	history := runJSON[[]domain.HistoryRecord](t, env, "task", "history", c.ID)
	if len(history) == 0 || history[0].Field != domain.FieldCreated || history[len(history)-1].Field != domain.FieldDeleted {
		t.Fatalf("unexpected history %#v", history)
	}
	if history[0].ActorID != "cli-user" {
		t.Fatalf("expected --actor recorded, got %q", history[0].ActorID)
	}

	report := runJSON[app.RepairReport](t, env, "resequence")
	if report.PositionRows != 0 || report.SprintOrderRows != 0 {
		t.Fatalf("expected no repairs on a consistent board, got %#v", report)
	}
}

// TestRunTaskUpdateClearsFields verifies --clear-* flags null optional fields.
func TestRunTaskUpdateClearsFields(t *testing.T) {
	env := newCLIEnv(t)
	task := runJSON[domain.Task](t, env, "task", "create", "--title", "A", "--sprint", "s1", "--assignee", "u1", "--due", "2026-03-01")
	if task.DueAt == nil || !task.DueAt.Equal(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected due date %v", task.DueAt)
	}

	updated := runJSON[domain.Task](t, env, "task", "update", task.ID, "--clear-sprint", "--clear-assignee", "--title", "A2")
	if updated.SprintID != nil || updated.SprintOrder != nil || updated.AssigneeID != nil {
		t.Fatalf("expected cleared sprint and assignee, got %#v", updated)
	}
	if updated.Title != "A2" || updated.DueAt == nil {
		t.Fatalf("expected untouched fields to survive, got %#v", updated)
	}

	backlog := runJSON[domain.ScopeSnapshot](t, env, "sprint")
	if len(backlog.Tasks) != 1 || backlog.Tasks[0].ID != task.ID {
		t.Fatalf("expected task in backlog, got %#v", backlog.Tasks)
	}
}

// TestRunTaskCommandsRequireActor verifies mutations without an actor are rejected.
func TestRunTaskCommandsRequireActor(t *testing.T) {
	env := newCLIEnv(t)
	args := []string{"--db", env.dbPath, "--config", env.cfg, "task", "create", "--title", "A"}
	if err := run(context.Background(), args, io.Discard, io.Discard); err == nil {
		t.Fatal("expected missing actor error")
	}

	t.Setenv("SPRINTBOARD_ACTOR", "env-user")
	var out bytes.Buffer
	if err := run(context.Background(), args, &out, io.Discard); err != nil {
		t.Fatalf("run(create with env actor) error = %v", err)
	}
	if !strings.Contains(out.String(), `"created_by": "env-user"`) {
		t.Fatalf("expected env actor in output, got %q", out.String())
	}
}

// TestRunSprintMoveRequiresTarget verifies flag groups on sprint-move.
func TestRunSprintMoveRequiresTarget(t *testing.T) {
	env := newCLIEnv(t)
	args := []string{"--db", env.dbPath, "--config", env.cfg, "--actor", "u", "task", "sprint-move", "x"}
	if err := run(context.Background(), args, io.Discard, io.Discard); err == nil {
		t.Fatal("expected missing --sprint/--backlog error")
	}
}

// TestRunConfigAndDBEnvOverrides verifies env-driven config and database paths.
func TestRunConfigAndDBEnvOverrides(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("SPRINTBOARD_HOME", tmp)
	dbPath := filepath.Join(tmp, "env.db")
	cfgPath := filepath.Join(tmp, "env.toml")
	cfgContent := "[database]\npath = \"/tmp/ignore-me.db\"\n\n[board]\nticket_prefix = \"CFG\"\n"
	if err := os.WriteFile(cfgPath, []byte(cfgContent), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	t.Setenv("SPRINTBOARD_CONFIG", cfgPath)
	t.Setenv("SPRINTBOARD_DATABASE_PATH", dbPath)

	var out bytes.Buffer
	err := run(context.Background(), []string{"--actor", "u", "task", "create", "--title", "A"}, &out, io.Discard)
	if err != nil {
		t.Fatalf("run(create with env paths) error = %v", err)
	}
	if _, err := os.Stat(dbPath); err != nil {
		t.Fatalf("expected db created at env path, stat error %v", err)
	}
	if !strings.Contains(out.String(), `"ticket": "CFG-0001"`) {
		t.Fatalf("expected config ticket prefix, got %q", out.String())
	}
}

// TestLoadRuntimeConfigDBFlagForcesSQLite verifies --db wins over a postgres config.
func TestLoadRuntimeConfigDBFlagForcesSQLite(t *testing.T) {
	tmp := t.TempDir()
	cfgPath := filepath.Join(tmp, "pg.toml")
	content := "[database]\ndriver = \"postgres\"\ndsn = \"postgres://localhost/board\"\n"
	if err := os.WriteFile(cfgPath, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	paths, err := resolvePaths(globalOptions{appName: "sprintboard"})
	if err != nil {
		t.Fatalf("resolvePaths() error = %v", err)
	}

	cfg, gotPath, err := loadRuntimeConfig(globalOptions{configPath: cfgPath}, paths)
	if err != nil {
		t.Fatalf("loadRuntimeConfig() error = %v", err)
	}
	if gotPath != cfgPath || cfg.Database.Driver != config.DriverPostgres {
		t.Fatalf("expected postgres config from %q, got %q %#v", cfgPath, gotPath, cfg.Database)
	}

	cfg, _, err = loadRuntimeConfig(globalOptions{configPath: cfgPath, dbPath: filepath.Join(tmp, "x.db")}, paths)
	if err != nil {
		t.Fatalf("loadRuntimeConfig(--db) error = %v", err)
	}
	if cfg.Database.Driver != config.DriverSQLite || cfg.Database.Path != filepath.Join(tmp, "x.db") {
		t.Fatalf("expected --db to force sqlite, got %#v", cfg.Database)
	}
}

// TestRunRejectsInvalidLoggingLevelFromConfig verifies behavior for the covered scenario.
func TestRunRejectsInvalidLoggingLevelFromConfig(t *testing.T) {
	env := newCLIEnv(t)
	if err := os.WriteFile(env.cfg, []byte("[logging]\nlevel = \"loud\"\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	err := run(context.Background(), []string{"--db", env.dbPath, "--config", env.cfg, "board"}, io.Discard, io.Discard)
	if err == nil || !strings.Contains(err.Error(), "logging.level") {
		t.Fatalf("expected logging level error, got %v", err)
	}
}

// TestRunDevModeCreatesWorkspaceLogFile verifies behavior for the covered scenario.
func TestRunDevModeCreatesWorkspaceLogFile(t *testing.T) {
	env := newCLIEnv(t)
	workspace := t.TempDir()
	t.Chdir(workspace)

	err := run(context.Background(), []string{"--dev", "--db", env.dbPath, "--config", env.cfg, "board"}, io.Discard, io.Discard)
	if err != nil {
		t.Fatalf("run() error = %v", err)
	}

	content := readDevLog(t, workspace)
	if !strings.Contains(content, "configuration loaded") {
		t.Fatalf("expected runtime lifecycle entries in log file, got %q", content)
	}
}

// TestRunDevModeLogsRepairsToFile verifies service self-heal warnings reach the dev log file.
func TestRunDevModeLogsRepairsToFile(t *testing.T) {
	env := newCLIEnv(t)
	runJSON[domain.Task](t, env, "task", "create", "--title", "A")
	runJSON[domain.Task](t, env, "task", "create", "--title", "B")

	db, err := sql.Open("sqlite", env.dbPath)
	if err != nil {
		t.Fatalf("sql.Open() error = %v", err)
	}
	if _, err := db.Exec(`UPDATE tasks SET position = position * 10`); err != nil {
		t.Fatalf("corrupt positions: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("db.Close() error = %v", err)
	}

	workspace := t.TempDir()
	t.Chdir(workspace)
	var stderr bytes.Buffer
	err = run(context.Background(), []string{"--dev", "--db", env.dbPath, "--config", env.cfg, "resequence"}, io.Discard, &stderr)
	if err != nil {
		t.Fatalf("run() error = %v", err)
	}

	content := readDevLog(t, workspace)
	if !strings.Contains(content, "scope ordering repaired") {
		t.Fatalf("expected repair warning in log file, got %q", content)
	}
	if !strings.Contains(stderr.String(), "scope ordering repaired") {
		t.Fatalf("expected repair warning on console, got %q", stderr.String())
	}
}

// readDevLog returns the single dev log file written under workspace.
func readDevLog(t *testing.T, workspace string) string {
	t.Helper()
	logDir := filepath.Join(workspace, ".sprintboard", "log")
	entries, err := os.ReadDir(logDir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	var logPath string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".log") {
			logPath = filepath.Join(logDir, entry.Name())
			break
		}
	}
	if logPath == "" {
		t.Fatalf("expected a .log file in %s, got %v", logDir, entries)
	}
	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	return string(content)
}

// TestRuntimeLoggerSkipsFileOutsideDevMode verifies the file sink only opens in dev mode.
func TestRuntimeLoggerSkipsFileOutsideDevMode(t *testing.T) {
	var stderr bytes.Buffer
	cfg := config.LoggingConfig{Level: "debug", DevFile: config.DevFileConfig{Enabled: true, Dir: t.TempDir()}}
	logger, err := newRuntimeLogger(&stderr, "sprintboard", false, cfg, nil)
	if err != nil {
		t.Fatalf("newRuntimeLogger() error = %v", err)
	}
	logger.Debug("console event", "k", "v")
	if logger.DevLogPath() != "" {
		t.Fatalf("expected no dev log path, got %q", logger.DevLogPath())
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !strings.Contains(stderr.String(), "console event") {
		t.Fatalf("expected console output, got %q", stderr.String())
	}
}

// TestWorkspaceRootFromUsesNearestMarker verifies workspace-root resolution behavior.
func TestWorkspaceRootFromUsesNearestMarker(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "go.mod"), []byte("module example.com/test\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	nested := filepath.Join(root, "cmd", "sprintboard")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if got := workspaceRootFrom(nested); filepath.Clean(got) != filepath.Clean(root) {
		t.Fatalf("expected workspace root %q, got %q", root, got)
	}
}

// TestDevLogFilePathResolvesAgainstWorkspaceRoot verifies relative log dirs anchor at workspace root.
func TestDevLogFilePathResolvesAgainstWorkspaceRoot(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "go.mod"), []byte("module example.com/test\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	nested := filepath.Join(root, "cmd", "sprintboard")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	t.Chdir(nested)

	got, err := devLogFilePath(".sprintboard/log", "sprint board", time.Date(2026, 2, 22, 12, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("devLogFilePath() error = %v", err)
	}
	normalize := func(p string) string {
		return strings.TrimPrefix(filepath.Clean(p), "/private")
	}
	want := filepath.Join(root, ".sprintboard", "log", "sprint-board-20260222.log")
	if normalize(got) != normalize(want) {
		t.Fatalf("devLogFilePath() = %q, want %q", got, want)
	}
}

// TestParseBoolEnv verifies behavior for the covered scenario.
func TestParseBoolEnv(t *testing.T) {
	t.Setenv("SPRINTBOARD_BOOL_TEST", "true")
	if got, ok := parseBoolEnv("SPRINTBOARD_BOOL_TEST"); !ok || !got {
		t.Fatalf("expected true/ok, got %t/%t", got, ok)
	}
	t.Setenv("SPRINTBOARD_BOOL_TEST", "maybe")
	if _, ok := parseBoolEnv("SPRINTBOARD_BOOL_TEST"); ok {
		t.Fatal("expected invalid bool to be ignored")
	}
	if _, ok := parseBoolEnv("SPRINTBOARD_BOOL_UNSET"); ok {
		t.Fatal("expected unset env to be ignored")
	}
}

// TestParseDue verifies accepted due formats.
func TestParseDue(t *testing.T) {
	got, err := parseDue("2026-04-01T10:30:00+02:00")
	if err != nil || !got.Equal(time.Date(2026, 4, 1, 8, 30, 0, 0, time.UTC)) {
		t.Fatalf("parseDue(RFC3339) = %v, %v", got, err)
	}
	if _, err := parseDue("next week"); err == nil {
		t.Fatal("expected parse error")
	}
}
