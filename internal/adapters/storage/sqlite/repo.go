package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/evanschultz/sprintboard/internal/app"
)

// driverName defines a package constant value.
const driverName = "sqlite"

// DefaultBusyTimeout bounds how long a writer waits for the database write lock.
const DefaultBusyTimeout = 5 * time.Second

// Options tunes the sqlite connection.
type Options struct {
	BusyTimeout time.Duration
}

// Repository is the sqlite-backed app.Store. Every transaction begins IMMEDIATE, so the
// database write lock serializes writers and doubles as the per-task row lock.
type Repository struct {
	db *sql.DB
}

var _ app.Store = (*Repository)(nil)

// Open opens the database at path, creating parent directories and schema as needed.
func Open(path string, opts Options) (*Repository, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}
	db, err := sql.Open(driverName, dsn(path, opts, true))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	return newRepository(db)
}

// OpenInMemory opens a private in-memory database. Connections share one cache, so the pool
// is pinned to a single connection.
func OpenInMemory() (*Repository, error) {
	name := "sprintboard-" + uuid.NewString()
	raw := dsn(name, Options{}, false)
	db, err := sql.Open(driverName, raw+"&mode=memory&cache=shared")
	if err != nil {
		return nil, fmt.Errorf("open sqlite memory: %w", err)
	}
	db.SetMaxOpenConns(1)
	return newRepository(db)
}

func newRepository(db *sql.DB) (*Repository, error) {
	repo := &Repository{db: db}
	if err := repo.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// dsn renders a modernc sqlite DSN with the pragmas every connection needs.
func dsn(path string, opts Options, wal bool) string {
	timeout := opts.BusyTimeout
	if timeout <= 0 {
		timeout = DefaultBusyTimeout
	}
	q := url.Values{}
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", timeout.Milliseconds()))
	if wal {
		q.Add("_pragma", "journal_mode(WAL)")
	}
	q.Set("_txlock", "immediate")
	return "file:" + path + "?" + q.Encode()
}

// Close closes the requested operation.
func (r *Repository) Close() error {
	return r.db.Close()
}

// Ping reports whether the database answers.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// WithinTx runs fn in one IMMEDIATE transaction and commits when fn succeeds.
func (r *Repository) WithinTx(ctx context.Context, fn func(app.Tx) error) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin sqlite tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(&txStore{tx: tx}); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit sqlite tx: %w", err)
	}
	return nil
}

// migrate handles migrate.
func (r *Repository) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS tasks (
			id TEXT PRIMARY KEY,
			ticket TEXT NOT NULL UNIQUE,
			ticket_number INTEGER NOT NULL,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			position INTEGER NOT NULL,
			priority TEXT NOT NULL DEFAULT 'medium',
			assignee_id TEXT,
			sprint_id TEXT,
			sprint_order REAL,
			effort REAL,
			due_at TEXT,
			completed_at TEXT,
			created_by TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		// task_history.task_id carries no foreign key: history outlives deleted tasks.
		`CREATE TABLE IF NOT EXISTS task_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			task_id TEXT NOT NULL,
			actor_id TEXT NOT NULL,
			field_name TEXT NOT NULL,
			old_value TEXT,
			new_value TEXT,
			changed_at TEXT NOT NULL
		);`,
		// ticket_sequence holds one row; deletes never lower it.
		`CREATE TABLE IF NOT EXISTS ticket_sequence (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			last_number INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_status_position ON tasks(status, position, id);`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_sprint_order ON tasks(sprint_id, sprint_order, id);`,
		`CREATE INDEX IF NOT EXISTS idx_task_history_task ON task_history(task_id, id);`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate sqlite: %w", err)
		}
	}
	// timespent shipped after the first schema.
	if _, err := r.db.ExecContext(ctx, `ALTER TABLE tasks ADD COLUMN timespent REAL`); err != nil && !isDuplicateColumnErr(err) {
		return fmt.Errorf("migrate sqlite add tasks.timespent: %w", err)
	}
	return nil
}

// isDuplicateColumnErr reports whether the expected condition is satisfied.
func isDuplicateColumnErr(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "duplicate column name")
}
