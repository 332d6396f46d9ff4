package postgres

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/evanschultz/sprintboard/internal/app"
)

// DefaultMaxTxAttempts bounds how often a transaction is replayed after a serialization
// failure.
const DefaultMaxTxAttempts = 5

// SQLSTATE codes that mean "replay the whole transaction".
const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

// Options tunes the postgres store.
type Options struct {
	MaxTxAttempts int
	Logger        app.Logger
}

// Store is the postgres-backed app.Store. Transactions run SERIALIZABLE, row locks are taken
// with SELECT ... FOR UPDATE, and conflicting transactions are replayed from the start.
type Store struct {
	pool        *pgxpool.Pool
	maxAttempts int
	logger      app.Logger
}

var _ app.Store = (*Store)(nil)

// Open connects to dsn, verifies the connection, and ensures the schema.
func Open(ctx context.Context, dsn string, opts Options) (*Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("postgres dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	store := New(pool, opts)
	if err := store.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

// New wraps an existing pool.
func New(pool *pgxpool.Pool, opts Options) *Store {
	if opts.MaxTxAttempts <= 0 {
		opts.MaxTxAttempts = DefaultMaxTxAttempts
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	return &Store{pool: pool, maxAttempts: opts.MaxTxAttempts, logger: opts.Logger}
}

// Close releases every pooled connection.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Ping reports whether the database answers.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// EnsureSchema creates the tables and indexes if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	statements := []string{
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
    sprint_order DOUBLE PRECISION,
    effort DOUBLE PRECISION,
    timespent DOUBLE PRECISION,
    due_at TIMESTAMPTZ,
    completed_at TIMESTAMPTZ,
    created_by TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL
);`,
		`CREATE TABLE IF NOT EXISTS task_history (
    id BIGSERIAL PRIMARY KEY,
    task_id TEXT NOT NULL,
    actor_id TEXT NOT NULL,
    field_name TEXT NOT NULL,
    old_value TEXT,
    new_value TEXT,
    changed_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`,
		`CREATE TABLE IF NOT EXISTS ticket_sequence (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    last_number INTEGER NOT NULL
);`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_status_position ON tasks (status, position, id);`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_sprint_order ON tasks (sprint_id, sprint_order, id);`,
		`CREATE INDEX IF NOT EXISTS idx_task_history_task ON task_history (task_id, id);`,
	}
	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure postgres schema: %w", err)
		}
	}
	return nil
}

// WithinTx runs fn in a SERIALIZABLE transaction, replaying it on serialization failures and
// deadlocks up to the configured attempt count.
func (s *Store) WithinTx(ctx context.Context, fn func(app.Tx) error) error {
	for attempt := 1; ; attempt++ {
		err := s.runOnce(ctx, fn)
		if err == nil || !retryable(err) || attempt >= s.maxAttempts {
			return err
		}
		s.logger.Debug("replaying postgres transaction", "attempt", attempt, "err", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * 10 * time.Millisecond):
		}
	}
}

func (s *Store) runOnce(ctx context.Context, fn func(app.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return fmt.Errorf("begin postgres tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := fn(&txStore{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit postgres tx: %w", err)
	}
	return nil
}

func retryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == codeSerializationFailure || pgErr.Code == codeDeadlockDetected
}
