package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/evanschultz/sprintboard/internal/app"
	"github.com/evanschultz/sprintboard/internal/domain"
)

const taskColumns = `id, ticket, ticket_number, title, description, status, position, priority, assignee_id,
	sprint_id, sprint_order, effort, timespent, due_at, completed_at, created_by, created_at, updated_at`

// txStore implements app.Tx over one sqlite transaction.
type txStore struct {
	tx *sql.Tx
}

var _ app.Tx = (*txStore)(nil)

// LockTask reads one task. The IMMEDIATE transaction already holds the database write lock.
func (s *txStore) LockTask(ctx context.Context, id string) (domain.Task, error) {
	return getTaskByID(ctx, s.tx, id)
}

// GetTask returns one task.
func (s *txStore) GetTask(ctx context.Context, id string) (domain.Task, error) {
	return getTaskByID(ctx, s.tx, id)
}

// InsertTask inserts one task row.
func (s *txStore) InsertTask(ctx context.Context, t domain.Task) error {
	_, err := s.tx.ExecContext(ctx, `
		INSERT INTO tasks(`+taskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		t.ID,
		t.Ticket,
		t.TicketNumber,
		t.Title,
		t.Description,
		string(t.Status),
		t.Position,
		string(t.Priority),
		nullableString(t.AssigneeID),
		nullableString(t.SprintID),
		nullableFloat(t.SprintOrder),
		nullableFloat(t.Effort),
		nullableFloat(t.TimeSpent),
		nullableTS(t.DueAt),
		nullableTS(t.CompletedAt),
		t.CreatedBy,
		ts(t.CreatedAt),
		ts(t.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert task %s: %w", t.ID, err)
	}
	return nil
}

// UpdateTask rewrites every mutable column of one task.
func (s *txStore) UpdateTask(ctx context.Context, t domain.Task) error {
	res, err := s.tx.ExecContext(ctx, `
		UPDATE tasks
		SET title = ?, description = ?, status = ?, position = ?, priority = ?, assignee_id = ?, sprint_id = ?,
			sprint_order = ?, effort = ?, timespent = ?, due_at = ?, completed_at = ?, updated_at = ?
		WHERE id = ?
	`,
		t.Title,
		t.Description,
		string(t.Status),
		t.Position,
		string(t.Priority),
		nullableString(t.AssigneeID),
		nullableString(t.SprintID),
		nullableFloat(t.SprintOrder),
		nullableFloat(t.Effort),
		nullableFloat(t.TimeSpent),
		nullableTS(t.DueAt),
		nullableTS(t.CompletedAt),
		ts(t.UpdatedAt),
		t.ID,
	)
	if err != nil {
		return fmt.Errorf("update task %s: %w", t.ID, err)
	}
	return translateNoRows(res)
}

// DeleteTask deletes task.
func (s *txStore) DeleteTask(ctx context.Context, id string) error {
	res, err := s.tx.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete task %s: %w", id, err)
	}
	return translateNoRows(res)
}

// ListByStatus returns one Kanban column in position order.
func (s *txStore) ListByStatus(ctx context.Context, status domain.Status) ([]domain.Task, error) {
	rows, err := s.tx.QueryContext(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		WHERE status = ?
		ORDER BY position ASC, id ASC
	`, string(status))
	if err != nil {
		return nil, err
	}
	return collectTasks(rows)
}

// ListBySprint returns one sprint bucket in sprint order; nil selects the backlog.
func (s *txStore) ListBySprint(ctx context.Context, sprintID *string) ([]domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE sprint_id IS NULL ORDER BY sprint_order ASC NULLS LAST, id ASC`
	args := []any{}
	if sprintID != nil {
		query = `SELECT ` + taskColumns + ` FROM tasks WHERE sprint_id = ? ORDER BY sprint_order ASC NULLS LAST, id ASC`
		args = append(args, *sprintID)
	}
	rows, err := s.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectTasks(rows)
}

// ListSprintIDs returns every sprint that currently holds a task.
func (s *txStore) ListSprintIDs(ctx context.Context) ([]string, error) {
	rows, err := s.tx.QueryContext(ctx, `SELECT DISTINCT sprint_id FROM tasks WHERE sprint_id IS NOT NULL ORDER BY sprint_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// SetPositions rewrites the given positions.
func (s *txStore) SetPositions(ctx context.Context, updates []app.PositionUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	stmt, err := s.tx.PrepareContext(ctx, `UPDATE tasks SET position = ? WHERE id = ?`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, update := range updates {
		if _, err := stmt.ExecContext(ctx, update.Position, update.TaskID); err != nil {
			return fmt.Errorf("set position %s: %w", update.TaskID, err)
		}
	}
	return nil
}

// SetSprintOrders rewrites the given sprint orders.
func (s *txStore) SetSprintOrders(ctx context.Context, updates []app.SprintOrderUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	stmt, err := s.tx.PrepareContext(ctx, `UPDATE tasks SET sprint_order = ? WHERE id = ?`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, update := range updates {
		if _, err := stmt.ExecContext(ctx, update.SprintOrder, update.TaskID); err != nil {
			return fmt.Errorf("set sprint order %s: %w", update.TaskID, err)
		}
	}
	return nil
}

// ShiftPositions handles shift positions.
func (s *txStore) ShiftPositions(ctx context.Context, status domain.Status, after, delta int) error {
	_, err := s.tx.ExecContext(ctx, `UPDATE tasks SET position = position + ? WHERE status = ? AND position > ?`, delta, string(status), after)
	return err
}

// ShiftSprintOrders handles shift sprint orders.
func (s *txStore) ShiftSprintOrders(ctx context.Context, sprintID string, after, delta float64) error {
	_, err := s.tx.ExecContext(ctx, `UPDATE tasks SET sprint_order = sprint_order + ? WHERE sprint_id = ? AND sprint_order > ?`, delta, sprintID, after)
	return err
}

// MaxPosition returns the highest position in status, or 0.
func (s *txStore) MaxPosition(ctx context.Context, status domain.Status) (int, error) {
	var out int
	err := s.tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(position), 0) FROM tasks WHERE status = ?`, string(status)).Scan(&out)
	return out, err
}

// MaxSprintOrder returns the highest order in the sprint, or nil when it has none.
func (s *txStore) MaxSprintOrder(ctx context.Context, sprintID string) (*float64, error) {
	var out sql.NullFloat64
	if err := s.tx.QueryRowContext(ctx, `SELECT MAX(sprint_order) FROM tasks WHERE sprint_id = ?`, sprintID).Scan(&out); err != nil {
		return nil, err
	}
	return parseNullFloat(out), nil
}

// NextTicketNumber bumps the persisted ticket counter. Boards created before the counter
// existed start from the highest ticket still in tasks.
func (s *txStore) NextTicketNumber(ctx context.Context) (int, error) {
	var out int
	err := s.tx.QueryRowContext(ctx, `
		INSERT INTO ticket_sequence(id, last_number)
		VALUES (1, (SELECT COALESCE(MAX(ticket_number), 0) + 1 FROM tasks))
		ON CONFLICT(id) DO UPDATE SET
			last_number = MAX(ticket_sequence.last_number, (SELECT COALESCE(MAX(ticket_number), 0) FROM tasks)) + 1
		RETURNING last_number
	`).Scan(&out)
	if err != nil {
		return 0, fmt.Errorf("next ticket number: %w", err)
	}
	return out, nil
}

// AppendHistory inserts one history row.
func (s *txStore) AppendHistory(ctx context.Context, record domain.HistoryRecord) (domain.HistoryRecord, error) {
	res, err := s.tx.ExecContext(ctx, `
		INSERT INTO task_history(task_id, actor_id, field_name, old_value, new_value, changed_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		record.TaskID,
		record.ActorID,
		record.Field,
		nullableString(record.OldValue),
		nullableString(record.NewValue),
		ts(normalizeEventTS(record.ChangedAt)),
	)
	if err != nil {
		return domain.HistoryRecord{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.HistoryRecord{}, err
	}
	record.ID = id
	record.ChangedAt = normalizeEventTS(record.ChangedAt)
	return record, nil
}

// ListHistory returns one task's history in insertion order.
func (s *txStore) ListHistory(ctx context.Context, taskID string) ([]domain.HistoryRecord, error) {
	rows, err := s.tx.QueryContext(ctx, `
		SELECT id, task_id, actor_id, field_name, old_value, new_value, changed_at
		FROM task_history
		WHERE task_id = ?
		ORDER BY id ASC
	`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.HistoryRecord, 0)
	for rows.Next() {
		var (
			record     domain.HistoryRecord
			oldRaw     sql.NullString
			newRaw     sql.NullString
			changedRaw string
		)
		if err := rows.Scan(&record.ID, &record.TaskID, &record.ActorID, &record.Field, &oldRaw, &newRaw, &changedRaw); err != nil {
			return nil, err
		}
		record.OldValue = parseNullString(oldRaw)
		record.NewValue = parseNullString(newRaw)
		record.ChangedAt = parseTS(changedRaw)
		out = append(out, record)
	}
	return out, rows.Err()
}

// scanner represents scanner data used by this package.
type scanner interface {
	Scan(dest ...any) error
}

// queryRower represents a read-only DB contract used by DB and Tx implementations.
type queryRower interface {
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

// getTaskByID returns one task row.
func getTaskByID(ctx context.Context, q queryRower, id string) (domain.Task, error) {
	row := q.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	return scanTask(row)
}

func collectTasks(rows *sql.Rows) ([]domain.Task, error) {
	defer rows.Close()
	out := make([]domain.Task, 0)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, task)
	}
	return out, rows.Err()
}

// scanTask handles scan task.
func scanTask(s scanner) (domain.Task, error) {
	var (
		t            domain.Task
		status       string
		priority     string
		assignee     sql.NullString
		sprintID     sql.NullString
		sprintOrder  sql.NullFloat64
		effort       sql.NullFloat64
		timeSpent    sql.NullFloat64
		dueRaw       sql.NullString
		completedRaw sql.NullString
		createdRaw   string
		updatedRaw   string
	)
	if err := s.Scan(
		&t.ID,
		&t.Ticket,
		&t.TicketNumber,
		&t.Title,
		&t.Description,
		&status,
		&t.Position,
		&priority,
		&assignee,
		&sprintID,
		&sprintOrder,
		&effort,
		&timeSpent,
		&dueRaw,
		&completedRaw,
		&t.CreatedBy,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Task{}, app.ErrNotFound
		}
		return domain.Task{}, err
	}
	t.Status = domain.Status(status)
	t.Priority = domain.Priority(priority)
	t.AssigneeID = parseNullString(assignee)
	t.SprintID = parseNullString(sprintID)
	t.SprintOrder = parseNullFloat(sprintOrder)
	t.Effort = parseNullFloat(effort)
	t.TimeSpent = parseNullFloat(timeSpent)
	t.DueAt = parseNullTS(dueRaw)
	t.CompletedAt = parseNullTS(completedRaw)
	t.CreatedAt = parseTS(createdRaw)
	t.UpdatedAt = parseTS(updatedRaw)
	return t, nil
}

// translateNoRows handles translate no rows.
func translateNoRows(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return app.ErrNotFound
	}
	return nil
}

// normalizeEventTS defaults unset timestamps to now.
func normalizeEventTS(in time.Time) time.Time {
	if in.IsZero() {
		return time.Now().UTC()
	}
	return in.UTC()
}

// ts handles ts.
func ts(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// nullableTS handles nullable ts.
func nullableTS(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func nullableString(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

// parseTS parses input into a normalized form.
func parseTS(v string) time.Time {
	ts, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return ts.UTC()
}

// parseNullTS parses input into a normalized form.
func parseNullTS(v sql.NullString) *time.Time {
	if !v.Valid || strings.TrimSpace(v.String) == "" {
		return nil
	}
	ts := parseTS(v.String)
	return &ts
}

func parseNullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	out := v.String
	return &out
}

func parseNullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	out := v.Float64
	return &out
}
