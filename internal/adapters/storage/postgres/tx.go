package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/evanschultz/sprintboard/internal/app"
	"github.com/evanschultz/sprintboard/internal/domain"
)

const taskColumns = `id, ticket, ticket_number, title, description, status, position, priority, assignee_id,
    sprint_id, sprint_order, effort, timespent, due_at, completed_at, created_by, created_at, updated_at`

// txStore implements app.Tx over one pgx transaction.
type txStore struct {
	tx pgx.Tx
}

var _ app.Tx = (*txStore)(nil)

func (s *txStore) LockTask(ctx context.Context, id string) (domain.Task, error) {
	return s.getTask(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1 FOR UPDATE`, id)
}

func (s *txStore) GetTask(ctx context.Context, id string) (domain.Task, error) {
	return s.getTask(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id)
}

func (s *txStore) getTask(ctx context.Context, query, id string) (domain.Task, error) {
	rows, err := s.tx.Query(ctx, query, id)
	if err != nil {
		return domain.Task{}, err
	}
	task, err := pgx.CollectExactlyOneRow(rows, scanTask)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Task{}, app.ErrNotFound
	}
	return task, err
}

func (s *txStore) InsertTask(ctx context.Context, t domain.Task) error {
	_, err := s.tx.Exec(ctx, `
INSERT INTO tasks (`+taskColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
`, t.ID, t.Ticket, t.TicketNumber, t.Title, t.Description, string(t.Status), t.Position, string(t.Priority),
		t.AssigneeID, t.SprintID, t.SprintOrder, t.Effort, t.TimeSpent, utcPtr(t.DueAt), utcPtr(t.CompletedAt),
		t.CreatedBy, t.CreatedAt.UTC(), t.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert task %s: %w", t.ID, err)
	}
	return nil
}

func (s *txStore) UpdateTask(ctx context.Context, t domain.Task) error {
	tag, err := s.tx.Exec(ctx, `
UPDATE tasks
SET title = $2, description = $3, status = $4, position = $5, priority = $6, assignee_id = $7, sprint_id = $8,
    sprint_order = $9, effort = $10, timespent = $11, due_at = $12, completed_at = $13, updated_at = $14
WHERE id = $1
`, t.ID, t.Title, t.Description, string(t.Status), t.Position, string(t.Priority), t.AssigneeID, t.SprintID,
		t.SprintOrder, t.Effort, t.TimeSpent, utcPtr(t.DueAt), utcPtr(t.CompletedAt), t.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("update task %s: %w", t.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return app.ErrNotFound
	}
	return nil
}

func (s *txStore) DeleteTask(ctx context.Context, id string) error {
	tag, err := s.tx.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete task %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return app.ErrNotFound
	}
	return nil
}

func (s *txStore) ListByStatus(ctx context.Context, status domain.Status) ([]domain.Task, error) {
	rows, err := s.tx.Query(ctx, `
SELECT `+taskColumns+`
FROM tasks
WHERE status = $1
ORDER BY position ASC, id COLLATE "C" ASC
`, string(status))
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanTask)
}

func (s *txStore) ListBySprint(ctx context.Context, sprintID *string) ([]domain.Task, error) {
	rows, err := s.tx.Query(ctx, `
SELECT `+taskColumns+`
FROM tasks
WHERE sprint_id IS NOT DISTINCT FROM $1
ORDER BY sprint_order ASC NULLS LAST, id COLLATE "C" ASC
`, sprintID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanTask)
}

func (s *txStore) ListSprintIDs(ctx context.Context) ([]string, error) {
	rows, err := s.tx.Query(ctx, `SELECT DISTINCT sprint_id FROM tasks WHERE sprint_id IS NOT NULL ORDER BY sprint_id`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// SetPositions batches one UPDATE per changed row.
func (s *txStore) SetPositions(ctx context.Context, updates []app.PositionUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, update := range updates {
		batch.Queue(`UPDATE tasks SET position = $2 WHERE id = $1`, update.TaskID, update.Position)
	}
	if err := s.tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("set positions: %w", err)
	}
	return nil
}

// SetSprintOrders batches one UPDATE per changed row.
func (s *txStore) SetSprintOrders(ctx context.Context, updates []app.SprintOrderUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, update := range updates {
		batch.Queue(`UPDATE tasks SET sprint_order = $2 WHERE id = $1`, update.TaskID, update.SprintOrder)
	}
	if err := s.tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("set sprint orders: %w", err)
	}
	return nil
}

func (s *txStore) ShiftPositions(ctx context.Context, status domain.Status, after, delta int) error {
	_, err := s.tx.Exec(ctx, `UPDATE tasks SET position = position + $3 WHERE status = $1 AND position > $2`, string(status), after, delta)
	return err
}

func (s *txStore) ShiftSprintOrders(ctx context.Context, sprintID string, after, delta float64) error {
	_, err := s.tx.Exec(ctx, `UPDATE tasks SET sprint_order = sprint_order + $3 WHERE sprint_id = $1 AND sprint_order > $2`, sprintID, after, delta)
	return err
}

func (s *txStore) MaxPosition(ctx context.Context, status domain.Status) (int, error) {
	var out int
	err := s.tx.QueryRow(ctx, `SELECT COALESCE(MAX(position), 0) FROM tasks WHERE status = $1`, string(status)).Scan(&out)
	return out, err
}

func (s *txStore) MaxSprintOrder(ctx context.Context, sprintID string) (*float64, error) {
	var out *float64
	if err := s.tx.QueryRow(ctx, `SELECT MAX(sprint_order) FROM tasks WHERE sprint_id = $1`, sprintID).Scan(&out); err != nil {
		return nil, err
	}
	return out, nil
}

// NextTicketNumber bumps the one-row ticket counter; concurrent creators serialize on it.
func (s *txStore) NextTicketNumber(ctx context.Context) (int, error) {
	var out int
	err := s.tx.QueryRow(ctx, `
INSERT INTO ticket_sequence (id, last_number)
VALUES (1, (SELECT COALESCE(MAX(ticket_number), 0) + 1 FROM tasks))
ON CONFLICT (id) DO UPDATE
SET last_number = GREATEST(ticket_sequence.last_number, (SELECT COALESCE(MAX(ticket_number), 0) FROM tasks)) + 1
RETURNING last_number
`).Scan(&out)
	if err != nil {
		return 0, fmt.Errorf("next ticket number: %w", err)
	}
	return out, nil
}

func (s *txStore) AppendHistory(ctx context.Context, record domain.HistoryRecord) (domain.HistoryRecord, error) {
	changedAt := record.ChangedAt.UTC()
	if record.ChangedAt.IsZero() {
		changedAt = time.Now().UTC()
	}
	err := s.tx.QueryRow(ctx, `
INSERT INTO task_history (task_id, actor_id, field_name, old_value, new_value, changed_at)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, changed_at
`, record.TaskID, record.ActorID, record.Field, record.OldValue, record.NewValue, changedAt).Scan(&record.ID, &record.ChangedAt)
	if err != nil {
		return domain.HistoryRecord{}, fmt.Errorf("append history: %w", err)
	}
	record.ChangedAt = record.ChangedAt.UTC()
	return record, nil
}

func (s *txStore) ListHistory(ctx context.Context, taskID string) ([]domain.HistoryRecord, error) {
	rows, err := s.tx.Query(ctx, `
SELECT id, task_id, actor_id, field_name, old_value, new_value, changed_at
FROM task_history
WHERE task_id = $1
ORDER BY id ASC
`, taskID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.HistoryRecord, error) {
		var record domain.HistoryRecord
		err := row.Scan(&record.ID, &record.TaskID, &record.ActorID, &record.Field, &record.OldValue, &record.NewValue, &record.ChangedAt)
		record.ChangedAt = record.ChangedAt.UTC()
		return record, err
	})
}

func scanTask(row pgx.CollectableRow) (domain.Task, error) {
	var (
		t        domain.Task
		status   string
		priority string
	)
	err := row.Scan(
		&t.ID,
		&t.Ticket,
		&t.TicketNumber,
		&t.Title,
		&t.Description,
		&status,
		&t.Position,
		&priority,
		&t.AssigneeID,
		&t.SprintID,
		&t.SprintOrder,
		&t.Effort,
		&t.TimeSpent,
		&t.DueAt,
		&t.CompletedAt,
		&t.CreatedBy,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return domain.Task{}, err
	}
	t.Status = domain.Status(status)
	t.Priority = domain.Priority(priority)
	t.DueAt = utcPtr(t.DueAt)
	t.CompletedAt = utcPtr(t.CompletedAt)
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	return t, nil
}

func utcPtr(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	out := v.UTC()
	return &out
}
