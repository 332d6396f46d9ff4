package app

import (
	"context"

	"github.com/evanschultz/sprintboard/internal/domain"
)

// Store opens transactions against the relational store. Implementations commit when fn
// returns nil and roll back otherwise; nothing fn wrote is visible after a rollback.
type Store interface {
	WithinTx(ctx context.Context, fn func(Tx) error) error
}

// PositionUpdate rewrites one task's Kanban position.
type PositionUpdate struct {
	TaskID   string
	Position int
}

// SprintOrderUpdate rewrites one task's sprint order.
type SprintOrderUpdate struct {
	TaskID      string
	SprintOrder float64
}

// Tx is the set of row-level primitives the ordering engine composes inside one transaction.
type Tx interface {
	// LockTask reads one task and holds its row lock until the transaction ends.
	LockTask(ctx context.Context, id string) (domain.Task, error)
	GetTask(ctx context.Context, id string) (domain.Task, error)
	InsertTask(ctx context.Context, task domain.Task) error
	UpdateTask(ctx context.Context, task domain.Task) error
	DeleteTask(ctx context.Context, id string) error

	// ListByStatus returns the column ordered by (position ASC, id ASC).
	ListByStatus(ctx context.Context, status domain.Status) ([]domain.Task, error)
	// ListBySprint returns the bucket ordered by (sprint_order ASC NULLS LAST, id ASC).
	ListBySprint(ctx context.Context, sprintID *string) ([]domain.Task, error)
	ListSprintIDs(ctx context.Context) ([]string, error)

	SetPositions(ctx context.Context, updates []PositionUpdate) error
	SetSprintOrders(ctx context.Context, updates []SprintOrderUpdate) error
	// ShiftPositions adds delta to every position in status strictly greater than after.
	ShiftPositions(ctx context.Context, status domain.Status, after, delta int) error
	// ShiftSprintOrders adds delta to every order in the sprint strictly greater than after.
	ShiftSprintOrders(ctx context.Context, sprintID string, after, delta float64) error

	MaxPosition(ctx context.Context, status domain.Status) (int, error)
	MaxSprintOrder(ctx context.Context, sprintID string) (*float64, error)
	// NextTicketNumber bumps and returns the board's ticket counter. The counter never moves
	// backwards, so numbers of deleted tasks are not issued again.
	NextTicketNumber(ctx context.Context) (int, error)

	AppendHistory(ctx context.Context, record domain.HistoryRecord) (domain.HistoryRecord, error)
	ListHistory(ctx context.Context, taskID string) ([]domain.HistoryRecord, error)
}
