package app

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/evanschultz/sprintboard/internal/domain"
)

// ScopeResequencer restores the ordering invariant of one scope and returns the scope in
// display order. Both ordering strategies implement it.
type ScopeResequencer interface {
	Resequence(ctx context.Context, tx Tx, scope domain.Scope) (domain.ScopeSnapshot, error)
}

// PositionResequencer renumbers a status column to the dense sequence 1..N.
type PositionResequencer struct {
	observer Observer
}

// NewPositionResequencer constructs a resequencer reporting to observer.
func NewPositionResequencer(observer Observer) *PositionResequencer {
	if observer == nil {
		observer = NopObserver{}
	}
	return &PositionResequencer{observer: observer}
}

// Resequence implements ScopeResequencer for status scopes.
func (r *PositionResequencer) Resequence(ctx context.Context, tx Tx, scope domain.Scope) (domain.ScopeSnapshot, error) {
	if scope.Kind != domain.ScopeStatus || !scope.Status.Valid() {
		return domain.ScopeSnapshot{}, fmt.Errorf("%w: %s", ErrInvalidScope, scope)
	}
	column, _, err := r.resequence(ctx, tx, scope.Status, nil)
	if err != nil {
		return domain.ScopeSnapshot{}, err
	}
	return domain.ScopeSnapshot{Scope: scope, Tasks: column.Tasks}, nil
}

// Column resequences status and returns the column.
func (r *PositionResequencer) Column(ctx context.Context, tx Tx, status domain.Status) (domain.Column, int, error) {
	return r.resequence(ctx, tx, status, nil)
}

// Place resequences status with taskID pinned at the 1-based rank, clamped to the column size.
func (r *PositionResequencer) Place(ctx context.Context, tx Tx, status domain.Status, taskID string, rank int) (domain.Column, int, error) {
	return r.resequence(ctx, tx, status, &placement{taskID: taskID, rank: rank})
}

func (r *PositionResequencer) resequence(ctx context.Context, tx Tx, status domain.Status, pin *placement) (domain.Column, int, error) {
	tasks, err := tx.ListByStatus(ctx, status)
	if err != nil {
		return domain.Column{}, 0, fmt.Errorf("list column %s: %w", status, err)
	}
	ordered, updates := densePositions(tasks, pin)
	if len(updates) > 0 {
		if err := tx.SetPositions(ctx, updates); err != nil {
			return domain.Column{}, 0, fmt.Errorf("rewrite column %s: %w", status, err)
		}
	}
	r.observer.ObserveResequence(domain.ScopeStatus, len(updates))
	return domain.Column{Status: status, Tasks: ordered}, len(updates), nil
}

// placement pins one task at an insertion rank during a resequence pass.
type placement struct {
	taskID string
	rank   int
}

// densePositions orders tasks by (position, id), applies the optional pin, and assigns
// positions 1..N. It returns the ordered tasks and the rows whose position changed.
func densePositions(tasks []domain.Task, pin *placement) ([]domain.Task, []PositionUpdate) {
	ordered := slices.Clone(tasks)
	slices.SortStableFunc(ordered, comparePosition)
	if pin != nil {
		if idx := slices.IndexFunc(ordered, func(t domain.Task) bool { return t.ID == pin.taskID }); idx >= 0 {
			moved := ordered[idx]
			ordered = slices.Delete(ordered, idx, idx+1)
			at := min(max(pin.rank-1, 0), len(ordered))
			ordered = slices.Insert(ordered, at, moved)
		}
	}
	updates := make([]PositionUpdate, 0)
	for i := range ordered {
		want := i + 1
		if ordered[i].Position == want {
			continue
		}
		ordered[i].Position = want
		updates = append(updates, PositionUpdate{TaskID: ordered[i].ID, Position: want})
	}
	return ordered, updates
}

func comparePosition(a, b domain.Task) int {
	if c := cmp.Compare(a.Position, b.Position); c != 0 {
		return c
	}
	return strings.Compare(a.ID, b.ID)
}
