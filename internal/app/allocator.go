package app

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/evanschultz/sprintboard/internal/domain"
)

// SprintOrderAllocator computes sprint_order values. Orders only need to be unique inside a
// sprint bucket, so inserts touch one row where possible.
type SprintOrderAllocator struct {
	observer Observer
}

// NewSprintOrderAllocator constructs an allocator reporting to observer.
func NewSprintOrderAllocator(observer Observer) *SprintOrderAllocator {
	if observer == nil {
		observer = NopObserver{}
	}
	return &SprintOrderAllocator{observer: observer}
}

// AppendToSprint is the end-of-sprint policy: max+1, or 1 for an empty sprint. Backlog tasks
// are not sprint-ordered and get nil.
func (a *SprintOrderAllocator) AppendToSprint(ctx context.Context, tx Tx, sprintID *string) (*float64, error) {
	if sprintID == nil {
		return nil, nil
	}
	current, err := tx.MaxSprintOrder(ctx, *sprintID)
	if err != nil {
		return nil, fmt.Errorf("max sprint order %s: %w", *sprintID, err)
	}
	next := 1.0
	if current != nil {
		next = *current + 1
	}
	return &next, nil
}

// InsertAfter is the shift policy: every order in the sprint greater than ref moves up by one
// and the caller receives ref+1. A nil ref falls back to AppendToSprint.
func (a *SprintOrderAllocator) InsertAfter(ctx context.Context, tx Tx, sprintID *string, ref *float64) (*float64, error) {
	if sprintID == nil {
		return nil, nil
	}
	if ref == nil {
		return a.AppendToSprint(ctx, tx, sprintID)
	}
	if err := tx.ShiftSprintOrders(ctx, *sprintID, *ref, 1); err != nil {
		return nil, fmt.Errorf("shift sprint %s after %v: %w", *sprintID, *ref, err)
	}
	next := *ref + 1
	return &next, nil
}

// PlaceAfter positions taskID directly after anchor (or first when anchor is nil) using a
// midpoint between neighbours. When the gap has collapsed it falls back to the shift policy.
func (a *SprintOrderAllocator) PlaceAfter(ctx context.Context, tx Tx, sprintID string, taskID string, anchor *domain.Task) (*float64, error) {
	tasks, err := tx.ListBySprint(ctx, &sprintID)
	if err != nil {
		return nil, fmt.Errorf("list sprint %s: %w", sprintID, err)
	}
	ordered := make([]float64, 0, len(tasks))
	for _, task := range sortSprint(tasks) {
		if task.ID == taskID || task.SprintOrder == nil {
			continue
		}
		ordered = append(ordered, *task.SprintOrder)
	}

	if anchor == nil {
		if len(ordered) == 0 {
			return a.AppendToSprint(ctx, tx, &sprintID)
		}
		first := ordered[0] - 1
		return &first, nil
	}
	if anchor.SprintOrder == nil {
		return a.AppendToSprint(ctx, tx, &sprintID)
	}

	ref := *anchor.SprintOrder
	var next *float64
	for _, order := range ordered {
		if order > ref {
			next = &order
			break
		}
	}
	if mid, ok := Between(ref, next); ok {
		return &mid, nil
	}
	return a.InsertAfter(ctx, tx, &sprintID, &ref)
}

// Between is the midpoint policy. It returns a value strictly between prev and next, or
// prev+1 when next is nil. ok is false when float precision leaves no room.
func Between(prev float64, next *float64) (float64, bool) {
	if next == nil {
		return prev + 1, true
	}
	mid := prev + (*next-prev)/2
	if mid <= prev || mid >= *next {
		return 0, false
	}
	return mid, true
}

// Resequence implements ScopeResequencer for sprint scopes. Duplicate orders are bumped to
// previous+1 in (order, id) sequence so relative order survives; unique orders are untouched.
func (a *SprintOrderAllocator) Resequence(ctx context.Context, tx Tx, scope domain.Scope) (domain.ScopeSnapshot, error) {
	if scope.Kind != domain.ScopeSprint {
		return domain.ScopeSnapshot{}, fmt.Errorf("%w: %s", ErrInvalidScope, scope)
	}
	snapshot, _, err := a.resequence(ctx, tx, scope)
	return snapshot, err
}

func (a *SprintOrderAllocator) resequence(ctx context.Context, tx Tx, scope domain.Scope) (domain.ScopeSnapshot, int, error) {
	tasks, err := tx.ListBySprint(ctx, scope.SprintID)
	if err != nil {
		return domain.ScopeSnapshot{}, 0, fmt.Errorf("list %s: %w", scope, err)
	}
	ordered, updates := uniqueSprintOrders(tasks)
	if len(updates) > 0 {
		if err := tx.SetSprintOrders(ctx, updates); err != nil {
			return domain.ScopeSnapshot{}, 0, fmt.Errorf("rewrite %s: %w", scope, err)
		}
	}
	a.observer.ObserveResequence(domain.ScopeSprint, len(updates))
	return domain.ScopeSnapshot{Scope: scope, Tasks: ordered}, len(updates), nil
}

// uniqueSprintOrders returns the bucket in display order and the rows that had to be bumped.
func uniqueSprintOrders(tasks []domain.Task) ([]domain.Task, []SprintOrderUpdate) {
	ordered := sortSprint(tasks)
	updates := make([]SprintOrderUpdate, 0)
	var prev *float64
	for i := range ordered {
		if ordered[i].SprintOrder == nil {
			continue
		}
		cur := *ordered[i].SprintOrder
		if prev != nil && cur <= *prev {
			cur = *prev + 1
			ordered[i].SprintOrder = &cur
			updates = append(updates, SprintOrderUpdate{TaskID: ordered[i].ID, SprintOrder: cur})
		}
		last := cur
		prev = &last
	}
	return ordered, updates
}

func sortSprint(tasks []domain.Task) []domain.Task {
	ordered := slices.Clone(tasks)
	slices.SortStableFunc(ordered, compareSprintOrder)
	return ordered
}

func compareSprintOrder(a, b domain.Task) int {
	switch {
	case a.SprintOrder == nil && b.SprintOrder != nil:
		return 1
	case a.SprintOrder != nil && b.SprintOrder == nil:
		return -1
	case a.SprintOrder != nil && b.SprintOrder != nil:
		if c := cmp.Compare(*a.SprintOrder, *b.SprintOrder); c != 0 {
			return c
		}
	}
	return strings.Compare(a.ID, b.ID)
}
