package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/evanschultz/sprintboard/internal/domain"
)

// DefaultCopySuffix marks the title of a duplicated task.
const DefaultCopySuffix = " (copy)"

// ServiceConfig holds configuration for service.
type ServiceConfig struct {
	TicketPrefix string
	TicketWidth  int
	CopySuffix   string
	Logger       Logger
	Observer     Observer
}

// Logger is the leveled sink operations report to. *log.Logger satisfies it.
type Logger interface {
	Debug(msg any, keyvals ...any)
	Info(msg any, keyvals ...any)
	Warn(msg any, keyvals ...any)
	Error(msg any, keyvals ...any)
}

// IDGenerator returns unique identifiers for new entities.
type IDGenerator func() string

// Clock returns the current time.
type Clock func() time.Time

// Service coordinates every ordering-affecting mutation. Each operation runs inside one store
// transaction: lock, mutate, resequence the affected scopes, audit, commit.
type Service struct {
	store        Store
	idGen        IDGenerator
	clock        Clock
	positions    *PositionResequencer
	sprints      *SprintOrderAllocator
	audit        *AuditLog
	ticketPrefix string
	ticketWidth  int
	copySuffix   string
	logger       Logger
	observer     Observer
}

// NewService constructs a new value for this package.
func NewService(store Store, idGen IDGenerator, clock Clock, cfg ServiceConfig) *Service {
	if idGen == nil {
		idGen = func() string { return "" }
	}
	if clock == nil {
		clock = time.Now
	}
	if strings.TrimSpace(cfg.TicketPrefix) == "" {
		cfg.TicketPrefix = domain.DefaultTicketPrefix
	}
	if cfg.TicketWidth <= 0 {
		cfg.TicketWidth = domain.DefaultTicketWidth
	}
	if cfg.CopySuffix == "" {
		cfg.CopySuffix = DefaultCopySuffix
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(io.Discard)
	}
	if cfg.Observer == nil {
		cfg.Observer = NopObserver{}
	}
	return &Service{
		store:        store,
		idGen:        idGen,
		clock:        clock,
		positions:    NewPositionResequencer(cfg.Observer),
		sprints:      NewSprintOrderAllocator(cfg.Observer),
		audit:        NewAuditLog(clock),
		ticketPrefix: strings.TrimSpace(cfg.TicketPrefix),
		ticketWidth:  cfg.TicketWidth,
		copySuffix:   cfg.CopySuffix,
		logger:       cfg.Logger,
		observer:     cfg.Observer,
	}
}

// CreateTaskInput holds input values for create task operations.
type CreateTaskInput struct {
	ActorID     string
	Status      domain.Status
	SprintID    *string
	Title       string
	Description string
	Priority    domain.Priority
	AssigneeID  *string
	Effort      *float64
	TimeSpent   *float64
	DueAt       *time.Time
}

// UpdateTaskInput holds a partial update. Nil pointers leave a field unchanged; Patch fields
// distinguish "absent" from "set to null".
type UpdateTaskInput struct {
	TaskID      string
	ActorID     string
	Title       *string
	Description *string
	Status      *domain.Status
	Priority    *domain.Priority
	AssigneeID  domain.Patch[string]
	SprintID    domain.Patch[string]
	SprintOrder domain.Patch[float64]
	Effort      domain.Patch[float64]
	TimeSpent   domain.Patch[float64]
	DueAt       domain.Patch[time.Time]
}

// MoveTaskInput holds input values for move task operations. Position is a 1-based rank in
// the target column; values beyond the column size land at the end.
type MoveTaskInput struct {
	TaskID   string
	ActorID  string
	Status   domain.Status
	Position int
}

// MoveResult carries the moved task and the affected columns, old column first.
type MoveResult struct {
	Task    domain.Task     `json:"task"`
	Columns []domain.Column `json:"columns"`
}

// DeleteTaskInput holds input values for delete task operations.
type DeleteTaskInput struct {
	TaskID  string
	ActorID string
}

// DeleteResult carries the deleted task as it was before removal and the closed-up column.
type DeleteResult struct {
	Task   domain.Task   `json:"task"`
	Column domain.Column `json:"column"`
}

// DuplicateTaskInput holds input values for duplicate task operations.
type DuplicateTaskInput struct {
	TaskID  string
	ActorID string
}

// DuplicateResult carries the copy and the scope it should be shown in: its sprint bucket when
// it landed in a sprint, otherwise its status column.
type DuplicateResult struct {
	Task  domain.Task          `json:"task"`
	Scope domain.ScopeSnapshot `json:"scope"`
}

// ReorderInSprintInput places a task in a sprint list directly after AfterTaskID, or first
// when AfterTaskID is empty. A nil SprintID moves the task to the backlog.
type ReorderInSprintInput struct {
	TaskID      string
	ActorID     string
	SprintID    *string
	AfterTaskID string
}

// SprintResult carries the reordered task and its sprint bucket.
type SprintResult struct {
	Task   domain.Task          `json:"task"`
	Sprint domain.ScopeSnapshot `json:"sprint"`
}

// RepairReport counts the rows rewritten by ResequenceAll.
type RepairReport struct {
	Columns         int `json:"columns"`
	Sprints         int `json:"sprints"`
	PositionRows    int `json:"position_rows"`
	SprintOrderRows int `json:"sprint_order_rows"`
}

// CreateTask appends a task to the end of its status column (and sprint, if any).
func (s *Service) CreateTask(ctx context.Context, in CreateTaskInput) (domain.Task, error) {
	actorID, err := resolveActor(ctx, in.ActorID)
	if err != nil {
		return domain.Task{}, err
	}
	if in.Status == "" {
		in.Status = domain.StatusTodo
	}
	if !in.Status.Valid() {
		return domain.Task{}, domain.ErrInvalidStatus
	}
	sprintID, err := domain.NormalizeSprintID(in.SprintID)
	if err != nil {
		return domain.Task{}, err
	}

	var created domain.Task
	err = s.run(ctx, "create", func(tx Tx) error {
		maxPosition, err := tx.MaxPosition(ctx, in.Status)
		if err != nil {
			return err
		}
		ticketNumber, err := s.nextTicketNumber(ctx, tx)
		if err != nil {
			return err
		}
		order, err := s.sprints.AppendToSprint(ctx, tx, sprintID)
		if err != nil {
			return err
		}
		task, err := domain.NewTask(domain.TaskInput{
			ID:           s.idGen(),
			Ticket:       domain.FormatTicket(s.ticketPrefix, s.ticketWidth, ticketNumber),
			TicketNumber: ticketNumber,
			Title:        in.Title,
			Description:  in.Description,
			Status:       in.Status,
			Position:     maxPosition + 1,
			Priority:     in.Priority,
			AssigneeID:   in.AssigneeID,
			SprintID:     sprintID,
			SprintOrder:  order,
			Effort:       in.Effort,
			TimeSpent:    in.TimeSpent,
			DueAt:        in.DueAt,
			CreatedBy:    actorID,
		}, s.clock())
		if err != nil {
			return err
		}
		if err := tx.InsertTask(ctx, task); err != nil {
			return err
		}
		column, repaired, err := s.positions.Column(ctx, tx, task.Status)
		if err != nil {
			return err
		}
		s.warnRepaired("create", domain.StatusScope(task.Status), repaired)
		if err := s.audit.Record(ctx, tx, task.ID, actorID, domain.FieldCreated, nil, domain.StringValue("Task created")); err != nil {
			return err
		}
		created = findTask(column.Tasks, task.ID, task)
		return nil
	})
	if err != nil {
		return domain.Task{}, err
	}
	return created, nil
}

// UpdateTask applies a partial update and records one history entry per changed field.
func (s *Service) UpdateTask(ctx context.Context, in UpdateTaskInput) (domain.Task, error) {
	actorID, err := resolveActor(ctx, in.ActorID)
	if err != nil {
		return domain.Task{}, err
	}
	taskID, err := requireTaskID(in.TaskID)
	if err != nil {
		return domain.Task{}, err
	}

	var updated domain.Task
	err = s.run(ctx, "update", func(tx Tx) error {
		prev, err := tx.LockTask(ctx, taskID)
		if err != nil {
			return err
		}
		now := s.clock()
		next, err := s.applyPatch(ctx, tx, prev, in, now)
		if err != nil {
			return err
		}
		changes := domain.DiffTracked(prev, next)
		if len(changes) == 0 {
			updated = prev
			return nil
		}
		next.UpdatedAt = now.UTC()
		if err := tx.UpdateTask(ctx, next); err != nil {
			return err
		}

		if _, repaired, err := s.positions.Column(ctx, tx, prev.Status); err != nil {
			return err
		} else if prev.Status == next.Status {
			s.warnRepaired("update", domain.StatusScope(prev.Status), repaired)
		}
		if next.Status != prev.Status {
			if _, _, err := s.positions.Column(ctx, tx, next.Status); err != nil {
				return err
			}
		}
		if sprintFieldsChanged(changes) {
			if _, err := s.sprints.Resequence(ctx, tx, domain.SprintScope(next.SprintID)); err != nil {
				return err
			}
		}

		// Resequencing may bump the requested sprint order, so history diffs the stored row.
		final, err := tx.GetTask(ctx, prev.ID)
		if err != nil {
			return err
		}
		if err := s.audit.RecordChanges(ctx, tx, prev.ID, actorID, domain.DiffTracked(prev, final)); err != nil {
			return err
		}
		updated = final
		return nil
	})
	if err != nil {
		return domain.Task{}, err
	}
	return updated, nil
}

// applyPatch returns prev with the update applied. A status change keeps the stored position
// number and the task is ordered into the new column by (position, id).
func (s *Service) applyPatch(ctx context.Context, tx Tx, prev domain.Task, in UpdateTaskInput, now time.Time) (domain.Task, error) {
	next := prev
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return domain.Task{}, domain.ErrInvalidTitle
		}
		next.Title = title
	}
	if in.Description != nil {
		next.Description = strings.TrimSpace(*in.Description)
	}
	if in.Priority != nil {
		if !domain.ValidPriority(*in.Priority) {
			return domain.Task{}, domain.ErrInvalidPriority
		}
		next.Priority = *in.Priority
	}
	if in.Status != nil {
		if !in.Status.Valid() {
			return domain.Task{}, domain.ErrInvalidStatus
		}
		next.SetStatus(*in.Status, now)
	}
	next.AssigneeID = in.AssigneeID.Apply(prev.AssigneeID)
	next.Effort = in.Effort.Apply(prev.Effort)
	next.TimeSpent = in.TimeSpent.Apply(prev.TimeSpent)
	if in.DueAt.Set {
		next.DueAt = nil
		if in.DueAt.Value != nil {
			due := in.DueAt.Value.UTC().Truncate(time.Second)
			next.DueAt = &due
		}
	}

	sprintID, err := domain.NormalizeSprintID(in.SprintID.Apply(prev.SprintID))
	if err != nil {
		return domain.Task{}, err
	}
	next.SprintID = sprintID
	switch {
	case sprintID == nil:
		next.SprintOrder = nil
	case in.SprintOrder.Set:
		next.SprintOrder = in.SprintOrder.Apply(prev.SprintOrder)
	case !domain.SameSprint(prev.SprintID, sprintID):
		order, err := s.sprints.AppendToSprint(ctx, tx, sprintID)
		if err != nil {
			return domain.Task{}, err
		}
		next.SprintOrder = order
	}
	return next, nil
}

// MoveTask places a task at a rank in a status column, possibly changing its status.
func (s *Service) MoveTask(ctx context.Context, in MoveTaskInput) (MoveResult, error) {
	actorID, err := resolveActor(ctx, in.ActorID)
	if err != nil {
		return MoveResult{}, err
	}
	taskID, err := requireTaskID(in.TaskID)
	if err != nil {
		return MoveResult{}, err
	}
	if in.Position < 1 {
		return MoveResult{}, domain.ErrInvalidPosition
	}
	if !in.Status.Valid() {
		return MoveResult{}, domain.ErrInvalidStatus
	}

	var out MoveResult
	err = s.run(ctx, "move", func(tx Tx) error {
		prev, err := tx.LockTask(ctx, taskID)
		if err != nil {
			return err
		}
		now := s.clock()
		next := prev
		next.SetStatus(in.Status, now)
		next.Position = in.Position
		next.UpdatedAt = now.UTC()
		if err := tx.UpdateTask(ctx, next); err != nil {
			return err
		}

		columns := make([]domain.Column, 0, 2)
		statusChanged := prev.Status != next.Status
		if statusChanged {
			oldColumn, _, err := s.positions.Column(ctx, tx, prev.Status)
			if err != nil {
				return err
			}
			columns = append(columns, oldColumn)
		}
		newColumn, _, err := s.positions.Place(ctx, tx, next.Status, prev.ID, in.Position)
		if err != nil {
			return err
		}
		columns = append(columns, newColumn)
		final := findTask(newColumn.Tasks, prev.ID, next)

		if statusChanged {
			if err := s.audit.Record(ctx, tx, prev.ID, actorID, domain.FieldStatus,
				domain.StringValue(string(prev.Status)), domain.StringValue(string(final.Status))); err != nil {
				return err
			}
		}
		if final.Position != prev.Position {
			if err := s.audit.Record(ctx, tx, prev.ID, actorID, domain.FieldPosition,
				domain.IntValue(prev.Position), domain.IntValue(final.Position)); err != nil {
				return err
			}
		}
		out = MoveResult{Task: final, Columns: columns}
		return nil
	})
	if err != nil {
		return MoveResult{}, err
	}
	return out, nil
}

// DeleteTask removes a task and closes the gap it leaves in its column. History rows outlive
// the task.
func (s *Service) DeleteTask(ctx context.Context, in DeleteTaskInput) (DeleteResult, error) {
	actorID, err := resolveActor(ctx, in.ActorID)
	if err != nil {
		return DeleteResult{}, err
	}
	taskID, err := requireTaskID(in.TaskID)
	if err != nil {
		return DeleteResult{}, err
	}

	var out DeleteResult
	err = s.run(ctx, "delete", func(tx Tx) error {
		prev, err := tx.LockTask(ctx, taskID)
		if err != nil {
			return err
		}
		if err := s.audit.Record(ctx, tx, prev.ID, actorID, domain.FieldDeleted, nil,
			domain.StringValue("Task deleted: "+prev.Title)); err != nil {
			return err
		}
		if err := tx.DeleteTask(ctx, prev.ID); err != nil {
			return err
		}
		column, _, err := s.positions.Column(ctx, tx, prev.Status)
		if err != nil {
			return err
		}
		out = DeleteResult{Task: prev, Column: column}
		return nil
	})
	if err != nil {
		return DeleteResult{}, err
	}
	return out, nil
}

// DuplicateTask inserts a copy directly below the source in its column and directly after it
// in its sprint.
func (s *Service) DuplicateTask(ctx context.Context, in DuplicateTaskInput) (DuplicateResult, error) {
	actorID, err := resolveActor(ctx, in.ActorID)
	if err != nil {
		return DuplicateResult{}, err
	}
	taskID, err := requireTaskID(in.TaskID)
	if err != nil {
		return DuplicateResult{}, err
	}

	var out DuplicateResult
	err = s.run(ctx, "duplicate", func(tx Tx) error {
		src, err := tx.LockTask(ctx, taskID)
		if err != nil {
			return err
		}
		order, err := s.sprints.InsertAfter(ctx, tx, src.SprintID, src.SprintOrder)
		if err != nil {
			return err
		}
		if err := tx.ShiftPositions(ctx, src.Status, src.Position, 1); err != nil {
			return err
		}
		ticketNumber, err := s.nextTicketNumber(ctx, tx)
		if err != nil {
			return err
		}
		dup, err := domain.NewTask(domain.TaskInput{
			ID:           s.idGen(),
			Ticket:       domain.FormatTicket(s.ticketPrefix, s.ticketWidth, ticketNumber),
			TicketNumber: ticketNumber,
			Title:        src.Title + s.copySuffix,
			Description:  src.Description,
			Status:       src.Status,
			Position:     src.Position + 1,
			Priority:     src.Priority,
			AssigneeID:   src.AssigneeID,
			SprintID:     src.SprintID,
			SprintOrder:  order,
			Effort:       src.Effort,
			TimeSpent:    src.TimeSpent,
			CreatedBy:    actorID,
		}, s.clock())
		if err != nil {
			return err
		}
		if err := tx.InsertTask(ctx, dup); err != nil {
			return err
		}
		if err := s.audit.Record(ctx, tx, dup.ID, actorID, domain.FieldCreated, nil,
			domain.StringValue("Created as duplicate of "+src.Ticket)); err != nil {
			return err
		}
		column, repaired, err := s.positions.Column(ctx, tx, src.Status)
		if err != nil {
			return err
		}
		s.warnRepaired("duplicate", domain.StatusScope(src.Status), repaired)
		dup = findTask(column.Tasks, dup.ID, dup)

		scope := domain.ScopeSnapshot{Scope: domain.StatusScope(column.Status), Tasks: column.Tasks}
		if dup.SprintID != nil {
			tasks, err := tx.ListBySprint(ctx, dup.SprintID)
			if err != nil {
				return err
			}
			scope = domain.ScopeSnapshot{Scope: domain.SprintScope(dup.SprintID), Tasks: tasks}
		}
		out = DuplicateResult{Task: dup, Scope: scope}
		return nil
	})
	if err != nil {
		return DuplicateResult{}, err
	}
	return out, nil
}

// ReorderInSprint moves a task inside or into a sprint list.
func (s *Service) ReorderInSprint(ctx context.Context, in ReorderInSprintInput) (SprintResult, error) {
	actorID, err := resolveActor(ctx, in.ActorID)
	if err != nil {
		return SprintResult{}, err
	}
	taskID, err := requireTaskID(in.TaskID)
	if err != nil {
		return SprintResult{}, err
	}
	sprintID, err := domain.NormalizeSprintID(in.SprintID)
	if err != nil {
		return SprintResult{}, err
	}
	afterID := strings.TrimSpace(in.AfterTaskID)
	if afterID == taskID {
		return SprintResult{}, ErrSelfAnchoredMove
	}

	var out SprintResult
	err = s.run(ctx, "reorder_sprint", func(tx Tx) error {
		prev, err := tx.LockTask(ctx, taskID)
		if err != nil {
			return err
		}
		next := prev
		next.SprintID = sprintID
		next.SprintOrder = nil
		if sprintID != nil {
			var anchor *domain.Task
			if afterID != "" {
				found, err := tx.GetTask(ctx, afterID)
				if err != nil {
					return err
				}
				if !domain.SameSprint(found.SprintID, sprintID) {
					return ErrSprintMismatch
				}
				anchor = &found
			}
			order, err := s.sprints.PlaceAfter(ctx, tx, *sprintID, prev.ID, anchor)
			if err != nil {
				return err
			}
			next.SprintOrder = order
		}

		if len(domain.DiffTracked(prev, next)) > 0 {
			next.UpdatedAt = s.clock().UTC()
			if err := tx.UpdateTask(ctx, next); err != nil {
				return err
			}
		}
		snapshot, err := s.sprints.Resequence(ctx, tx, domain.SprintScope(sprintID))
		if err != nil {
			return err
		}
		final := findTask(snapshot.Tasks, prev.ID, next)
		if err := s.audit.RecordChanges(ctx, tx, prev.ID, actorID, domain.DiffTracked(prev, final)); err != nil {
			return err
		}
		out = SprintResult{Task: final, Sprint: snapshot}
		return nil
	})
	if err != nil {
		return SprintResult{}, err
	}
	return out, nil
}

// GetTask returns one task.
func (s *Service) GetTask(ctx context.Context, taskID string) (domain.Task, error) {
	taskID, err := requireTaskID(taskID)
	if err != nil {
		return domain.Task{}, err
	}
	var task domain.Task
	err = s.run(ctx, "get", func(tx Tx) error {
		task, err = tx.GetTask(ctx, taskID)
		return err
	})
	return task, err
}

// ListColumn returns one status column ordered by position.
func (s *Service) ListColumn(ctx context.Context, status domain.Status) (domain.Column, error) {
	if !status.Valid() {
		return domain.Column{}, domain.ErrInvalidStatus
	}
	var column domain.Column
	err := s.run(ctx, "list_column", func(tx Tx) error {
		tasks, err := tx.ListByStatus(ctx, status)
		if err != nil {
			return err
		}
		column = domain.Column{Status: status, Tasks: tasks}
		return nil
	})
	return column, err
}

// ListBoard returns every column in board order.
func (s *Service) ListBoard(ctx context.Context) ([]domain.Column, error) {
	var columns []domain.Column
	err := s.run(ctx, "list_board", func(tx Tx) error {
		columns = make([]domain.Column, 0, len(domain.Statuses()))
		for _, status := range domain.Statuses() {
			tasks, err := tx.ListByStatus(ctx, status)
			if err != nil {
				return err
			}
			columns = append(columns, domain.Column{Status: status, Tasks: tasks})
		}
		return nil
	})
	return columns, err
}

// ListSprint returns one sprint bucket in sprint order; a nil sprintID selects the backlog.
func (s *Service) ListSprint(ctx context.Context, sprintID *string) (domain.ScopeSnapshot, error) {
	sprintID, err := domain.NormalizeSprintID(sprintID)
	if err != nil {
		return domain.ScopeSnapshot{}, err
	}
	var snapshot domain.ScopeSnapshot
	err = s.run(ctx, "list_sprint", func(tx Tx) error {
		tasks, err := tx.ListBySprint(ctx, sprintID)
		if err != nil {
			return err
		}
		snapshot = domain.ScopeSnapshot{Scope: domain.SprintScope(sprintID), Tasks: tasks}
		return nil
	})
	return snapshot, err
}

// ListHistory returns a task's history in insertion order. History of deleted tasks remains
// readable.
func (s *Service) ListHistory(ctx context.Context, taskID string) ([]domain.HistoryRecord, error) {
	taskID, err := requireTaskID(taskID)
	if err != nil {
		return nil, err
	}
	var records []domain.HistoryRecord
	err = s.run(ctx, "list_history", func(tx Tx) error {
		records, err = tx.ListHistory(ctx, taskID)
		return err
	})
	return records, err
}

// ResequenceAll repairs every status column and sprint bucket in one transaction.
func (s *Service) ResequenceAll(ctx context.Context) (RepairReport, error) {
	var report RepairReport
	err := s.run(ctx, "resequence_all", func(tx Tx) error {
		report = RepairReport{}
		for _, status := range domain.Statuses() {
			_, rewritten, err := s.positions.Column(ctx, tx, status)
			if err != nil {
				return err
			}
			s.warnRepaired("resequence_all", domain.StatusScope(status), rewritten)
			report.Columns++
			report.PositionRows += rewritten
		}
		sprintIDs, err := tx.ListSprintIDs(ctx)
		if err != nil {
			return err
		}
		scopes := []domain.Scope{domain.SprintScope(nil)}
		for _, id := range sprintIDs {
			scopes = append(scopes, domain.SprintScope(&id))
		}
		for _, scope := range scopes {
			_, rewritten, err := s.sprints.resequence(ctx, tx, scope)
			if err != nil {
				return err
			}
			s.warnRepaired("resequence_all", scope, rewritten)
			report.Sprints++
			report.SprintOrderRows += rewritten
		}
		return nil
	})
	if err != nil {
		return RepairReport{}, err
	}
	return report, nil
}

// Resequencer returns the ordering strategy for scope kind.
func (s *Service) Resequencer(kind domain.ScopeKind) (ScopeResequencer, error) {
	switch kind {
	case domain.ScopeStatus:
		return s.positions, nil
	case domain.ScopeSprint:
		return s.sprints, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidScope, kind)
	}
}

// run executes fn in one transaction and reports the outcome.
func (s *Service) run(ctx context.Context, op string, fn func(Tx) error) error {
	started := time.Now()
	err := s.store.WithinTx(ctx, fn)
	s.observer.ObserveOperation(op, time.Since(started), err)
	if err != nil && !errors.Is(err, ErrNotFound) {
		s.logger.Debug("operation rolled back", "op", op, "err", err)
	}
	return err
}

func (s *Service) nextTicketNumber(ctx context.Context, tx Tx) (int, error) {
	number, err := tx.NextTicketNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("allocate ticket number: %w", err)
	}
	return number, nil
}

// warnRepaired logs when a pass that should have been a no-op found the scope damaged.
func (s *Service) warnRepaired(op string, scope domain.Scope, rewritten int) {
	if rewritten == 0 {
		return
	}
	s.logger.Warn("scope ordering repaired", "op", op, "scope", scope.String(), "rows", rewritten)
}

func requireTaskID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", domain.ErrInvalidID
	}
	return id, nil
}

func sprintFieldsChanged(changes []domain.FieldChange) bool {
	return slices.ContainsFunc(changes, func(c domain.FieldChange) bool {
		return c.Field == domain.FieldSprintID || c.Field == domain.FieldSprintOrder
	})
}

// findTask returns the task with id from tasks, or fallback when absent.
func findTask(tasks []domain.Task, id string, fallback domain.Task) domain.Task {
	if idx := slices.IndexFunc(tasks, func(t domain.Task) bool { return t.ID == id }); idx >= 0 {
		return tasks[idx]
	}
	return fallback
}
