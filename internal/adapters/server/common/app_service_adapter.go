package common

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/evanschultz/sprintboard/internal/app"
	"github.com/evanschultz/sprintboard/internal/domain"
)

// AppServiceAdapter maps transport contracts onto app.Service.
type AppServiceAdapter struct {
	service *app.Service
}

var _ BoardService = (*AppServiceAdapter)(nil)

// NewAppServiceAdapter builds one common adapter over an app.Service instance.
func NewAppServiceAdapter(service *app.Service) *AppServiceAdapter {
	return &AppServiceAdapter{service: service}
}

// CreateTask creates one task at the end of its column.
func (a *AppServiceAdapter) CreateTask(ctx context.Context, in CreateTaskRequest) (domain.Task, error) {
	if err := a.ready(); err != nil {
		return domain.Task{}, err
	}
	status, err := parseOptionalStatus(in.Status)
	if err != nil {
		return domain.Task{}, err
	}
	task, err := a.service.CreateTask(ctx, app.CreateTaskInput{
		ActorID:     in.ActorID,
		Status:      status,
		SprintID:    in.SprintID,
		Title:       in.Title,
		Description: in.Description,
		Priority:    parsePriority(in.Priority),
		AssigneeID:  in.AssigneeID,
		Effort:      in.Effort,
		TimeSpent:   in.TimeSpent,
		DueAt:       in.DueAt,
	})
	if err != nil {
		return domain.Task{}, mapAppError("create task", err)
	}
	return task, nil
}

// UpdateTask applies one partial update.
func (a *AppServiceAdapter) UpdateTask(ctx context.Context, in UpdateTaskRequest) (domain.Task, error) {
	if err := a.ready(); err != nil {
		return domain.Task{}, err
	}
	input := app.UpdateTaskInput{
		TaskID:      in.TaskID,
		ActorID:     in.ActorID,
		Title:       in.Title,
		Description: in.Description,
		AssigneeID:  in.AssigneeID,
		SprintID:    in.SprintID,
		SprintOrder: in.SprintOrder,
		Effort:      in.Effort,
		TimeSpent:   in.TimeSpent,
		DueAt:       in.DueAt,
	}
	if in.Status != nil {
		status, err := parseStatus(*in.Status)
		if err != nil {
			return domain.Task{}, err
		}
		input.Status = &status
	}
	if in.Priority != nil {
		priority := parsePriority(*in.Priority)
		input.Priority = &priority
	}
	task, err := a.service.UpdateTask(ctx, input)
	if err != nil {
		return domain.Task{}, mapAppError("update task", err)
	}
	return task, nil
}

// MoveTask places one task in a column.
func (a *AppServiceAdapter) MoveTask(ctx context.Context, in MoveTaskRequest) (app.MoveResult, error) {
	if err := a.ready(); err != nil {
		return app.MoveResult{}, err
	}
	status, err := parseStatus(in.Status)
	if err != nil {
		return app.MoveResult{}, err
	}
	out, err := a.service.MoveTask(ctx, app.MoveTaskInput{
		TaskID:   in.TaskID,
		ActorID:  in.ActorID,
		Status:   status,
		Position: in.Position,
	})
	if err != nil {
		return app.MoveResult{}, mapAppError("move task", err)
	}
	return out, nil
}

// ReorderInSprint places one task inside a sprint list.
func (a *AppServiceAdapter) ReorderInSprint(ctx context.Context, in ReorderInSprintRequest) (app.SprintResult, error) {
	if err := a.ready(); err != nil {
		return app.SprintResult{}, err
	}
	out, err := a.service.ReorderInSprint(ctx, app.ReorderInSprintInput{
		TaskID:      in.TaskID,
		ActorID:     in.ActorID,
		SprintID:    in.SprintID,
		AfterTaskID: strings.TrimSpace(in.AfterTaskID),
	})
	if err != nil {
		return app.SprintResult{}, mapAppError("reorder in sprint", err)
	}
	return out, nil
}

// DeleteTask removes one task and closes the gap it leaves.
func (a *AppServiceAdapter) DeleteTask(ctx context.Context, in TaskRef) (app.DeleteResult, error) {
	if err := a.ready(); err != nil {
		return app.DeleteResult{}, err
	}
	out, err := a.service.DeleteTask(ctx, app.DeleteTaskInput{TaskID: in.TaskID, ActorID: in.ActorID})
	if err != nil {
		return app.DeleteResult{}, mapAppError("delete task", err)
	}
	return out, nil
}

// DuplicateTask copies one task directly after its source.
func (a *AppServiceAdapter) DuplicateTask(ctx context.Context, in TaskRef) (app.DuplicateResult, error) {
	if err := a.ready(); err != nil {
		return app.DuplicateResult{}, err
	}
	out, err := a.service.DuplicateTask(ctx, app.DuplicateTaskInput{TaskID: in.TaskID, ActorID: in.ActorID})
	if err != nil {
		return app.DuplicateResult{}, mapAppError("duplicate task", err)
	}
	return out, nil
}

// GetTask loads one task.
func (a *AppServiceAdapter) GetTask(ctx context.Context, taskID string) (domain.Task, error) {
	if err := a.ready(); err != nil {
		return domain.Task{}, err
	}
	task, err := a.service.GetTask(ctx, taskID)
	if err != nil {
		return domain.Task{}, mapAppError("get task", err)
	}
	return task, nil
}

// ListHistory lists the audit trail for one task, oldest first.
func (a *AppServiceAdapter) ListHistory(ctx context.Context, taskID string) ([]domain.HistoryRecord, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	records, err := a.service.ListHistory(ctx, taskID)
	if err != nil {
		return nil, mapAppError("list history", err)
	}
	return records, nil
}

// ListColumn lists one status column in position order.
func (a *AppServiceAdapter) ListColumn(ctx context.Context, rawStatus string) (domain.Column, error) {
	if err := a.ready(); err != nil {
		return domain.Column{}, err
	}
	status, err := parseStatus(rawStatus)
	if err != nil {
		return domain.Column{}, err
	}
	column, err := a.service.ListColumn(ctx, status)
	if err != nil {
		return domain.Column{}, mapAppError("list column", err)
	}
	return column, nil
}

// ListBoard lists every column in board order.
func (a *AppServiceAdapter) ListBoard(ctx context.Context) ([]domain.Column, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	board, err := a.service.ListBoard(ctx)
	if err != nil {
		return nil, mapAppError("list board", err)
	}
	return board, nil
}

// ListSprint lists one sprint bucket in sprint order; nil lists the backlog.
func (a *AppServiceAdapter) ListSprint(ctx context.Context, sprintID *string) (domain.ScopeSnapshot, error) {
	if err := a.ready(); err != nil {
		return domain.ScopeSnapshot{}, err
	}
	snapshot, err := a.service.ListSprint(ctx, sprintID)
	if err != nil {
		return domain.ScopeSnapshot{}, mapAppError("list sprint", err)
	}
	return snapshot, nil
}

// ResequenceAll repairs every column and sprint.
func (a *AppServiceAdapter) ResequenceAll(ctx context.Context) (app.RepairReport, error) {
	if err := a.ready(); err != nil {
		return app.RepairReport{}, err
	}
	report, err := a.service.ResequenceAll(ctx)
	if err != nil {
		return app.RepairReport{}, mapAppError("resequence", err)
	}
	return report, nil
}

func (a *AppServiceAdapter) ready() error {
	if a == nil || a.service == nil {
		return errors.New("app service adapter is not configured")
	}
	return nil
}

func parseStatus(raw string) (domain.Status, error) {
	status, err := domain.ParseStatus(raw)
	if err != nil {
		return "", fmt.Errorf("status %q: %w", raw, errors.Join(ErrInvalidRequest, err))
	}
	return status, nil
}

// parseOptionalStatus leaves a blank status for the service default.
func parseOptionalStatus(raw string) (domain.Status, error) {
	if strings.TrimSpace(raw) == "" {
		return "", nil
	}
	return parseStatus(raw)
}

func parsePriority(raw string) domain.Priority {
	return domain.Priority(strings.ToLower(strings.TrimSpace(raw)))
}

// mapAppError wraps app and domain failures with the transport sentinel they map to.
func mapAppError(operation string, err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, app.ErrNotFound):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrNotFound, err))
	case errors.Is(err, app.ErrSprintMismatch):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrConflict, err))
	case errors.Is(err, app.ErrInvalidActorID),
		errors.Is(err, app.ErrInvalidScope),
		errors.Is(err, app.ErrSelfAnchoredMove),
		errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, domain.ErrInvalidTitle),
		errors.Is(err, domain.ErrInvalidStatus),
		errors.Is(err, domain.ErrInvalidPriority),
		errors.Is(err, domain.ErrInvalidPosition),
		errors.Is(err, domain.ErrInvalidSprintID),
		errors.Is(err, domain.ErrInvalidTicket):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrInvalidRequest, err))
	default:
		return fmt.Errorf("%s: %w", operation, err)
	}
}
