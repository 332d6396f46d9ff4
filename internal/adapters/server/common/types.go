// Package common defines transport-facing contracts shared by the HTTP and MCP adapters.
package common

import (
	"context"
	"errors"
	"time"

	"github.com/evanschultz/sprintboard/internal/app"
	"github.com/evanschultz/sprintboard/internal/domain"
)

var (
	// ErrInvalidRequest marks malformed input, including domain validation failures.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrNotFound marks a missing task.
	ErrNotFound = errors.New("not found")
	// ErrConflict marks a request that cannot apply against current board state.
	ErrConflict = errors.New("conflict")
)

// BoardService is the board surface both transports call into.
type BoardService interface {
	CreateTask(context.Context, CreateTaskRequest) (domain.Task, error)
	UpdateTask(context.Context, UpdateTaskRequest) (domain.Task, error)
	MoveTask(context.Context, MoveTaskRequest) (app.MoveResult, error)
	ReorderInSprint(context.Context, ReorderInSprintRequest) (app.SprintResult, error)
	DeleteTask(context.Context, TaskRef) (app.DeleteResult, error)
	DuplicateTask(context.Context, TaskRef) (app.DuplicateResult, error)
	GetTask(context.Context, string) (domain.Task, error)
	ListHistory(context.Context, string) ([]domain.HistoryRecord, error)
	ListColumn(context.Context, string) (domain.Column, error)
	ListBoard(context.Context) ([]domain.Column, error)
	ListSprint(context.Context, *string) (domain.ScopeSnapshot, error)
	ResequenceAll(context.Context) (app.RepairReport, error)
}

// TaskRef addresses one task on behalf of one actor.
type TaskRef struct {
	TaskID  string `json:"task_id"`
	ActorID string `json:"actor_id,omitempty"`
}

// CreateTaskRequest is the create payload. Status defaults to todo and priority to medium.
type CreateTaskRequest struct {
	ActorID     string     `json:"actor_id,omitempty"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Status      string     `json:"status,omitempty"`
	Priority    string     `json:"priority,omitempty"`
	SprintID    *string    `json:"sprint_id,omitempty"`
	AssigneeID  *string    `json:"assignee_id,omitempty"`
	Effort      *float64   `json:"effort,omitempty"`
	TimeSpent   *float64   `json:"timespent,omitempty"`
	DueAt       *time.Time `json:"due_at,omitempty"`
}

// UpdateTaskRequest is the partial update payload. Absent keys leave fields untouched and
// explicit nulls clear nullable fields.
type UpdateTaskRequest struct {
	TaskID      string                  `json:"-"`
	ActorID     string                  `json:"actor_id,omitempty"`
	Title       *string                 `json:"title,omitempty"`
	Description *string                 `json:"description,omitempty"`
	Status      *string                 `json:"status,omitempty"`
	Priority    *string                 `json:"priority,omitempty"`
	AssigneeID  domain.Patch[string]    `json:"assignee_id"`
	SprintID    domain.Patch[string]    `json:"sprint_id"`
	SprintOrder domain.Patch[float64]   `json:"sprint_order"`
	Effort      domain.Patch[float64]   `json:"effort"`
	TimeSpent   domain.Patch[float64]   `json:"timespent"`
	DueAt       domain.Patch[time.Time] `json:"due_at"`
}

// MoveTaskRequest places a task at a 1-based position in a status column.
type MoveTaskRequest struct {
	TaskID   string `json:"-"`
	ActorID  string `json:"actor_id,omitempty"`
	Status   string `json:"status"`
	Position int    `json:"position"`
}

// ReorderInSprintRequest places a task after AfterTaskID in a sprint list, or first when
// AfterTaskID is empty. A null sprint_id moves the task to the backlog.
type ReorderInSprintRequest struct {
	TaskID      string  `json:"-"`
	ActorID     string  `json:"actor_id,omitempty"`
	SprintID    *string `json:"sprint_id"`
	AfterTaskID string  `json:"after_task_id,omitempty"`
}
