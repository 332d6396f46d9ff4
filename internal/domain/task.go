package domain

import (
	"slices"
	"strings"
	"time"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

var validPriorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent}

// Task is one board entity under ordering control.
//
// Position, SprintOrder and CompletedAt are owned by the ordering engine; the remaining fields
// are carried through untouched.
type Task struct {
	ID           string     `json:"id"`
	Ticket       string     `json:"ticket"`
	TicketNumber int        `json:"ticket_number"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Status       Status     `json:"status"`
	Position     int        `json:"position"`
	Priority     Priority   `json:"priority"`
	AssigneeID   *string    `json:"assignee_id"`
	SprintID     *string    `json:"sprint_id"`
	SprintOrder  *float64   `json:"sprint_order"`
	Effort       *float64   `json:"effort"`
	TimeSpent    *float64   `json:"timespent"`
	DueAt        *time.Time `json:"due_at"`
	CompletedAt  *time.Time `json:"completed_at"`
	CreatedBy    string     `json:"created_by"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

type TaskInput struct {
	ID           string
	Ticket       string
	TicketNumber int
	Title        string
	Description  string
	Status       Status
	Position     int
	Priority     Priority
	AssigneeID   *string
	SprintID     *string
	SprintOrder  *float64
	Effort       *float64
	TimeSpent    *float64
	DueAt        *time.Time
	CreatedBy    string
}

func NewTask(in TaskInput, now time.Time) (Task, error) {
	in.ID = strings.TrimSpace(in.ID)
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)

	if in.ID == "" {
		return Task{}, ErrInvalidID
	}
	if in.Title == "" {
		return Task{}, ErrInvalidTitle
	}
	if _, number, err := ParseTicket(in.Ticket); err != nil || number != in.TicketNumber {
		return Task{}, ErrInvalidTicket
	}
	if !in.Status.Valid() {
		return Task{}, ErrInvalidStatus
	}
	if in.Position < 1 {
		return Task{}, ErrInvalidPosition
	}
	if in.Priority == "" {
		in.Priority = PriorityMedium
	}
	if !slices.Contains(validPriorities, in.Priority) {
		return Task{}, ErrInvalidPriority
	}
	sprintID, err := NormalizeSprintID(in.SprintID)
	if err != nil {
		return Task{}, err
	}
	sprintOrder := in.SprintOrder
	if sprintID == nil {
		sprintOrder = nil
	}

	task := Task{
		ID:           in.ID,
		Ticket:       in.Ticket,
		TicketNumber: in.TicketNumber,
		Title:        in.Title,
		Description:  in.Description,
		Position:     in.Position,
		Priority:     in.Priority,
		AssigneeID:   normalizeOptionalString(in.AssigneeID),
		SprintID:     sprintID,
		SprintOrder:  copyFloat(sprintOrder),
		Effort:       copyFloat(in.Effort),
		TimeSpent:    copyFloat(in.TimeSpent),
		DueAt:        normalizeDueAt(in.DueAt),
		CreatedBy:    strings.TrimSpace(in.CreatedBy),
		CreatedAt:    now.UTC(),
		UpdatedAt:    now.UTC(),
	}
	task.SetStatus(in.Status, now)
	return task, nil
}

// SetStatus applies one state-machine transition. Entering done stamps CompletedAt; leaving
// done clears it; staying in done keeps the original stamp.
func (t *Task) SetStatus(status Status, now time.Time) {
	switch {
	case status.Terminal() && (!t.Status.Terminal() || t.CompletedAt == nil):
		ts := now.UTC()
		t.CompletedAt = &ts
	case !status.Terminal():
		t.CompletedAt = nil
	}
	t.Status = status
}

// ValidPriority reports whether p is a known priority.
func ValidPriority(p Priority) bool {
	return slices.Contains(validPriorities, p)
}

// NormalizeSprintID trims a sprint reference; blank references mean the backlog.
func NormalizeSprintID(id *string) (*string, error) {
	if id == nil {
		return nil, nil
	}
	trimmed := strings.TrimSpace(*id)
	if trimmed == "" {
		return nil, nil
	}
	if strings.ContainsAny(trimmed, "\n\t") {
		return nil, ErrInvalidSprintID
	}
	return &trimmed, nil
}

// SameSprint reports whether two sprint references point at the same bucket.
func SameSprint(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func normalizeOptionalString(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func normalizeDueAt(dueAt *time.Time) *time.Time {
	if dueAt == nil {
		return nil
	}
	ts := dueAt.UTC().Truncate(time.Second)
	return &ts
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}
