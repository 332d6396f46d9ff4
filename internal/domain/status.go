package domain

import (
	"slices"
	"strings"
)

// Status identifies one Kanban column. Every status is reachable from every other in one step.
type Status string

// Status values in board order.
const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "inProgress"
	StatusReview     Status = "review"
	StatusDone       Status = "done"
)

var boardStatuses = []Status{StatusTodo, StatusInProgress, StatusReview, StatusDone}

// Statuses returns all statuses in board order.
func Statuses() []Status {
	return append([]Status(nil), boardStatuses...)
}

// ParseStatus resolves a raw status, accepting the common snake/kebab spellings of inProgress.
func ParseStatus(raw string) (Status, error) {
	key := strings.ToLower(strings.TrimSpace(raw))
	key = strings.NewReplacer("_", "", "-", "", " ", "").Replace(key)
	for _, status := range boardStatuses {
		if strings.ToLower(string(status)) == key {
			return status, nil
		}
	}
	return "", ErrInvalidStatus
}

// Valid reports whether s is one of the board statuses.
func (s Status) Valid() bool {
	return slices.Contains(boardStatuses, s)
}

// Terminal reports whether s is the completion state.
func (s Status) Terminal() bool {
	return s == StatusDone
}
