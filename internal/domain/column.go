package domain

import "fmt"

// ScopeKind distinguishes the two ordering dimensions.
type ScopeKind string

// ScopeKind values.
const (
	ScopeStatus ScopeKind = "status"
	ScopeSprint ScopeKind = "sprint"
)

// Scope is a derived grouping key: a status column, or a sprint bucket where a nil SprintID
// is the backlog.
type Scope struct {
	Kind     ScopeKind `json:"kind"`
	Status   Status    `json:"status,omitempty"`
	SprintID *string   `json:"sprint_id,omitempty"`
}

// StatusScope returns the Kanban column scope for status.
func StatusScope(status Status) Scope {
	return Scope{Kind: ScopeStatus, Status: status}
}

// SprintScope returns the sprint bucket scope; nil selects the backlog.
func SprintScope(sprintID *string) Scope {
	if sprintID == nil {
		return Scope{Kind: ScopeSprint}
	}
	id := *sprintID
	return Scope{Kind: ScopeSprint, SprintID: &id}
}

// String renders the scope for logs and metric labels.
func (s Scope) String() string {
	switch s.Kind {
	case ScopeStatus:
		return fmt.Sprintf("status:%s", s.Status)
	case ScopeSprint:
		if s.SprintID == nil {
			return "sprint:backlog"
		}
		return "sprint:" + *s.SprintID
	default:
		return "unknown"
	}
}

// ScopeSnapshot is one scope with its tasks in display order.
type ScopeSnapshot struct {
	Scope Scope  `json:"scope"`
	Tasks []Task `json:"tasks"`
}

// Column is one status column snapshot ordered by position.
type Column struct {
	Status Status `json:"status"`
	Tasks  []Task `json:"tasks"`
}
