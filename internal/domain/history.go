package domain

import (
	"strconv"
	"time"
)

// Tracked field names written to the history ledger.
const (
	FieldTitle       = "title"
	FieldDescription = "description"
	FieldStatus      = "status"
	FieldPriority    = "priority"
	FieldAssignee    = "assignee"
	FieldSprintID    = "sprint_id"
	FieldSprintOrder = "sprint_order"
	FieldEffort      = "effort"
	FieldTimeSpent   = "timespent"
	FieldDueDate     = "duedate"
	FieldPosition    = "position"
)

// Synthetic field names for whole-task events.
const (
	FieldCreated = "created"
	FieldDeleted = "deleted"
)

// HistoryRecord is one immutable field-level change entry for a task.
type HistoryRecord struct {
	ID        int64     `json:"id"`
	TaskID    string    `json:"task_id"`
	ActorID   string    `json:"actor_id"`
	Field     string    `json:"field"`
	OldValue  *string   `json:"old_value"`
	NewValue  *string   `json:"new_value"`
	ChangedAt time.Time `json:"changed_at"`
}

// FieldChange is one before/after pair produced by DiffTracked.
type FieldChange struct {
	Field    string
	OldValue *string
	NewValue *string
}

// DiffTracked compares the tracked fields of two task states by their string form and
// returns one change per differing field, in a fixed field order.
func DiffTracked(prev, next Task) []FieldChange {
	pairs := []FieldChange{
		{FieldTitle, StringValue(prev.Title), StringValue(next.Title)},
		{FieldDescription, StringValue(prev.Description), StringValue(next.Description)},
		{FieldStatus, StringValue(string(prev.Status)), StringValue(string(next.Status))},
		{FieldPriority, StringValue(string(prev.Priority)), StringValue(string(next.Priority))},
		{FieldAssignee, copyString(prev.AssigneeID), copyString(next.AssigneeID)},
		{FieldSprintID, copyString(prev.SprintID), copyString(next.SprintID)},
		{FieldSprintOrder, FloatValue(prev.SprintOrder), FloatValue(next.SprintOrder)},
		{FieldEffort, FloatValue(prev.Effort), FloatValue(next.Effort)},
		{FieldTimeSpent, FloatValue(prev.TimeSpent), FloatValue(next.TimeSpent)},
		{FieldDueDate, TimeValue(prev.DueAt), TimeValue(next.DueAt)},
	}
	out := make([]FieldChange, 0, len(pairs))
	for _, pair := range pairs {
		if equalValues(pair.OldValue, pair.NewValue) {
			continue
		}
		out = append(out, pair)
	}
	return out
}

// StringValue wraps s as a history value.
func StringValue(s string) *string {
	return &s
}

// IntValue renders v as a history value.
func IntValue(v int) *string {
	return StringValue(strconv.Itoa(v))
}

// FloatValue renders v in its shortest exact form, or nil.
func FloatValue(v *float64) *string {
	if v == nil {
		return nil
	}
	return StringValue(strconv.FormatFloat(*v, 'f', -1, 64))
}

// TimeValue renders v as RFC3339 UTC, or nil.
func TimeValue(v *time.Time) *string {
	if v == nil {
		return nil
	}
	return StringValue(v.UTC().Format(time.RFC3339))
}

func copyString(v *string) *string {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

func equalValues(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
