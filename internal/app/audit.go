package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/evanschultz/sprintboard/internal/domain"
)

// AuditLog appends field-level history rows through the caller's transaction, so a rolled
// back mutation leaves no history behind.
type AuditLog struct {
	clock Clock
}

// NewAuditLog constructs an audit log stamping records with clock.
func NewAuditLog(clock Clock) *AuditLog {
	return &AuditLog{clock: clock}
}

// Record appends one history entry.
func (a *AuditLog) Record(ctx context.Context, tx Tx, taskID, actorID, field string, oldValue, newValue *string) error {
	taskID = strings.TrimSpace(taskID)
	if taskID == "" {
		return domain.ErrInvalidID
	}
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return ErrInvalidActorID
	}
	_, err := tx.AppendHistory(ctx, domain.HistoryRecord{
		TaskID:    taskID,
		ActorID:   actorID,
		Field:     field,
		OldValue:  oldValue,
		NewValue:  newValue,
		ChangedAt: a.clock().UTC(),
	})
	if err != nil {
		return fmt.Errorf("append history %s/%s: %w", taskID, field, err)
	}
	return nil
}

// RecordChanges appends one entry per change, in order.
func (a *AuditLog) RecordChanges(ctx context.Context, tx Tx, taskID, actorID string, changes []domain.FieldChange) error {
	for _, change := range changes {
		if err := a.Record(ctx, tx, taskID, actorID, change.Field, change.OldValue, change.NewValue); err != nil {
			return err
		}
	}
	return nil
}
