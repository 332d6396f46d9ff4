package app

import (
	"time"

	"github.com/evanschultz/sprintboard/internal/domain"
)

// Observer receives engine telemetry. Implementations must be safe for concurrent use.
type Observer interface {
	// ObserveOperation reports one coordinator operation and its outcome.
	ObserveOperation(op string, elapsed time.Duration, err error)
	// ObserveResequence reports how many rows one resequence pass rewrote.
	ObserveResequence(kind domain.ScopeKind, rewritten int)
}

// NopObserver discards all telemetry.
type NopObserver struct{}

// ObserveOperation implements Observer.
func (NopObserver) ObserveOperation(string, time.Duration, error) {}

// ObserveResequence implements Observer.
func (NopObserver) ObserveResequence(domain.ScopeKind, int) {}
