package observability

import (
	"errors"
	"fmt"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"

	"github.com/evanschultz/sprintboard/internal/app"
	"github.com/evanschultz/sprintboard/internal/domain"
)

// DefaultNamespace prefixes every exported metric.
const DefaultNamespace = "sprintboard"

// Outcome labels.
const (
	outcomeOK       = "ok"
	outcomeNotFound = "not_found"
	outcomeError    = "error"
)

// PrometheusObserver exports engine metrics to Prometheus.
type PrometheusObserver struct {
	operationDuration *promclient.HistogramVec
	operations        *promclient.CounterVec
	resequencePasses  *promclient.CounterVec
	rowsRewritten     *promclient.CounterVec
}

var _ app.Observer = (*PrometheusObserver)(nil)

// NewPrometheusObserver registers operation and resequence metrics on reg.
func NewPrometheusObserver(namespace string, reg promclient.Registerer) (*PrometheusObserver, error) {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if reg == nil {
		reg = promclient.DefaultRegisterer
	}
	observer := &PrometheusObserver{
		operationDuration: promclient.NewHistogramVec(promclient.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Latency of ordering operations, including transaction retries.",
			Buckets:   promclient.DefBuckets,
		}, []string{"operation"}),
		operations: promclient.NewCounterVec(promclient.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Ordering operations by outcome.",
		}, []string{"operation", "outcome"}),
		resequencePasses: promclient.NewCounterVec(promclient.CounterOpts{
			Namespace: namespace,
			Name:      "resequence_passes_total",
			Help:      "Resequence passes by scope kind.",
		}, []string{"scope"}),
		rowsRewritten: promclient.NewCounterVec(promclient.CounterOpts{
			Namespace: namespace,
			Name:      "resequence_rows_rewritten_total",
			Help:      "Rows whose ordering value a resequence pass rewrote.",
		}, []string{"scope"}),
	}

	var err error
	if observer.operationDuration, err = register(reg, observer.operationDuration); err != nil {
		return nil, err
	}
	if observer.operations, err = register(reg, observer.operations); err != nil {
		return nil, err
	}
	if observer.resequencePasses, err = register(reg, observer.resequencePasses); err != nil {
		return nil, err
	}
	if observer.rowsRewritten, err = register(reg, observer.rowsRewritten); err != nil {
		return nil, err
	}
	return observer, nil
}

// register adds c to reg, reusing an identical collector registered earlier.
func register[T promclient.Collector](reg promclient.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var are promclient.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return c, fmt.Errorf("register metric: %w", err)
	}
	return c, nil
}

// ObserveOperation implements app.Observer.
func (o *PrometheusObserver) ObserveOperation(op string, elapsed time.Duration, err error) {
	if o == nil {
		return
	}
	o.operationDuration.WithLabelValues(op).Observe(elapsed.Seconds())
	o.operations.WithLabelValues(op, outcome(err)).Inc()
}

// ObserveResequence implements app.Observer.
func (o *PrometheusObserver) ObserveResequence(kind domain.ScopeKind, rewritten int) {
	if o == nil {
		return
	}
	o.resequencePasses.WithLabelValues(string(kind)).Inc()
	if rewritten > 0 {
		o.rowsRewritten.WithLabelValues(string(kind)).Add(float64(rewritten))
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return outcomeOK
	case errors.Is(err, app.ErrNotFound):
		return outcomeNotFound
	default:
		return outcomeError
	}
}
