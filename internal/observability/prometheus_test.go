package observability

import (
	"errors"
	"testing"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evanschultz/sprintboard/internal/app"
	"github.com/evanschultz/sprintboard/internal/domain"
)

func TestPrometheusObserverRecordsOperations(t *testing.T) {
	reg := promclient.NewRegistry()
	observer, err := NewPrometheusObserver("test", reg)
	require.NoError(t, err)

	observer.ObserveOperation("move", 20*time.Millisecond, nil)
	observer.ObserveOperation("move", time.Millisecond, app.ErrNotFound)
	observer.ObserveOperation("move", time.Millisecond, errors.New("disk full"))

	assert.Equal(t, 1.0, testutil.ToFloat64(observer.operations.WithLabelValues("move", outcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(observer.operations.WithLabelValues("move", outcomeNotFound)))
	assert.Equal(t, 1.0, testutil.ToFloat64(observer.operations.WithLabelValues("move", outcomeError)))
	assert.Equal(t, 1, testutil.CollectAndCount(observer.operationDuration))
}

func TestPrometheusObserverRecordsResequence(t *testing.T) {
	reg := promclient.NewRegistry()
	observer, err := NewPrometheusObserver("", reg)
	require.NoError(t, err)

	observer.ObserveResequence(domain.ScopeStatus, 0)
	observer.ObserveResequence(domain.ScopeStatus, 3)
	observer.ObserveResequence(domain.ScopeSprint, 1)

	assert.Equal(t, 2.0, testutil.ToFloat64(observer.resequencePasses.WithLabelValues("status")))
	assert.Equal(t, 3.0, testutil.ToFloat64(observer.rowsRewritten.WithLabelValues("status")))
	assert.Equal(t, 1.0, testutil.ToFloat64(observer.rowsRewritten.WithLabelValues("sprint")))
}

func TestPrometheusObserverReusesRegisteredCollectors(t *testing.T) {
	reg := promclient.NewRegistry()
	first, err := NewPrometheusObserver("dup", reg)
	require.NoError(t, err)
	second, err := NewPrometheusObserver("dup", reg)
	require.NoError(t, err)

	first.ObserveOperation("create", time.Millisecond, nil)
	second.ObserveOperation("create", time.Millisecond, nil)
	assert.Equal(t, 2.0, testutil.ToFloat64(second.operations.WithLabelValues("create", outcomeOK)))
}

func TestNilPrometheusObserverIsSafe(t *testing.T) {
	var observer *PrometheusObserver
	observer.ObserveOperation("create", time.Millisecond, nil)
	observer.ObserveResequence(domain.ScopeSprint, 2)
}
