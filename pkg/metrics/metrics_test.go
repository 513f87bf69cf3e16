package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/docfoundry/docfoundry/pkg/events"
)

func newTestMetrics(t *testing.T) *Metrics {
	t.Helper()
	return newMetrics(DefaultConfig(), prometheus.NewRegistry())
}

func TestMetrics_DisabledIsNoOp(t *testing.T) {
	m := newMetrics(&Config{Enabled: false}, prometheus.NewRegistry())

	// Must not panic on nil collectors
	m.RecordHTTPRequest("GET", "/health", 200, time.Millisecond)
	m.RecordOperation("docs.fetch", "success", time.Millisecond)
	m.RecordDatabaseQuery("insert", "lessons", time.Millisecond)
	m.RecordCacheOperation("get", "docs", time.Millisecond, true)
	m.UpdateRedisConnections(1, 1, 0)
	m.UpdateServiceHealth("redis", 0)
	m.BindEventBus(events.NewBus())
}

func TestMetrics_RecordOperation(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordOperation("docs.fetch", "success", 10*time.Millisecond)
	m.RecordOperation("docs.fetch", "success", 20*time.Millisecond)
	m.RecordOperation("docs.fetch", "failed", 5*time.Millisecond)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.OperationsTotal.WithLabelValues("docs.fetch", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.OperationsTotal.WithLabelValues("docs.fetch", "failed")))
}

func TestMetrics_CacheHitAccounting(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordCacheOperation("get", "docs", time.Millisecond, true)
	m.RecordCacheOperation("get", "docs", time.Millisecond, false)
	m.RecordCacheOperation("set", "docs", time.Millisecond, false)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.CacheHitsTotal.WithLabelValues("docs")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.CacheMissesTotal.WithLabelValues("docs")))
}

func TestMetrics_BindEventBus(t *testing.T) {
	m := newTestMetrics(t)
	bus := events.NewBus()
	m.BindEventBus(bus)

	bus.Publish(events.RetryAttempt{Operation: "docs.fetch", Attempt: 1, Delay: time.Millisecond})
	bus.Publish(events.RetryAttempt{Operation: "docs.fetch", Attempt: 2, Delay: time.Millisecond})
	bus.Publish(events.RetryExhausted{Operation: "docs.fetch", Attempts: 3})
	bus.Publish(events.CircuitBreakerOpened{Operation: "docs.fetch", FailureCount: 5})
	bus.Publish(events.CircuitBreakerStateChanged{Operation: "docs.fetch", State: "open"})
	bus.Publish(events.CircuitBreakerReset{Operation: "docs.fetch"})
	bus.Publish(events.OperationFailed{Operation: "docs.fetch", Err: assert.AnError})
	bus.Publish(events.ServiceHealthChanged{ServiceName: "redis", OldStatus: "healthy", NewStatus: "critical"})
	bus.Publish(events.HealthCheckCompleted{Status: "degraded"})
	bus.Publish(events.BackupCompleted{BackupID: "b1"})
	bus.Publish(events.BackupFailed{SourceConfigID: "redis-snapshot", Err: assert.AnError})

	assert.Equal(t, float64(2), testutil.ToFloat64(m.RetriesTotal.WithLabelValues("docs.fetch")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.RetryExhaustedTotal.WithLabelValues("docs.fetch")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.CircuitBreakerTrips.WithLabelValues("docs.fetch")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.CircuitBreakerResets.WithLabelValues("docs.fetch")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.CircuitBreakerState.WithLabelValues("docs.fetch")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.OperationsTotal.WithLabelValues("docs.fetch", "failed")))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.ServiceHealthStatus.WithLabelValues("redis")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.HealthChecksTotal.WithLabelValues("degraded")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.BackupsTotal.WithLabelValues("success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.BackupsTotal.WithLabelValues("failed")))
}

func TestHealthRank(t *testing.T) {
	assert.Equal(t, 0, healthRank("healthy"))
	assert.Equal(t, 1, healthRank("unknown"))
	assert.Equal(t, 2, healthRank("degraded"))
	assert.Equal(t, 3, healthRank("critical"))
}

func TestCircuitStateValue(t *testing.T) {
	assert.Equal(t, float64(0), circuitStateValue("closed"))
	assert.Equal(t, float64(1), circuitStateValue("open"))
	assert.Equal(t, float64(2), circuitStateValue("half_open"))
}
