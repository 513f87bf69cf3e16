package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docfoundry/docfoundry/pkg/errors"
	"github.com/docfoundry/docfoundry/pkg/events"
)

func testCoordinatorConfig() Config {
	cfg := DefaultConfig()
	cfg.Retry = RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   1 * time.Millisecond,
		MaxDelay:    10 * time.Millisecond,
	}
	cfg.CircuitBreakerThreshold = 3
	cfg.CircuitBreakerTimeout = 20 * time.Millisecond
	cfg.HealthCheckEnabled = false
	cfg.BackupEnabled = false
	cfg.StopGracePeriod = 200 * time.Millisecond

	return cfg
}

func TestCoordinator_ExecuteSuccess(t *testing.T) {
	c := NewCoordinator(testCoordinatorConfig(), nil)

	result, err := c.Execute(context.Background(), "docs.fetch", func(context.Context) (any, error) {
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", result)

	stats := c.Stats()
	assert.Equal(t, uint64(1), stats.TotalOperations)
	assert.Equal(t, uint64(0), stats.TotalFailures)
	assert.Equal(t, uint64(0), stats.TotalRetries)
}

func TestCoordinator_RetrySequenceAccounting(t *testing.T) {
	c := NewCoordinator(testCoordinatorConfig(), nil)

	calls := 0
	result, err := c.Execute(context.Background(), "docs.fetch", func(context.Context) (any, error) {
		calls++
		if calls < 3 {
			return nil, errors.NewTransientError("connection reset")
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 3, calls)

	stats := c.Stats()
	assert.Equal(t, uint64(1), stats.TotalOperations)
	assert.Equal(t, uint64(0), stats.TotalFailures)
	assert.Equal(t, uint64(2), stats.TotalRetries)
	assert.Equal(t, uint64(1), stats.SuccessfulRetries)

	// The whole sequence resolved, so the breaker saw one success signal
	states := c.BreakerStates()
	require.Contains(t, states, "docs.fetch")
	assert.Equal(t, StateClosed, states["docs.fetch"].State)
	assert.Equal(t, 0, states["docs.fetch"].FailureCount)
}

func TestCoordinator_ExhaustedSequenceIsOneBreakerFailure(t *testing.T) {
	c := NewCoordinator(testCoordinatorConfig(), nil)

	calls := 0
	_, err := c.Execute(context.Background(), "docs.fetch", func(context.Context) (any, error) {
		calls++
		return nil, errors.NewTransientError("still down")
	})

	require.Error(t, err)
	assert.True(t, IsRetryExhausted(err))
	assert.Equal(t, 3, calls)

	// Three attempts, one aggregate failure signal to the breaker
	states := c.BreakerStates()
	assert.Equal(t, StateClosed, states["docs.fetch"].State)
	assert.Equal(t, 1, states["docs.fetch"].FailureCount)

	stats := c.Stats()
	assert.Equal(t, uint64(1), stats.TotalFailures)
	assert.Equal(t, uint64(2), stats.TotalRetries)
	assert.Equal(t, uint64(0), stats.SuccessfulRetries)
}

func TestCoordinator_CircuitOpensThenRecovers(t *testing.T) {
	bus := events.NewBus()

	var failedOps []events.OperationFailed
	bus.Subscribe(events.KindOperationFailed, func(e events.Event) {
		failedOps = append(failedOps, e.(events.OperationFailed))
	})

	c := NewCoordinator(testCoordinatorConfig(), bus)

	boom := errors.NewValidationError("rejected")

	// Non-retryable failures; each Execute is one breaker failure
	for i := 0; i < 3; i++ {
		_, err := c.Execute(context.Background(), "docs.fetch", func(context.Context) (any, error) {
			return nil, boom
		})
		require.Error(t, err)
		assert.Equal(t, boom, err)
	}

	assert.Equal(t, StateOpen, c.BreakerStates()["docs.fetch"].State)

	// Fourth call fast-fails without invoking the operation
	invoked := false
	_, err := c.Execute(context.Background(), "docs.fetch", func(context.Context) (any, error) {
		invoked = true
		return nil, nil
	})
	require.Error(t, err)
	assert.True(t, IsCircuitOpen(err))
	assert.False(t, invoked)

	stats := c.Stats()
	assert.Equal(t, uint64(4), stats.TotalOperations)
	assert.Equal(t, uint64(4), stats.TotalFailures)
	assert.Equal(t, uint64(1), stats.CircuitBreakerTrips)

	// Rejections never produce OperationFailed; the three real failures did
	assert.Len(t, failedOps, 3)

	time.Sleep(30 * time.Millisecond)

	// Probe succeeds; breaker closes with a clean slate
	result, err := c.Execute(context.Background(), "docs.fetch", func(context.Context) (any, error) {
		return "recovered", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "recovered", result)

	state := c.BreakerStates()["docs.fetch"]
	assert.Equal(t, StateClosed, state.State)
	assert.Equal(t, 0, state.FailureCount)
	assert.Equal(t, uint64(1), c.Stats().CircuitBreakerResets)
}

func TestCoordinator_WithoutRetryRunsOnce(t *testing.T) {
	c := NewCoordinator(testCoordinatorConfig(), nil)

	calls := 0
	_, err := c.Execute(context.Background(), "docs.fetch", func(context.Context) (any, error) {
		calls++
		return nil, errors.NewTransientError("once is enough")
	}, WithoutRetry())

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.False(t, IsRetryExhausted(err))
	assert.Equal(t, uint64(0), c.Stats().TotalRetries)
}

func TestCoordinator_WithoutCircuitBreaker(t *testing.T) {
	c := NewCoordinator(testCoordinatorConfig(), nil)

	_, err := c.Execute(context.Background(), "docs.fetch", func(context.Context) (any, error) {
		return nil, errors.NewValidationError("rejected")
	}, WithoutCircuitBreaker())

	require.Error(t, err)
	assert.Empty(t, c.BreakerStates())
}

func TestCoordinator_WithMaxAttemptsOverride(t *testing.T) {
	c := NewCoordinator(testCoordinatorConfig(), nil)

	calls := 0
	_, err := c.Execute(context.Background(), "docs.fetch", func(context.Context) (any, error) {
		calls++
		return nil, errors.NewTransientError("still down")
	}, WithMaxAttempts(5), WithBaseDelay(time.Millisecond))

	require.Error(t, err)
	assert.Equal(t, 5, calls)
}

func TestCoordinator_WithTimeoutBoundsWholeCall(t *testing.T) {
	c := NewCoordinator(testCoordinatorConfig(), nil)

	start := time.Now()
	_, err := c.Execute(context.Background(), "docs.fetch", func(ctx context.Context) (any, error) {
		<-ctx.Done()
		return nil, errors.NewTimeoutError("docs.fetch")
	}, WithTimeout(30*time.Millisecond))

	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestCoordinator_WithFailureClassifier(t *testing.T) {
	c := NewCoordinator(testCoordinatorConfig(), nil)

	// Validation errors do not count against the breaker here
	classifier := func(err error) bool {
		return !errors.IsType(err, errors.ErrorTypeValidation)
	}

	for i := 0; i < 5; i++ {
		_, err := c.Execute(context.Background(), "docs.fetch", func(context.Context) (any, error) {
			return nil, errors.NewValidationError("rejected")
		}, WithFailureClassifier(classifier))
		require.Error(t, err)
	}

	state := c.BreakerStates()["docs.fetch"]
	assert.Equal(t, StateClosed, state.State)
	assert.Equal(t, 0, state.FailureCount)
}

func TestCoordinator_DisabledRunsOperationDirectly(t *testing.T) {
	cfg := testCoordinatorConfig()
	cfg.Enabled = false
	c := NewCoordinator(cfg, nil)

	calls := 0
	_, err := c.Execute(context.Background(), "docs.fetch", func(context.Context) (any, error) {
		calls++
		return nil, errors.NewTransientError("no wrapping")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, Stats{}, c.Stats())
	assert.Empty(t, c.BreakerStates())
}

func TestCoordinator_ServiceHealthRoundTrip(t *testing.T) {
	c := NewCoordinator(testCoordinatorConfig(), nil)

	c.RegisterService("redis", func(context.Context) error { return nil })
	assert.Equal(t, StatusUnknown, c.ServiceHealth("redis").Status)

	status := c.CheckHealth(context.Background())
	assert.Equal(t, StatusHealthy, status)
	assert.Equal(t, StatusHealthy, c.ServiceHealth("redis").Status)

	records := c.ServiceHealthRecords()
	require.Contains(t, records, "redis")

	c.UnregisterService("redis")
	assert.Equal(t, StatusUnknown, c.ServiceHealth("redis").Status)
}

func TestCoordinator_RunBackupsOnDemand(t *testing.T) {
	c := NewCoordinator(testCoordinatorConfig(), nil)

	provider := &fakeProvider{id: "redis-snapshot"}
	c.RegisterBackupProvider(provider)

	records := c.RunBackups(context.Background())

	require.Len(t, records, 1)
	assert.Equal(t, BackupOutcomeSuccess, records[0].Outcome)
	assert.Equal(t, 1, provider.runs)
}

func TestCoordinator_StartStopLifecycle(t *testing.T) {
	bus := events.NewBus()

	started := 0
	stopped := 0
	bus.Subscribe(events.KindServiceStarted, func(events.Event) { started++ })
	bus.Subscribe(events.KindServiceStopped, func(events.Event) { stopped++ })

	c := NewCoordinator(testCoordinatorConfig(), bus)

	c.Start()
	c.Start()
	assert.Equal(t, 1, started)

	c.Stop(context.Background())
	c.Stop(context.Background())
	assert.Equal(t, 1, stopped)
}

func TestCoordinator_StopWaitsForInFlight(t *testing.T) {
	c := NewCoordinator(testCoordinatorConfig(), nil)
	c.Start()

	release := make(chan struct{})
	opDone := make(chan struct{})

	go func() {
		_, _ = c.Execute(context.Background(), "docs.fetch", func(context.Context) (any, error) {
			<-release
			return "ok", nil
		})
		close(opDone)
	}()

	// Let the operation enter the wrapped call
	time.Sleep(10 * time.Millisecond)

	close(release)
	c.Stop(context.Background())

	select {
	case <-opDone:
	case <-time.After(time.Second):
		t.Fatal("in-flight operation did not complete before Stop returned")
	}
}

func TestCoordinator_ResetStats(t *testing.T) {
	c := NewCoordinator(testCoordinatorConfig(), nil)

	_, _ = c.Execute(context.Background(), "docs.fetch", func(context.Context) (any, error) {
		return "ok", nil
	})
	require.Equal(t, uint64(1), c.Stats().TotalOperations)

	c.ResetStats()
	assert.Equal(t, Stats{}, c.Stats())
}
