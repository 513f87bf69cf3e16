package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBus_DeliversInRegistrationOrder(t *testing.T) {
	bus := NewBus()

	var order []int
	bus.Subscribe(KindRetryAttempt, func(Event) { order = append(order, 1) })
	bus.Subscribe(KindRetryAttempt, func(Event) { order = append(order, 2) })
	bus.Subscribe(KindRetryAttempt, func(Event) { order = append(order, 3) })

	bus.Publish(RetryAttempt{Operation: "doc-lookup", Attempt: 1, Delay: time.Second})

	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestBus_OnlyMatchingKindReceives(t *testing.T) {
	bus := NewBus()

	var gotOpened, gotReset bool
	bus.Subscribe(KindCircuitBreakerOpened, func(e Event) {
		gotOpened = true
		payload, ok := e.(CircuitBreakerOpened)
		assert.True(t, ok)
		assert.Equal(t, "cache-get", payload.Operation)
		assert.Equal(t, 5, payload.FailureCount)
	})
	bus.Subscribe(KindCircuitBreakerReset, func(Event) { gotReset = true })

	bus.Publish(CircuitBreakerOpened{Operation: "cache-get", FailureCount: 5})

	assert.True(t, gotOpened)
	assert.False(t, gotReset)
}

func TestBus_PanickingSubscriberIsIsolated(t *testing.T) {
	bus := NewBus()

	var delivered []string
	bus.Subscribe(KindBackupCompleted, func(Event) { delivered = append(delivered, "first") })
	bus.Subscribe(KindBackupCompleted, func(Event) { panic("subscriber bug") })
	bus.Subscribe(KindBackupCompleted, func(Event) { delivered = append(delivered, "third") })

	assert.NotPanics(t, func() {
		bus.Publish(BackupCompleted{BackupID: "backup-1"})
	})

	assert.Equal(t, []string{"first", "third"}, delivered)
}

func TestBus_SubscribeAll(t *testing.T) {
	bus := NewBus()

	var kinds []Kind
	bus.SubscribeAll(func(e Event) { kinds = append(kinds, e.Kind()) })

	bus.Publish(ServiceStarted{Timestamp: time.Now()})
	bus.Publish(HealthCheckCompleted{Status: "healthy"})
	bus.Publish(ServiceStopped{Timestamp: time.Now()})

	assert.Equal(t, []Kind{KindServiceStarted, KindHealthCheckCompleted, KindServiceStopped}, kinds)
}

func TestBus_NilHandlerAndNilEventIgnored(t *testing.T) {
	bus := NewBus()

	bus.Subscribe(KindServiceStarted, nil)
	bus.SubscribeAll(nil)

	assert.NotPanics(t, func() {
		bus.Publish(nil)
		bus.Publish(ServiceStarted{Timestamp: time.Now()})
	})
}
