// Package events provides the in-process publish/subscribe bus that resilience
// components use to report lifecycle facts. Delivery is synchronous and in
// registration order; a panicking subscriber is isolated and never prevents
// delivery to subsequent subscribers.
package events

import (
	"sync"
	"time"

	"github.com/docfoundry/docfoundry/pkg/logging"
)

// Kind identifies an event variant
type Kind string

const (
	KindServiceStarted            Kind = "serviceStarted"
	KindServiceStopped            Kind = "serviceStopped"
	KindOperationFailed           Kind = "operationFailed"
	KindRetryAttempt              Kind = "retryAttempt"
	KindRetryExhausted            Kind = "retryExhausted"
	KindCircuitBreakerOpened      Kind = "circuitBreakerOpened"
	KindCircuitBreakerReset       Kind = "circuitBreakerReset"
	KindCircuitBreakerStateChange Kind = "circuitBreakerStateChanged"
	KindServiceHealthChanged      Kind = "serviceHealthChanged"
	KindHealthCheckCompleted      Kind = "healthCheckCompleted"
	KindBackupCompleted           Kind = "backupCompleted"
	KindBackupFailed              Kind = "backupFailed"
)

// Event is implemented by every event variant
type Event interface {
	Kind() Kind
}

// ServiceStarted is emitted once when the coordinator starts
type ServiceStarted struct {
	Timestamp time.Time
}

// ServiceStopped is emitted once when the coordinator stops
type ServiceStopped struct {
	Timestamp time.Time
}

// OperationFailed reports the aggregate failure of a wrapped operation
type OperationFailed struct {
	Operation string
	Err       error
}

// RetryAttempt is emitted before each backoff wait
type RetryAttempt struct {
	Operation string
	Attempt   int
	Delay     time.Duration
}

// RetryExhausted is emitted when all attempts have failed
type RetryExhausted struct {
	Operation string
	Attempts  int
}

// CircuitBreakerOpened is emitted when a breaker trips
type CircuitBreakerOpened struct {
	Operation    string
	FailureCount int
}

// CircuitBreakerReset is emitted when a breaker closes again
type CircuitBreakerReset struct {
	Operation string
}

// CircuitBreakerStateChanged is emitted on every breaker transition
type CircuitBreakerStateChanged struct {
	Operation string
	State     string
}

// ServiceHealthChanged is emitted only when a monitored service's status
// actually changes, never unconditionally every cycle
type ServiceHealthChanged struct {
	ServiceName string
	OldStatus   string
	NewStatus   string
}

// HealthCheckCompleted summarizes one health-check cycle's worst observed status
type HealthCheckCompleted struct {
	Status string
}

// BackupCompleted reports a successful backup run
type BackupCompleted struct {
	BackupID string
}

// BackupFailed reports a failed backup run; never propagated to callers
type BackupFailed struct {
	SourceConfigID string
	Err            error
}

func (ServiceStarted) Kind() Kind             { return KindServiceStarted }
func (ServiceStopped) Kind() Kind             { return KindServiceStopped }
func (OperationFailed) Kind() Kind            { return KindOperationFailed }
func (RetryAttempt) Kind() Kind               { return KindRetryAttempt }
func (RetryExhausted) Kind() Kind             { return KindRetryExhausted }
func (CircuitBreakerOpened) Kind() Kind       { return KindCircuitBreakerOpened }
func (CircuitBreakerReset) Kind() Kind        { return KindCircuitBreakerReset }
func (CircuitBreakerStateChanged) Kind() Kind { return KindCircuitBreakerStateChange }
func (ServiceHealthChanged) Kind() Kind       { return KindServiceHealthChanged }
func (HealthCheckCompleted) Kind() Kind       { return KindHealthCheckCompleted }
func (BackupCompleted) Kind() Kind            { return KindBackupCompleted }
func (BackupFailed) Kind() Kind               { return KindBackupFailed }

// Handler consumes published events
type Handler func(Event)

// Bus is a synchronous in-process publish/subscribe bus
type Bus struct {
	mu          sync.RWMutex
	subscribers map[Kind][]Handler
	all         []Handler
	logger      *logging.Logger
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return &Bus{
		subscribers: make(map[Kind][]Handler),
		logger:      logging.GetLogger(),
	}
}

// Subscribe registers a handler for a single event kind
func (b *Bus) Subscribe(kind Kind, handler Handler) {
	if handler == nil {
		b.logger.Warn("Attempted to register a nil event handler", "kind", string(kind))
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.subscribers[kind] = append(b.subscribers[kind], handler)
}

// SubscribeAll registers a handler for every event kind
func (b *Bus) SubscribeAll(handler Handler) {
	if handler == nil {
		b.logger.Warn("Attempted to register a nil event handler")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.all = append(b.all, handler)
}

// Publish delivers the event synchronously to all subscribers registered for
// its kind, in registration order, then to SubscribeAll handlers.
func (b *Bus) Publish(event Event) {
	if event == nil {
		return
	}

	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subscribers[event.Kind()])+len(b.all))
	handlers = append(handlers, b.subscribers[event.Kind()]...)
	handlers = append(handlers, b.all...)
	b.mu.RUnlock()

	for _, handler := range handlers {
		b.deliver(event, handler)
	}
}

// deliver invokes one handler, isolating panics so a misbehaving subscriber
// cannot prevent delivery to the rest or propagate into the emitter.
func (b *Bus) deliver(event Event, handler Handler) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Event subscriber panicked",
				"kind", string(event.Kind()),
				"panic", r,
			)
		}
	}()

	handler(event)
}
