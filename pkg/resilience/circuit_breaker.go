package resilience

import (
	"sync"
	"time"

	"github.com/docfoundry/docfoundry/pkg/events"
	"github.com/docfoundry/docfoundry/pkg/logging"
)

// CircuitState represents the state of a circuit breaker
type CircuitState int

const (
	// StateClosed - calls flow through, failures are counted
	StateClosed CircuitState = iota
	// StateOpen - calls fast-fail without invoking the operation
	StateOpen
	// StateHalfOpen - a single recovery probe is admitted
	StateHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// OperationState is a point-in-time copy of a breaker's per-operation state
type OperationState struct {
	Operation             string
	State                 CircuitState
	FailureCount          int
	LastFailureTime       time.Time
	LastStateChangeTime   time.Time
	HalfOpenProbeInFlight bool
}

// CircuitBreaker is the per-operation state machine. Transitions follow
// closed -> open -> half_open -> {closed|open}; the open -> half_open edge is
// evaluated lazily on the next call after the timeout elapses.
type CircuitBreaker struct {
	operation string
	threshold int
	timeout   time.Duration

	mu              sync.Mutex
	state           CircuitState
	failureCount    int
	lastFailureTime time.Time
	lastStateChange time.Time
	probeInFlight   bool

	bus    *events.Bus
	logger *logging.Logger
}

func newCircuitBreaker(operation string, threshold int, timeout time.Duration, bus *events.Bus) *CircuitBreaker {
	return &CircuitBreaker{
		operation:       operation,
		threshold:       threshold,
		timeout:         timeout,
		state:           StateClosed,
		lastStateChange: time.Now(),
		bus:             bus,
		logger:          logging.GetLogger(),
	}
}

// Allow decides whether a call may proceed. It returns probe=true when the
// caller has been admitted as the single half-open recovery probe, and a
// *CircuitOpenError when the breaker rejected the call. The read-and-transition
// sequence runs under the per-operation lock so two concurrent callers cannot
// both be admitted as the probe.
func (cb *CircuitBreaker) Allow() (probe bool, err error) {
	cb.mu.Lock()

	var pending []events.Event

	switch cb.state {
	case StateClosed:
		cb.mu.Unlock()
		return false, nil

	case StateOpen:
		if time.Since(cb.lastStateChange) >= cb.timeout {
			pending = cb.transition(StateHalfOpen)
			cb.probeInFlight = true
			cb.mu.Unlock()
			cb.publish(pending)

			return true, nil
		}
		cb.mu.Unlock()

		return false, &CircuitOpenError{Operation: cb.operation, State: StateOpen}

	default: // StateHalfOpen
		if cb.probeInFlight {
			cb.mu.Unlock()
			return false, &CircuitOpenError{Operation: cb.operation, State: StateHalfOpen}
		}

		cb.probeInFlight = true
		cb.mu.Unlock()

		return true, nil
	}
}

// RecordResult reports the aggregate outcome of an admitted call. A retried
// call reports once, after its whole retry sequence resolves, so internal
// transient attempts cannot trip the breaker multiple times for one request.
func (cb *CircuitBreaker) RecordResult(success, probe bool) {
	cb.mu.Lock()

	if probe {
		cb.probeInFlight = false
	}

	var pending []events.Event

	if success {
		switch cb.state {
		case StateHalfOpen:
			pending = cb.transition(StateClosed)
		case StateClosed:
			cb.failureCount = 0
		}
	} else {
		cb.lastFailureTime = time.Now()

		switch cb.state {
		case StateClosed:
			cb.failureCount++
			if cb.failureCount >= cb.threshold {
				pending = cb.transition(StateOpen)
			}
		case StateHalfOpen:
			// Failed probe reopens the circuit and restarts the timer
			pending = cb.transition(StateOpen)
		}
	}

	cb.mu.Unlock()
	cb.publish(pending)
}

// transition moves to a new state and returns the events to publish once the
// lock is released. Entering closed resets the failure count; entering open
// freezes it at the tripping value.
func (cb *CircuitBreaker) transition(to CircuitState) []events.Event {
	from := cb.state
	if from == to {
		return nil
	}

	cb.state = to
	cb.lastStateChange = time.Now()

	pending := []events.Event{
		events.CircuitBreakerStateChanged{Operation: cb.operation, State: to.String()},
	}

	switch to {
	case StateOpen:
		pending = append(pending, events.CircuitBreakerOpened{
			Operation:    cb.operation,
			FailureCount: cb.failureCount,
		})
		cb.logger.Warn("Circuit breaker opened",
			"operation", cb.operation,
			"failure_count", cb.failureCount,
		)
	case StateClosed:
		cb.failureCount = 0
		pending = append(pending, events.CircuitBreakerReset{Operation: cb.operation})
		cb.logger.Info("Circuit breaker reset",
			"operation", cb.operation,
		)
	case StateHalfOpen:
		cb.logger.Info("Circuit breaker half-open, admitting recovery probe",
			"operation", cb.operation,
		)
	}

	return pending
}

func (cb *CircuitBreaker) publish(pending []events.Event) {
	if cb.bus == nil {
		return
	}
	for _, event := range pending {
		cb.bus.Publish(event)
	}
}

// State returns the current state without triggering transitions
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return cb.state
}

// Snapshot returns a copy of the breaker's state
func (cb *CircuitBreaker) Snapshot() OperationState {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return OperationState{
		Operation:             cb.operation,
		State:                 cb.state,
		FailureCount:          cb.failureCount,
		LastFailureTime:       cb.lastFailureTime,
		LastStateChangeTime:   cb.lastStateChange,
		HalfOpenProbeInFlight: cb.probeInFlight,
	}
}
