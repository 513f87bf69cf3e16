package resilience

import (
	"sync"
	"time"

	"github.com/docfoundry/docfoundry/pkg/events"
	"github.com/docfoundry/docfoundry/pkg/logging"
)

// Registry holds one circuit breaker per operation name. Breakers are created
// lazily on first use and live for the registry's lifetime; operations with
// different names never contend on shared state.
type Registry struct {
	threshold int
	timeout   time.Duration

	mu       sync.RWMutex
	breakers map[string]*CircuitBreaker

	bus    *events.Bus
	logger *logging.Logger
}

// NewRegistry creates a circuit breaker registry with shared threshold and
// open-state timeout settings.
func NewRegistry(bus *events.Bus, threshold int, timeout time.Duration) *Registry {
	if threshold <= 0 {
		threshold = 5
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Registry{
		threshold: threshold,
		timeout:   timeout,
		breakers:  make(map[string]*CircuitBreaker),
		bus:       bus,
		logger:    logging.GetLogger(),
	}
}

// GetOrCreate returns the breaker for an operation name, creating it lazily.
func (r *Registry) GetOrCreate(operation string) *CircuitBreaker {
	r.mu.RLock()
	breaker, exists := r.breakers[operation]
	r.mu.RUnlock()

	if exists {
		return breaker
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check after acquiring write lock
	if breaker, exists = r.breakers[operation]; exists {
		return breaker
	}

	breaker = newCircuitBreaker(operation, r.threshold, r.timeout, r.bus)
	r.breakers[operation] = breaker

	r.logger.Debug("Created circuit breaker", "operation", operation)

	return breaker
}

// Snapshot returns a copy of every breaker's current state
func (r *Registry) Snapshot() map[string]OperationState {
	r.mu.RLock()
	breakers := make([]*CircuitBreaker, 0, len(r.breakers))
	for _, breaker := range r.breakers {
		breakers = append(breakers, breaker)
	}
	r.mu.RUnlock()

	states := make(map[string]OperationState, len(breakers))
	for _, breaker := range breakers {
		state := breaker.Snapshot()
		states[state.Operation] = state
	}

	return states
}
