package resilience

import "sync"

// Stats holds process-wide monotonically-accumulating counters. Counters never
// decrease within a coordinator lifetime except through an explicit Reset.
type Stats struct {
	TotalOperations      uint64 `json:"total_operations"`
	TotalFailures        uint64 `json:"total_failures"`
	TotalRetries         uint64 `json:"total_retries"`
	SuccessfulRetries    uint64 `json:"successful_retries"`
	CircuitBreakerTrips  uint64 `json:"circuit_breaker_trips"`
	CircuitBreakerResets uint64 `json:"circuit_breaker_resets"`
}

// statsCollector guards the counters behind a mutex and hands out value copies
type statsCollector struct {
	mu    sync.Mutex
	stats Stats
}

func newStatsCollector() *statsCollector {
	return &statsCollector{}
}

func (c *statsCollector) recordOperation() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stats.TotalOperations++
}

func (c *statsCollector) recordFailure() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stats.TotalFailures++
}

// recordRetries accounts a finished retry sequence: retries is the number of
// waits taken beyond the first attempt, succeeded whether the sequence
// ultimately resolved.
func (c *statsCollector) recordRetries(retries int, succeeded bool) {
	if retries <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.stats.TotalRetries += uint64(retries)
	if succeeded {
		c.stats.SuccessfulRetries++
	}
}

func (c *statsCollector) recordTrip() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stats.CircuitBreakerTrips++
}

func (c *statsCollector) recordReset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stats.CircuitBreakerResets++
}

// snapshot returns an immutable copy of the counters
func (c *statsCollector) snapshot() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.stats
}

// reset zeroes all counters
func (c *statsCollector) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stats = Stats{}
}
