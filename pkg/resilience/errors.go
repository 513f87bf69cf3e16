package resilience

import (
	"errors"
	"fmt"
)

// CircuitOpenError is returned when the breaker state prevented invocation:
// either the circuit is open and its timeout has not elapsed, or it is
// half-open and the recovery probe is already in flight.
type CircuitOpenError struct {
	Operation string
	State     CircuitState
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit breaker for '%s' is %s", e.Operation, e.State.String())
}

// RetryExhaustedError wraps the last underlying error after all attempts fail.
type RetryExhaustedError struct {
	Operation string
	Attempts  int
	LastErr   error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("operation '%s' failed after %d attempts: %v", e.Operation, e.Attempts, e.LastErr)
}

// Unwrap returns the last underlying error.
func (e *RetryExhaustedError) Unwrap() error {
	return e.LastErr
}

// IsCircuitOpen checks if an error is a circuit breaker rejection
func IsCircuitOpen(err error) bool {
	var coErr *CircuitOpenError
	return errors.As(err, &coErr)
}

// IsRetryExhausted checks if an error is a retry exhaustion
func IsRetryExhausted(err error) bool {
	var reErr *RetryExhaustedError
	return errors.As(err, &reErr)
}
