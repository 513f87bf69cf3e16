package resilience

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/docfoundry/docfoundry/pkg/errors"
	"github.com/docfoundry/docfoundry/pkg/events"
	"github.com/docfoundry/docfoundry/pkg/logging"
)

// maxBackoffShift bounds the exponent so the deterministic delay component
// cannot overflow int64 nanoseconds.
const maxBackoffShift = 32

// RetryConfig holds configuration for the retry policy
type RetryConfig struct {
	// MaxAttempts is the total number of attempts, including the first
	MaxAttempts int
	// BaseDelay is the backoff base for the first retry
	BaseDelay time.Duration
	// MaxDelay caps the computed delay, jitter included
	MaxDelay time.Duration
	// Classifier determines if an error is retryable; nil means the
	// transient/timeout/external taxonomy from pkg/errors
	Classifier func(error) bool
}

// DefaultRetryConfig returns a default retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   1 * time.Second,
		MaxDelay:    30 * time.Second,
		Classifier:  errors.IsRetryable,
	}
}

// Retrier drives a bounded attempt loop with exponential backoff and jitter
type Retrier struct {
	config RetryConfig
	bus    *events.Bus
	logger *logging.Logger
}

// NewRetrier creates a new retrier with the given configuration
func NewRetrier(config RetryConfig, bus *events.Bus) *Retrier {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 1
	}
	if config.BaseDelay <= 0 {
		config.BaseDelay = 1 * time.Second
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = 30 * time.Second
	}
	if config.Classifier == nil {
		config.Classifier = errors.IsRetryable
	}

	return &Retrier{
		config: config,
		bus:    bus,
		logger: logging.GetLogger(),
	}
}

// Execute runs the operation under the retry policy. It returns the result,
// the number of attempts actually made, and the terminal error, which is
// either the operation's own non-retryable error or a *RetryExhaustedError
// wrapping the last failure.
func (r *Retrier) Execute(ctx context.Context, operation string, op func(context.Context) (any, error)) (any, int, error) {
	var lastErr error

	for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return nil, attempt - 1, &RetryExhaustedError{Operation: operation, Attempts: attempt - 1, LastErr: ctx.Err()}
		}

		result, err := op(ctx)
		if err == nil {
			if attempt > 1 {
				r.logger.Info("Operation succeeded after retry",
					"operation", operation,
					"attempt", attempt,
				)
			}
			return result, attempt, nil
		}

		lastErr = err

		if !r.config.Classifier(err) {
			r.logger.Debug("Error is not retryable, stopping",
				"operation", operation,
				"error", err.Error(),
				"attempt", attempt,
			)
			return nil, attempt, err
		}

		// No wait after the final attempt
		if attempt == r.config.MaxAttempts {
			break
		}

		delay := r.computeDelay(attempt)

		// Fail fast when the caller's deadline cannot accommodate the
		// full wait; a partial backoff is never slept out.
		if deadline, ok := ctx.Deadline(); ok && time.Now().Add(delay).After(deadline) {
			r.logger.Debug("Deadline would be exceeded by backoff, aborting retries",
				"operation", operation,
				"attempt", attempt,
				"delay", delay,
			)
			r.publish(events.RetryExhausted{Operation: operation, Attempts: attempt})

			return nil, attempt, &RetryExhaustedError{Operation: operation, Attempts: attempt, LastErr: lastErr}
		}

		r.publish(events.RetryAttempt{Operation: operation, Attempt: attempt, Delay: delay})

		r.logger.Debug("Operation failed, retrying",
			"operation", operation,
			"error", err.Error(),
			"attempt", attempt,
			"max_attempts", r.config.MaxAttempts,
			"delay", delay,
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, attempt, &RetryExhaustedError{Operation: operation, Attempts: attempt, LastErr: lastErr}
		case <-timer.C:
		}
	}

	r.logger.Error("Operation failed after all retry attempts",
		"operation", operation,
		"error", lastErr.Error(),
		"attempts", r.config.MaxAttempts,
	)
	r.publish(events.RetryExhausted{Operation: operation, Attempts: r.config.MaxAttempts})

	return nil, r.config.MaxAttempts, &RetryExhaustedError{
		Operation: operation,
		Attempts:  r.config.MaxAttempts,
		LastErr:   lastErr,
	}
}

// computeDelay returns base * 2^(attempt-1) plus up to 10% jitter, capped at
// MaxDelay. The deterministic component is non-decreasing across attempts.
func (r *Retrier) computeDelay(attempt int) time.Duration {
	shift := attempt - 1
	if shift > maxBackoffShift {
		shift = maxBackoffShift
	}

	exp := float64(r.config.BaseDelay) * math.Pow(2, float64(shift))
	jitter := rand.Float64() * 0.1 * exp

	delay := exp + jitter
	if delay > float64(r.config.MaxDelay) {
		delay = float64(r.config.MaxDelay)
	}

	return time.Duration(delay)
}

func (r *Retrier) publish(event events.Event) {
	if r.bus != nil {
		r.bus.Publish(event)
	}
}
