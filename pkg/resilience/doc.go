// Package resilience is the coordination layer that wraps fallible remote and
// service calls (documentation lookups, cache operations, backups) with uniform
// failure handling: bounded retries with exponential backoff, per-operation
// circuit breaking, periodic dependency health polling, and scheduled backups.
//
// # Circuit Breaker
//
// One breaker state machine exists per operation name, created lazily on first
// use. After a run of classified failures the breaker opens and fast-fails
// callers; after the configured timeout a single recovery probe is admitted.
//
//	registry := resilience.NewRegistry(bus, threshold, timeout)
//	cb := registry.GetOrCreate("docs-lookup")
//
// # Retry with Exponential Backoff
//
// The retry policy drives a bounded attempt loop with exponential backoff and
// jitter, aborting early when the caller's deadline cannot accommodate the
// next wait.
//
//	retrier := resilience.NewRetrier(resilience.DefaultRetryConfig(), bus)
//	result, attempts, err := retrier.Execute(ctx, "docs-lookup", op)
//
// # Coordinator
//
// The Coordinator composes both around caller-supplied operations and owns the
// health monitor, backup scheduler, statistics, and lifecycle:
//
//	coord := resilience.NewCoordinator(cfg, bus)
//	coord.Start()
//	defer coord.Stop(ctx)
//
//	result, err := coord.Execute(ctx, "docs-lookup", func(ctx context.Context) (any, error) {
//		return docsClient.Lookup(ctx, topic)
//	})
//
// A caller receives either the operation's successful result or exactly one of
// the typed errors: *CircuitOpenError, *RetryExhaustedError, or the operation's
// own error. Probe and backup failures are isolated to their subsystems and
// surface only through events and statistics.
//
// The package is designed to be thread-safe; operations with different names
// never contend on shared state.
package resilience
