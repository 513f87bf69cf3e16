package resilience

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/docfoundry/docfoundry/pkg/errors"
	"github.com/docfoundry/docfoundry/pkg/events"
	"github.com/docfoundry/docfoundry/pkg/logging"
)

// Config holds coordinator configuration
type Config struct {
	// Enabled disables all resilience wrapping when false; operations run
	// exactly once with no gating
	Enabled bool

	RetryEnabled bool
	Retry        RetryConfig

	CircuitBreakerEnabled   bool
	CircuitBreakerThreshold int
	CircuitBreakerTimeout   time.Duration

	HealthCheckEnabled bool
	HealthMonitor      HealthMonitorConfig

	BackupEnabled  bool
	BackupInterval time.Duration

	// StopGracePeriod bounds how long Stop waits for in-flight wrapped
	// operations before abandoning them
	StopGracePeriod time.Duration
}

// DefaultConfig returns default coordinator configuration
func DefaultConfig() Config {
	return Config{
		Enabled:                 true,
		RetryEnabled:            true,
		Retry:                   DefaultRetryConfig(),
		CircuitBreakerEnabled:   true,
		CircuitBreakerThreshold: 5,
		CircuitBreakerTimeout:   30 * time.Second,
		HealthCheckEnabled:      true,
		HealthMonitor:           DefaultHealthMonitorConfig(),
		BackupEnabled:           true,
		BackupInterval:          24 * time.Hour,
		StopGracePeriod:         10 * time.Second,
	}
}

// Operation is a caller-supplied fallible call
type Operation func(ctx context.Context) (any, error)

// Options controls a single Execute call
type Options struct {
	Retry          bool
	CircuitBreaker bool
	MaxAttempts    int
	BaseDelay      time.Duration
	Timeout        time.Duration
	// FailureClassifier decides what counts as a circuit-relevant failure;
	// nil means any error
	FailureClassifier func(error) bool
	// RetryClassifier decides what is worth retrying; nil means the
	// transient taxonomy from pkg/errors
	RetryClassifier func(error) bool
}

// Option mutates per-call options
type Option func(*Options)

// WithoutRetry runs the operation exactly once regardless of outcome
func WithoutRetry() Option {
	return func(o *Options) { o.Retry = false }
}

// WithoutCircuitBreaker skips circuit breaker gating for this call
func WithoutCircuitBreaker() Option {
	return func(o *Options) { o.CircuitBreaker = false }
}

// WithMaxAttempts overrides the configured attempt budget
func WithMaxAttempts(attempts int) Option {
	return func(o *Options) { o.MaxAttempts = attempts }
}

// WithBaseDelay overrides the configured backoff base
func WithBaseDelay(delay time.Duration) Option {
	return func(o *Options) { o.BaseDelay = delay }
}

// WithTimeout bounds the whole call, retries and backoff waits included
func WithTimeout(timeout time.Duration) Option {
	return func(o *Options) { o.Timeout = timeout }
}

// WithFailureClassifier supplies the circuit-relevant failure predicate
func WithFailureClassifier(classifier func(error) bool) Option {
	return func(o *Options) { o.FailureClassifier = classifier }
}

// WithRetryClassifier supplies the retryable-error predicate
func WithRetryClassifier(classifier func(error) bool) Option {
	return func(o *Options) { o.RetryClassifier = classifier }
}

// Coordinator orchestrates the retry policy and circuit breaker registry
// around caller-supplied operations, and owns the health monitor, backup
// scheduler, statistics, and lifecycle.
type Coordinator struct {
	config   Config
	bus      *events.Bus
	registry *Registry
	monitor  *HealthMonitor
	backups  *BackupScheduler
	stats    *statsCollector
	tracer   trace.Tracer
	logger   *logging.Logger

	mu       sync.Mutex
	started  bool
	inflight sync.WaitGroup
}

// NewCoordinator creates a coordinator. The bus is shared with the health
// monitor and backup scheduler; trips and resets observed on it feed the
// statistics counters.
func NewCoordinator(config Config, bus *events.Bus) *Coordinator {
	if bus == nil {
		bus = events.NewBus()
	}

	c := &Coordinator{
		config:   config,
		bus:      bus,
		registry: NewRegistry(bus, config.CircuitBreakerThreshold, config.CircuitBreakerTimeout),
		monitor:  NewHealthMonitor(config.HealthMonitor, bus),
		backups:  NewBackupScheduler(config.BackupInterval, bus),
		stats:    newStatsCollector(),
		tracer:   otel.Tracer("github.com/docfoundry/docfoundry/pkg/resilience"),
		logger:   logging.GetLogger(),
	}

	bus.Subscribe(events.KindCircuitBreakerOpened, func(events.Event) { c.stats.recordTrip() })
	bus.Subscribe(events.KindCircuitBreakerReset, func(events.Event) { c.stats.recordReset() })

	return c
}

// Bus returns the shared event bus
func (c *Coordinator) Bus() *events.Bus {
	return c.bus
}

// Execute runs the operation under resilience. When the circuit breaker is
// enabled the call is first gated by the per-operation breaker; if admitted
// and retry is enabled, the retry policy drives the attempt loop inside the
// admitted call. The aggregate outcome of the whole retry sequence, not each
// individual attempt, is what feeds back to the breaker.
//
// The caller receives either the operation's result or exactly one of:
// *CircuitOpenError, *RetryExhaustedError, or the operation's own error.
func (c *Coordinator) Execute(ctx context.Context, operation string, op Operation, opts ...Option) (any, error) {
	if !c.config.Enabled {
		return op(ctx)
	}

	options := c.defaultOptions()
	for _, opt := range opts {
		opt(&options)
	}

	if options.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, options.Timeout)
		defer cancel()
	}

	ctx, span := c.tracer.Start(ctx, "resilience.Execute",
		trace.WithAttributes(
			attribute.String("operation", operation),
			attribute.Bool("retry", options.Retry),
			attribute.Bool("circuit_breaker", options.CircuitBreaker),
		),
	)
	defer span.End()

	c.inflight.Add(1)
	defer c.inflight.Done()

	c.stats.recordOperation()
	start := time.Now()

	var breaker *CircuitBreaker
	var probe bool

	if options.CircuitBreaker {
		breaker = c.registry.GetOrCreate(operation)

		var err error
		if probe, err = breaker.Allow(); err != nil {
			c.stats.recordFailure()
			span.SetStatus(codes.Error, "circuit open")

			return nil, err
		}
	}

	result, attempts, err := c.run(ctx, operation, op, options)

	span.SetAttributes(attribute.Int("attempts", attempts))
	c.stats.recordRetries(attempts-1, err == nil)

	if breaker != nil {
		failure := err != nil && options.FailureClassifier(err)
		breaker.RecordResult(!failure, probe)
	}

	c.logger.LogOperationOutcome(ctx, operation, attempts, time.Since(start), err)

	if err != nil {
		c.stats.recordFailure()
		c.bus.Publish(events.OperationFailed{Operation: operation, Err: err})
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		return nil, err
	}

	return result, nil
}

// run executes the attempt loop, or a single attempt when retry is disabled
func (c *Coordinator) run(ctx context.Context, operation string, op Operation, options Options) (any, int, error) {
	if !options.Retry {
		result, err := op(ctx)
		return result, 1, err
	}

	retryConfig := c.config.Retry
	if options.MaxAttempts > 0 {
		retryConfig.MaxAttempts = options.MaxAttempts
	}
	if options.BaseDelay > 0 {
		retryConfig.BaseDelay = options.BaseDelay
	}
	if options.RetryClassifier != nil {
		retryConfig.Classifier = options.RetryClassifier
	}

	retrier := NewRetrier(retryConfig, c.bus)

	return retrier.Execute(ctx, operation, op)
}

func (c *Coordinator) defaultOptions() Options {
	return Options{
		Retry:             c.config.RetryEnabled,
		CircuitBreaker:    c.config.CircuitBreakerEnabled,
		FailureClassifier: func(err error) bool { return err != nil },
		RetryClassifier:   errors.IsRetryable,
	}
}

// RegisterService registers a health probe for a named dependency
func (c *Coordinator) RegisterService(name string, probe Probe) {
	c.monitor.Register(name, probe)
}

// UnregisterService removes a dependency and its health record
func (c *Coordinator) UnregisterService(name string) {
	c.monitor.Unregister(name)
}

// ServiceHealth returns a copy of a dependency's health record; unregistered
// names report the unknown status
func (c *Coordinator) ServiceHealth(name string) ServiceHealthRecord {
	return c.monitor.Record(name)
}

// ServiceHealthRecords returns a copy of every health record
func (c *Coordinator) ServiceHealthRecords() map[string]ServiceHealthRecord {
	return c.monitor.Records()
}

// RegisterBackupProvider adds a backup provider
func (c *Coordinator) RegisterBackupProvider(provider BackupProvider) {
	c.backups.Register(provider)
}

// Stats returns an immutable snapshot of the counters
func (c *Coordinator) Stats() Stats {
	return c.stats.snapshot()
}

// ResetStats zeroes the counters
func (c *Coordinator) ResetStats() {
	c.stats.reset()
}

// BreakerStates returns a copy of every circuit breaker's state
func (c *Coordinator) BreakerStates() map[string]OperationState {
	return c.registry.Snapshot()
}

// CheckHealth triggers one out-of-band health monitor cycle synchronously and
// returns the cycle's worst observed status
func (c *Coordinator) CheckHealth(ctx context.Context) HealthStatus {
	return c.monitor.RunCycle(ctx)
}

// RunBackups triggers one out-of-band backup cycle synchronously
func (c *Coordinator) RunBackups(ctx context.Context) []BackupRecord {
	return c.backups.RunCycle(ctx)
}

// Start launches the health monitor and backup scheduler loops
func (c *Coordinator) Start() {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.mu.Unlock()

	if c.config.HealthCheckEnabled {
		c.monitor.Start()
	}

	if c.config.BackupEnabled {
		c.backups.Start()
	}

	c.bus.Publish(events.ServiceStarted{Timestamp: time.Now()})
	c.logger.Info("Resilience coordinator started")
}

// Stop cancels both timer loops deterministically, then lets in-flight
// wrapped operations finish within the grace period before returning.
func (c *Coordinator) Stop(ctx context.Context) {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return
	}
	c.started = false
	c.mu.Unlock()

	c.monitor.Stop()
	c.backups.Stop()

	done := make(chan struct{})
	go func() {
		c.inflight.Wait()
		close(done)
	}()

	grace := c.config.StopGracePeriod
	if grace <= 0 {
		grace = 10 * time.Second
	}

	timer := time.NewTimer(grace)
	defer timer.Stop()

	select {
	case <-done:
	case <-timer.C:
		c.logger.Warn("Grace period elapsed, abandoning in-flight operations")
	case <-ctx.Done():
		c.logger.Warn("Stop context cancelled, abandoning in-flight operations")
	}

	c.bus.Publish(events.ServiceStopped{Timestamp: time.Now()})
	c.logger.Info("Resilience coordinator stopped")
}
