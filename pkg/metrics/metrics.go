package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/docfoundry/docfoundry/pkg/events"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight *prometheus.GaugeVec

	// Operation metrics
	OperationsTotal   *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec

	// Retry metrics
	RetriesTotal        *prometheus.CounterVec
	RetryExhaustedTotal *prometheus.CounterVec

	// Circuit breaker metrics
	CircuitBreakerState  *prometheus.GaugeVec
	CircuitBreakerTrips  *prometheus.CounterVec
	CircuitBreakerResets *prometheus.CounterVec

	// Health metrics
	ServiceHealthStatus *prometheus.GaugeVec
	HealthChecksTotal   *prometheus.CounterVec

	// Backup metrics
	BackupsTotal *prometheus.CounterVec

	// Storage metrics
	DatabaseQueryDuration  *prometheus.HistogramVec
	CacheOperationDuration *prometheus.HistogramVec
	CacheHitsTotal         *prometheus.CounterVec
	CacheMissesTotal       *prometheus.CounterVec
	RedisConnections       *prometheus.GaugeVec
}

// Config holds metrics configuration
type Config struct {
	Namespace string `json:"namespace"`
	Subsystem string `json:"subsystem"`
	Enabled   bool   `json:"enabled"`
}

// DefaultConfig returns default metrics configuration
func DefaultConfig() *Config {
	return &Config{
		Namespace: "docfoundry",
		Subsystem: "",
		Enabled:   true,
	}
}

// NewMetrics creates all Prometheus metrics and registers them on the default
// registerer
func NewMetrics(config *Config) *Metrics {
	return newMetrics(config, prometheus.DefaultRegisterer)
}

func newMetrics(config *Config, registerer prometheus.Registerer) *Metrics {
	if config == nil {
		config = DefaultConfig()
	}

	if !config.Enabled {
		return &Metrics{}
	}

	m := &Metrics{
		// HTTP metrics
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status_code"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path", "status_code"},
		),
		HTTPRequestsInFlight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "http_requests_in_flight",
				Help:      "Number of HTTP requests currently being processed",
			},
			[]string{"method", "path"},
		),

		// Operation metrics
		OperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "operations_total",
				Help:      "Total number of wrapped operations executed",
			},
			[]string{"operation", "status"},
		),
		OperationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "operation_duration_seconds",
				Help:      "Wrapped operation duration in seconds, retries included",
				Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"operation", "status"},
		),

		// Retry metrics
		RetriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "retries_total",
				Help:      "Total number of retry attempts",
			},
			[]string{"operation"},
		),
		RetryExhaustedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "retry_exhausted_total",
				Help:      "Total number of retry sequences that exhausted their attempt budget",
			},
			[]string{"operation"},
		),

		// Circuit breaker metrics
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "circuit_breaker_state",
				Help:      "Circuit breaker state (0=closed, 1=open, 2=half_open)",
			},
			[]string{"operation"},
		),
		CircuitBreakerTrips: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "circuit_breaker_trips_total",
				Help:      "Total number of circuit breaker trips",
			},
			[]string{"operation"},
		),
		CircuitBreakerResets: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "circuit_breaker_resets_total",
				Help:      "Total number of circuit breaker resets",
			},
			[]string{"operation"},
		),

		// Health metrics
		ServiceHealthStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "service_health_status",
				Help:      "Monitored service health (0=healthy, 1=unknown, 2=degraded, 3=critical)",
			},
			[]string{"service"},
		),
		HealthChecksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "health_checks_total",
				Help:      "Total number of completed health check cycles",
			},
			[]string{"status"},
		),

		// Backup metrics
		BackupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "backups_total",
				Help:      "Total number of backup runs",
			},
			[]string{"outcome"},
		),

		// Storage metrics
		DatabaseQueryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "database_query_duration_seconds",
				Help:      "Database query duration in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
			},
			[]string{"operation", "table"},
		),
		CacheOperationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "cache_operation_duration_seconds",
				Help:      "Cache operation duration in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
			[]string{"operation", "cache_type"},
		),
		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "cache_hits_total",
				Help:      "Total number of cache hits",
			},
			[]string{"cache_type"},
		),
		CacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "cache_misses_total",
				Help:      "Total number of cache misses",
			},
			[]string{"cache_type"},
		),
		RedisConnections: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "redis_connections",
				Help:      "Number of Redis connections",
			},
			[]string{"state"},
		),
	}

	registerer.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.OperationsTotal,
		m.OperationDuration,
		m.RetriesTotal,
		m.RetryExhaustedTotal,
		m.CircuitBreakerState,
		m.CircuitBreakerTrips,
		m.CircuitBreakerResets,
		m.ServiceHealthStatus,
		m.HealthChecksTotal,
		m.BackupsTotal,
		m.DatabaseQueryDuration,
		m.CacheOperationDuration,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.RedisConnections,
	)

	return m
}

// RecordHTTPRequest records HTTP request metrics
func (m *Metrics) RecordHTTPRequest(method, path string, statusCode int, duration time.Duration) {
	if m.HTTPRequestsTotal == nil {
		return
	}

	statusStr := strconv.Itoa(statusCode)
	m.HTTPRequestsTotal.WithLabelValues(method, path, statusStr).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path, statusStr).Observe(duration.Seconds())
}

// RecordOperation records a wrapped operation's outcome and duration
func (m *Metrics) RecordOperation(operation, status string, duration time.Duration) {
	if m.OperationsTotal == nil {
		return
	}

	m.OperationsTotal.WithLabelValues(operation, status).Inc()
	m.OperationDuration.WithLabelValues(operation, status).Observe(duration.Seconds())
}

// RecordDatabaseQuery records database query metrics
func (m *Metrics) RecordDatabaseQuery(operation, table string, duration time.Duration) {
	if m.DatabaseQueryDuration == nil {
		return
	}

	m.DatabaseQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
}

// RecordCacheOperation records cache operation metrics
func (m *Metrics) RecordCacheOperation(operation, cacheType string, duration time.Duration, hit bool) {
	if m.CacheOperationDuration == nil {
		return
	}

	m.CacheOperationDuration.WithLabelValues(operation, cacheType).Observe(duration.Seconds())

	if operation == "get" {
		if hit {
			m.CacheHitsTotal.WithLabelValues(cacheType).Inc()
		} else {
			m.CacheMissesTotal.WithLabelValues(cacheType).Inc()
		}
	}
}

// UpdateRedisConnections updates Redis connection metrics
func (m *Metrics) UpdateRedisConnections(total, idle, stale int) {
	if m.RedisConnections == nil {
		return
	}

	m.RedisConnections.WithLabelValues("total").Set(float64(total))
	m.RedisConnections.WithLabelValues("idle").Set(float64(idle))
	m.RedisConnections.WithLabelValues("stale").Set(float64(stale))
}

// UpdateServiceHealth updates the health gauge for one monitored service
func (m *Metrics) UpdateServiceHealth(service string, rank int) {
	if m.ServiceHealthStatus == nil {
		return
	}

	m.ServiceHealthStatus.WithLabelValues(service).Set(float64(rank))
}

// PrometheusMiddleware creates a middleware for Prometheus metrics collection
func (m *Metrics) PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m.HTTPRequestsInFlight != nil {
			m.HTTPRequestsInFlight.WithLabelValues(c.Request.Method, c.FullPath()).Inc()
			defer m.HTTPRequestsInFlight.WithLabelValues(c.Request.Method, c.FullPath()).Dec()
		}

		start := time.Now()
		c.Next()
		duration := time.Since(start)

		m.RecordHTTPRequest(c.Request.Method, c.FullPath(), c.Writer.Status(), duration)
	}
}

// Handler returns the Prometheus metrics HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.Handler()
}

// healthRank mirrors the monitor's best-to-worst ordering for the gauge value
func healthRank(status string) int {
	switch status {
	case "healthy":
		return 0
	case "degraded":
		return 2
	case "critical":
		return 3
	default:
		return 1
	}
}

// circuitStateValue maps a breaker state name to its gauge value
func circuitStateValue(state string) float64 {
	switch state {
	case "open":
		return 1
	case "half_open":
		return 2
	default:
		return 0
	}
}

// BindEventBus subscribes the metrics to the coordination events so counters
// and gauges track the resilience layer without instrumenting call sites.
func (m *Metrics) BindEventBus(bus *events.Bus) {
	if bus == nil || m.OperationsTotal == nil {
		return
	}

	bus.Subscribe(events.KindOperationFailed, func(e events.Event) {
		evt := e.(events.OperationFailed)
		m.OperationsTotal.WithLabelValues(evt.Operation, "failed").Inc()
	})

	bus.Subscribe(events.KindRetryAttempt, func(e events.Event) {
		evt := e.(events.RetryAttempt)
		m.RetriesTotal.WithLabelValues(evt.Operation).Inc()
	})

	bus.Subscribe(events.KindRetryExhausted, func(e events.Event) {
		evt := e.(events.RetryExhausted)
		m.RetryExhaustedTotal.WithLabelValues(evt.Operation).Inc()
	})

	bus.Subscribe(events.KindCircuitBreakerOpened, func(e events.Event) {
		evt := e.(events.CircuitBreakerOpened)
		m.CircuitBreakerTrips.WithLabelValues(evt.Operation).Inc()
	})

	bus.Subscribe(events.KindCircuitBreakerReset, func(e events.Event) {
		evt := e.(events.CircuitBreakerReset)
		m.CircuitBreakerResets.WithLabelValues(evt.Operation).Inc()
	})

	bus.Subscribe(events.KindCircuitBreakerStateChange, func(e events.Event) {
		evt := e.(events.CircuitBreakerStateChanged)
		m.CircuitBreakerState.WithLabelValues(evt.Operation).Set(circuitStateValue(evt.State))
	})

	bus.Subscribe(events.KindServiceHealthChanged, func(e events.Event) {
		evt := e.(events.ServiceHealthChanged)
		m.UpdateServiceHealth(evt.ServiceName, healthRank(evt.NewStatus))
	})

	bus.Subscribe(events.KindHealthCheckCompleted, func(e events.Event) {
		evt := e.(events.HealthCheckCompleted)
		m.HealthChecksTotal.WithLabelValues(evt.Status).Inc()
	})

	bus.Subscribe(events.KindBackupCompleted, func(e events.Event) {
		m.BackupsTotal.WithLabelValues("success").Inc()
	})

	bus.Subscribe(events.KindBackupFailed, func(e events.Event) {
		m.BackupsTotal.WithLabelValues("failed").Inc()
	})
}
