package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/docfoundry/docfoundry/pkg/events"
	"github.com/docfoundry/docfoundry/pkg/logging"
)

// HealthStatus represents a monitored service's health
type HealthStatus string

const (
	StatusHealthy  HealthStatus = "healthy"
	StatusDegraded HealthStatus = "degraded"
	StatusCritical HealthStatus = "critical"
	StatusUnknown  HealthStatus = "unknown"
)

// statusRank orders statuses from best to worst for cycle summaries
func statusRank(s HealthStatus) int {
	switch s {
	case StatusHealthy:
		return 0
	case StatusUnknown:
		return 1
	case StatusDegraded:
		return 2
	case StatusCritical:
		return 3
	default:
		return 1
	}
}

// Probe is a lightweight synthetic check of a dependency's availability
type Probe func(ctx context.Context) error

// ServiceHealthRecord tracks one registered service's health. Status changes
// only as a result of monitor evaluation, never from the request path.
type ServiceHealthRecord struct {
	ServiceName         string       `json:"service_name"`
	Status              HealthStatus `json:"status"`
	ConsecutiveFailures int          `json:"consecutive_failures"`
	LastCheckedAt       time.Time    `json:"last_checked_at"`
	LastError           string       `json:"last_error,omitempty"`
}

// HealthMonitorConfig holds health monitor settings
type HealthMonitorConfig struct {
	// Interval between scheduled check cycles
	Interval time.Duration
	// ProbeTimeout bounds each individual probe invocation
	ProbeTimeout time.Duration
	// CriticalAfter is the consecutive-failure count at which a service
	// is marked critical; one failure already marks it degraded
	CriticalAfter int
}

// DefaultHealthMonitorConfig returns default health monitor settings
func DefaultHealthMonitorConfig() HealthMonitorConfig {
	return HealthMonitorConfig{
		Interval:      30 * time.Second,
		ProbeTimeout:  5 * time.Second,
		CriticalAfter: 3,
	}
}

// HealthMonitor polls registered probes on a fixed interval and maintains
// per-service health records, independent of the per-call retry and circuit
// breaker path.
type HealthMonitor struct {
	config HealthMonitorConfig

	mu      sync.RWMutex
	probes  map[string]Probe
	records map[string]*ServiceHealthRecord

	stopChan chan struct{}
	wg       sync.WaitGroup
	started  bool

	bus    *events.Bus
	logger *logging.Logger
}

// NewHealthMonitor creates a health monitor
func NewHealthMonitor(config HealthMonitorConfig, bus *events.Bus) *HealthMonitor {
	if config.Interval <= 0 {
		config.Interval = 30 * time.Second
	}
	if config.ProbeTimeout <= 0 {
		config.ProbeTimeout = 5 * time.Second
	}
	if config.CriticalAfter <= 0 {
		config.CriticalAfter = 3
	}

	return &HealthMonitor{
		config:  config,
		probes:  make(map[string]Probe),
		records: make(map[string]*ServiceHealthRecord),
		bus:     bus,
		logger:  logging.GetLogger(),
	}
}

// Register adds a service probe. The record starts in the unknown state until
// the first check cycle evaluates it.
func (hm *HealthMonitor) Register(serviceName string, probe Probe) {
	hm.mu.Lock()
	defer hm.mu.Unlock()

	hm.probes[serviceName] = probe
	hm.records[serviceName] = &ServiceHealthRecord{
		ServiceName: serviceName,
		Status:      StatusUnknown,
	}

	hm.logger.Info("Registered health probe", "service_name", serviceName)
}

// Unregister removes a service and its health record
func (hm *HealthMonitor) Unregister(serviceName string) {
	hm.mu.Lock()
	defer hm.mu.Unlock()

	delete(hm.probes, serviceName)
	delete(hm.records, serviceName)

	hm.logger.Info("Unregistered health probe", "service_name", serviceName)
}

// Record returns a copy of a service's health record; unregistered services
// report the unknown status.
func (hm *HealthMonitor) Record(serviceName string) ServiceHealthRecord {
	hm.mu.RLock()
	defer hm.mu.RUnlock()

	if record, exists := hm.records[serviceName]; exists {
		return *record
	}

	return ServiceHealthRecord{ServiceName: serviceName, Status: StatusUnknown}
}

// Records returns a copy of every health record
func (hm *HealthMonitor) Records() map[string]ServiceHealthRecord {
	hm.mu.RLock()
	defer hm.mu.RUnlock()

	records := make(map[string]ServiceHealthRecord, len(hm.records))
	for name, record := range hm.records {
		records[name] = *record
	}

	return records
}

// Start launches the scheduled check loop
func (hm *HealthMonitor) Start() {
	hm.mu.Lock()
	if hm.started {
		hm.mu.Unlock()
		return
	}
	hm.started = true
	hm.stopChan = make(chan struct{})
	hm.mu.Unlock()

	hm.wg.Add(1)

	go hm.loop()

	hm.logger.Info("Health monitor started", "interval", hm.config.Interval.String())
}

// Stop cancels the check loop; no further cycles fire after Stop returns
func (hm *HealthMonitor) Stop() {
	hm.mu.Lock()
	if !hm.started {
		hm.mu.Unlock()
		return
	}
	hm.started = false
	close(hm.stopChan)
	hm.mu.Unlock()

	hm.wg.Wait()
	hm.logger.Info("Health monitor stopped")
}

func (hm *HealthMonitor) loop() {
	defer hm.wg.Done()

	ticker := time.NewTicker(hm.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			hm.RunCycle(context.Background())
		case <-hm.stopChan:
			return
		}
	}
}

// RunCycle runs one check cycle immediately, independent of the timer. Every
// registered probe is invoked with a bounded timeout, records are updated,
// ServiceHealthChanged fires only for actual status transitions, and the
// cycle's worst observed status is returned and summarized in a
// HealthCheckCompleted event.
func (hm *HealthMonitor) RunCycle(ctx context.Context) HealthStatus {
	hm.mu.RLock()
	probes := make(map[string]Probe, len(hm.probes))
	for name, probe := range hm.probes {
		probes[name] = probe
	}
	hm.mu.RUnlock()

	worst := StatusHealthy

	for serviceName, probe := range probes {
		status := hm.checkService(ctx, serviceName, probe)
		if statusRank(status) > statusRank(worst) {
			worst = status
		}
	}

	hm.publish(events.HealthCheckCompleted{Status: string(worst)})

	return worst
}

// checkService runs one probe and applies the status policy: success resets
// the failure streak, one failure marks degraded, CriticalAfter consecutive
// failures mark critical.
func (hm *HealthMonitor) checkService(ctx context.Context, serviceName string, probe Probe) HealthStatus {
	probeCtx, cancel := context.WithTimeout(ctx, hm.config.ProbeTimeout)
	err := probe(probeCtx)
	cancel()

	hm.mu.Lock()

	record, exists := hm.records[serviceName]
	if !exists {
		// Unregistered between snapshot and evaluation
		hm.mu.Unlock()
		return StatusUnknown
	}

	oldStatus := record.Status
	record.LastCheckedAt = time.Now()

	if err == nil {
		record.ConsecutiveFailures = 0
		record.LastError = ""
		record.Status = StatusHealthy
	} else {
		record.ConsecutiveFailures++
		record.LastError = err.Error()

		if record.ConsecutiveFailures >= hm.config.CriticalAfter {
			record.Status = StatusCritical
		} else {
			record.Status = StatusDegraded
		}
	}

	newStatus := record.Status
	failures := record.ConsecutiveFailures
	hm.mu.Unlock()

	if newStatus != oldStatus {
		hm.logger.LogHealthTransition(serviceName, string(oldStatus), string(newStatus), failures)
		hm.publish(events.ServiceHealthChanged{
			ServiceName: serviceName,
			OldStatus:   string(oldStatus),
			NewStatus:   string(newStatus),
		})
	}

	return newStatus
}

func (hm *HealthMonitor) publish(event events.Event) {
	if hm.bus != nil {
		hm.bus.Publish(event)
	}
}
