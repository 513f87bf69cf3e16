package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/docfoundry/docfoundry/pkg/errors"
	"github.com/docfoundry/docfoundry/pkg/events"
	"github.com/docfoundry/docfoundry/pkg/logging"
)

// Backup outcomes
const (
	BackupOutcomeSuccess = "success"
	BackupOutcomeFailed  = "failed"
)

// BackupProvider produces one backup of a configured source
type BackupProvider interface {
	// SourceConfigID identifies the backed-up source
	SourceConfigID() string
	// Run performs the backup
	Run(ctx context.Context) error
}

// BackupRecord describes one backup run. Records are emitted, not stored.
type BackupRecord struct {
	ID             string    `json:"id"`
	Timestamp      time.Time `json:"timestamp"`
	SourceConfigID string    `json:"source_config_id"`
	Outcome        string    `json:"outcome"`
}

// BackupScheduler invokes registered backup providers on a fixed interval or
// on demand. Provider failures are caught and reported via events; they never
// propagate to or halt the coordinator.
type BackupScheduler struct {
	interval time.Duration

	mu        sync.RWMutex
	providers []BackupProvider

	stopChan chan struct{}
	wg       sync.WaitGroup
	started  bool

	bus    *events.Bus
	logger *logging.Logger
}

// NewBackupScheduler creates a backup scheduler
func NewBackupScheduler(interval time.Duration, bus *events.Bus) *BackupScheduler {
	if interval <= 0 {
		interval = 24 * time.Hour
	}

	return &BackupScheduler{
		interval: interval,
		bus:      bus,
		logger:   logging.GetLogger(),
	}
}

// Register adds a backup provider
func (bs *BackupScheduler) Register(provider BackupProvider) {
	if provider == nil {
		bs.logger.Warn("Attempted to register a nil backup provider")
		return
	}

	bs.mu.Lock()
	defer bs.mu.Unlock()

	bs.providers = append(bs.providers, provider)
	bs.logger.Info("Registered backup provider", "source_config_id", provider.SourceConfigID())
}

// Start launches the scheduled backup loop
func (bs *BackupScheduler) Start() {
	bs.mu.Lock()
	if bs.started {
		bs.mu.Unlock()
		return
	}
	bs.started = true
	bs.stopChan = make(chan struct{})
	bs.mu.Unlock()

	bs.wg.Add(1)

	go bs.loop()

	bs.logger.Info("Backup scheduler started", "interval", bs.interval.String())
}

// Stop cancels the backup loop; no further cycles fire after Stop returns
func (bs *BackupScheduler) Stop() {
	bs.mu.Lock()
	if !bs.started {
		bs.mu.Unlock()
		return
	}
	bs.started = false
	close(bs.stopChan)
	bs.mu.Unlock()

	bs.wg.Wait()
	bs.logger.Info("Backup scheduler stopped")
}

func (bs *BackupScheduler) loop() {
	defer bs.wg.Done()

	ticker := time.NewTicker(bs.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			bs.RunCycle(context.Background())
		case <-bs.stopChan:
			return
		}
	}
}

// RunCycle invokes every registered provider once and returns the records for
// this cycle.
func (bs *BackupScheduler) RunCycle(ctx context.Context) []BackupRecord {
	bs.mu.RLock()
	providers := make([]BackupProvider, len(bs.providers))
	copy(providers, bs.providers)
	bs.mu.RUnlock()

	records := make([]BackupRecord, 0, len(providers))

	for _, provider := range providers {
		records = append(records, bs.runProvider(ctx, provider))
	}

	return records
}

func (bs *BackupScheduler) runProvider(ctx context.Context, provider BackupProvider) BackupRecord {
	record := BackupRecord{
		ID:             uuid.New().String(),
		Timestamp:      time.Now(),
		SourceConfigID: provider.SourceConfigID(),
	}

	start := time.Now()
	err := bs.safeRun(ctx, provider)

	if err != nil {
		record.Outcome = BackupOutcomeFailed

		backupErr := errors.NewBackupError(provider.SourceConfigID(), err)
		bs.logger.WithError(backupErr).Warn("Backup provider failed")
		bs.publish(events.BackupFailed{SourceConfigID: provider.SourceConfigID(), Err: backupErr})
	} else {
		record.Outcome = BackupOutcomeSuccess
		bs.publish(events.BackupCompleted{BackupID: record.ID})
	}

	bs.logger.LogBackupEvent(record.ID, record.SourceConfigID, record.Outcome, time.Since(start))

	return record
}

func (bs *BackupScheduler) publish(event events.Event) {
	if bs.bus != nil {
		bs.bus.Publish(event)
	}
}

// safeRun shields the scheduler from panicking providers
func (bs *BackupScheduler) safeRun(ctx context.Context, provider BackupProvider) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.NewInternalError("backup provider panicked").
				WithDetail("source_config_id", provider.SourceConfigID()).
				WithDetail("panic", toString(r))
		}
	}()

	return provider.Run(ctx)
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	if err, ok := v.(error); ok {
		return err.Error()
	}
	return "unknown panic"
}
