package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/docfoundry/docfoundry/internal/lessons"
	"github.com/docfoundry/docfoundry/internal/storage"
	"github.com/docfoundry/docfoundry/pkg/errors"
)

// scanBatchSize bounds each Redis SCAN page during a snapshot
const scanBatchSize = 500

// RedisSnapshotProvider dumps the cache keyspace to a timestamped JSON file.
// The snapshot is advisory: the cache is rebuildable, but warm-start data cuts
// upstream load after a restart.
type RedisSnapshotProvider struct {
	redis   *storage.RedisClient
	dir     string
	pattern string
}

// NewRedisSnapshotProvider creates a snapshot provider for keys matching the
// pattern
func NewRedisSnapshotProvider(redis *storage.RedisClient, dir, pattern string) *RedisSnapshotProvider {
	if pattern == "" {
		pattern = "*"
	}

	return &RedisSnapshotProvider{
		redis:   redis,
		dir:     dir,
		pattern: pattern,
	}
}

// SourceConfigID identifies the backed-up source
func (p *RedisSnapshotProvider) SourceConfigID() string {
	return "redis-snapshot"
}

// Run writes the snapshot file
func (p *RedisSnapshotProvider) Run(ctx context.Context) error {
	entries := make(map[string]string)

	var cursor uint64
	for {
		keys, next, err := p.redis.Scan(ctx, cursor, p.pattern, scanBatchSize)
		if err != nil {
			return err
		}

		for _, key := range keys {
			value, err := p.redis.Get(ctx, key)
			if err != nil {
				// Key expired between scan and read
				if errors.IsNotFound(err) {
					continue
				}
				return err
			}
			entries[key] = value
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	return writeSnapshot(p.dir, "redis", entries)
}

// LessonExportProvider exports the lesson store to a timestamped JSON file
type LessonExportProvider struct {
	store *lessons.Store
	dir   string
}

// NewLessonExportProvider creates a lesson export provider
func NewLessonExportProvider(store *lessons.Store, dir string) *LessonExportProvider {
	return &LessonExportProvider{
		store: store,
		dir:   dir,
	}
}

// SourceConfigID identifies the backed-up source
func (p *LessonExportProvider) SourceConfigID() string {
	return "lessons-export"
}

// Run writes the export file
func (p *LessonExportProvider) Run(ctx context.Context) error {
	all, err := p.store.All(ctx)
	if err != nil {
		return err
	}

	return writeSnapshot(p.dir, "lessons", all)
}

// writeSnapshot serializes payload into dir atomically: write to a temp file,
// then rename, so a crash mid-write never leaves a truncated snapshot behind.
func writeSnapshot(dir, source string, payload interface{}) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.NewInternalError("failed to create backup directory").WithCause(err)
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return errors.NewInternalError("failed to serialize snapshot").WithCause(err)
	}

	name := fmt.Sprintf("%s-%s.json", source, time.Now().UTC().Format("20060102T150405Z"))
	final := filepath.Join(dir, name)
	tmp := final + ".tmp"

	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return errors.NewInternalError("failed to write snapshot").WithCause(err)
	}

	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return errors.NewInternalError("failed to finalize snapshot").WithCause(err)
	}

	return nil
}
