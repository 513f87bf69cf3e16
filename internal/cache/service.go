package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/docfoundry/docfoundry/internal/storage"
	"github.com/docfoundry/docfoundry/pkg/errors"
	"github.com/docfoundry/docfoundry/pkg/metrics"
)

// Service provides caching for frequently accessed documentation data
type Service struct {
	redis   *storage.RedisClient
	config  *Config
	metrics *metrics.Metrics
}

// Config holds cache configuration
type Config struct {
	DefaultTTL time.Duration `json:"default_ttl"`
	DocTTL     time.Duration `json:"doc_ttl"`
	SearchTTL  time.Duration `json:"search_ttl"`
	LessonTTL  time.Duration `json:"lesson_ttl"`
}

// DefaultConfig returns default cache configuration
func DefaultConfig() *Config {
	return &Config{
		DefaultTTL: 1 * time.Hour,
		DocTTL:     6 * time.Hour,
		SearchTTL:  15 * time.Minute,
		LessonTTL:  24 * time.Hour,
	}
}

// NewService creates a new cache service
func NewService(redis *storage.RedisClient, config *Config, m *metrics.Metrics) *Service {
	if config == nil {
		config = DefaultConfig()
	}

	return &Service{
		redis:   redis,
		config:  config,
		metrics: m,
	}
}

// CacheKey generates cache keys with consistent prefixes
type CacheKey struct {
	Prefix string
	ID     string
}

// String returns the formatted cache key
func (ck CacheKey) String() string {
	return fmt.Sprintf("%s:%s", ck.Prefix, ck.ID)
}

// Cache key prefixes
const (
	PrefixDoc        = "doc"
	PrefixSearch     = "search"
	PrefixLesson     = "lesson"
	PrefixStatistics = "statistics"
)

// DocKey returns the cache key for a document
func DocKey(id string) CacheKey {
	return CacheKey{Prefix: PrefixDoc, ID: id}
}

// SearchKey returns the cache key for a search query
func SearchKey(query string) CacheKey {
	return CacheKey{Prefix: PrefixSearch, ID: query}
}

// TTLFor returns the configured TTL for a key prefix
func (s *Service) TTLFor(prefix string) time.Duration {
	switch prefix {
	case PrefixDoc:
		return s.config.DocTTL
	case PrefixSearch:
		return s.config.SearchTTL
	case PrefixLesson:
		return s.config.LessonTTL
	default:
		return s.config.DefaultTTL
	}
}

// Set stores a value in cache with the specified TTL
func (s *Service) Set(ctx context.Context, key CacheKey, value interface{}, ttl time.Duration) error {
	start := time.Now()

	data, err := json.Marshal(value)
	if err != nil {
		return errors.NewInternalError("failed to serialize cache value").WithCause(err)
	}

	if ttl == 0 {
		ttl = s.TTLFor(key.Prefix)
	}

	err = s.redis.Set(ctx, key.String(), data, ttl)
	s.recordOperation("set", key.Prefix, time.Since(start), false)

	if err != nil {
		return err
	}

	return nil
}

// Get retrieves a value from cache into dest
func (s *Service) Get(ctx context.Context, key CacheKey, dest interface{}) error {
	start := time.Now()

	data, err := s.redis.Get(ctx, key.String())
	if err != nil {
		s.recordOperation("get", key.Prefix, time.Since(start), false)
		if errors.IsNotFound(err) {
			return errors.NewNotFoundError("cache key")
		}
		return err
	}

	s.recordOperation("get", key.Prefix, time.Since(start), true)

	if err := json.Unmarshal([]byte(data), dest); err != nil {
		return errors.NewInternalError("failed to deserialize cache value").WithCause(err)
	}

	return nil
}

// Delete removes a value from cache
func (s *Service) Delete(ctx context.Context, key CacheKey) error {
	start := time.Now()

	_, err := s.redis.Del(ctx, key.String())
	s.recordOperation("delete", key.Prefix, time.Since(start), false)

	return err
}

// Exists checks if a key exists in cache
func (s *Service) Exists(ctx context.Context, key CacheKey) (bool, error) {
	count, err := s.redis.Exists(ctx, key.String())
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetOrSet returns the cached value, or computes and caches it on a miss
func (s *Service) GetOrSet(ctx context.Context, key CacheKey, dest interface{}, ttl time.Duration, compute func(ctx context.Context) (interface{}, error)) error {
	err := s.Get(ctx, key, dest)
	if err == nil {
		return nil
	}
	if !errors.IsNotFound(err) {
		return err
	}

	value, err := compute(ctx)
	if err != nil {
		return err
	}

	if err := s.Set(ctx, key, value, ttl); err != nil {
		return err
	}

	// Round-trip through serialization so dest sees exactly what a later
	// cache hit would see
	data, err := json.Marshal(value)
	if err != nil {
		return errors.NewInternalError("failed to serialize computed value").WithCause(err)
	}

	return json.Unmarshal(data, dest)
}

func (s *Service) recordOperation(operation, cacheType string, duration time.Duration, hit bool) {
	if s.metrics != nil {
		s.metrics.RecordCacheOperation(operation, cacheType, duration, hit)
	}
}
