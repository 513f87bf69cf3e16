package storage

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/docfoundry/docfoundry/pkg/config"
	"github.com/docfoundry/docfoundry/pkg/errors"
)

// RedisClient wraps the Redis client. Command failures surface as transient
// errors so the resilience layer retries them; missing keys surface as
// not-found and are never retried.
type RedisClient struct {
	client *redis.Client
	config *config.RedisConfig
}

// NewRedisClient creates a new Redis client and verifies connectivity
func NewRedisClient(cfg *config.RedisConfig) (*RedisClient, error) {
	if cfg == nil {
		return nil, errors.NewValidationError("Redis configuration is required")
	}

	opts := &redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,

		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,

		PoolTimeout:     4 * time.Second,
		ConnMaxIdleTime: 5 * time.Minute,

		// Client-level retries stay off; the resilience layer owns retry
		MaxRetries: 0,
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, errors.NewInternalError("failed to connect to Redis").WithCause(err)
	}

	return &RedisClient{
		client: client,
		config: cfg,
	}, nil
}

// Close closes the Redis connection
func (r *RedisClient) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// Health checks the Redis connection health
func (r *RedisClient) Health(ctx context.Context) error {
	if r.client == nil {
		return errors.NewInternalError("Redis client is nil")
	}

	if err := r.client.Ping(ctx).Err(); err != nil {
		return errors.NewProbeError("redis", err)
	}

	return nil
}

// Client returns the underlying Redis client
func (r *RedisClient) Client() *redis.Client {
	return r.client
}

// Stats returns Redis connection statistics
func (r *RedisClient) Stats() *redis.PoolStats {
	return r.client.PoolStats()
}

// Set sets a key-value pair with optional expiration
func (r *RedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if err := r.client.Set(ctx, key, value, expiration).Err(); err != nil {
		return errors.NewTransientError("failed to set Redis key").WithCause(err)
	}
	return nil
}

// Get gets a value by key
func (r *RedisClient) Get(ctx context.Context, key string) (string, error) {
	val, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return "", errors.NewNotFoundError("key")
		}
		return "", errors.NewTransientError("failed to get Redis key").WithCause(err)
	}
	return val, nil
}

// Del deletes keys
func (r *RedisClient) Del(ctx context.Context, keys ...string) (int64, error) {
	count, err := r.client.Del(ctx, keys...).Result()
	if err != nil {
		return 0, errors.NewTransientError("failed to delete keys").WithCause(err)
	}
	return count, nil
}

// Exists checks if keys exist
func (r *RedisClient) Exists(ctx context.Context, keys ...string) (int64, error) {
	count, err := r.client.Exists(ctx, keys...).Result()
	if err != nil {
		return 0, errors.NewTransientError("failed to check key existence").WithCause(err)
	}
	return count, nil
}

// Scan iterates keys matching the pattern, cursor-style
func (r *RedisClient) Scan(ctx context.Context, cursor uint64, pattern string, count int64) ([]string, uint64, error) {
	keys, next, err := r.client.Scan(ctx, cursor, pattern, count).Result()
	if err != nil {
		return nil, 0, errors.NewTransientError("failed to scan Redis keys").WithCause(err)
	}
	return keys, next, nil
}

// Expire sets a timeout on a key
func (r *RedisClient) Expire(ctx context.Context, key string, expiration time.Duration) error {
	if err := r.client.Expire(ctx, key, expiration).Err(); err != nil {
		return errors.NewTransientError("failed to set Redis key expiration").WithCause(err)
	}
	return nil
}

// TTL returns the time to live of a key
func (r *RedisClient) TTL(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := r.client.TTL(ctx, key).Result()
	if err != nil {
		return 0, errors.NewTransientError("failed to get Redis key TTL").WithCause(err)
	}
	return ttl, nil
}
