package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBackendConfig configures the Redis backend.
type RedisBackendConfig struct {
	Addr     string
	Username string
	Password string
	DB       int

	// KeyPrefix is prepended to every aggregate key.
	KeyPrefix string

	// DialTimeout bounds connection setup.
	// Default: 5 seconds
	DialTimeout time.Duration
}

// RedisBackend implements Backend with Redis INCRBY and GET, which are
// atomic on the server and shared by every process using the same instance.
type RedisBackend struct {
	client redis.UniversalClient
	prefix string
	owned  bool
}

// NewRedisBackend connects to Redis and verifies the connection.
func NewRedisBackend(ctx context.Context, cfg RedisBackendConfig) (*RedisBackend, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis address cannot be empty")
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 5 * time.Second
	}

	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Username:    cfg.Username,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}

	return &RedisBackend{client: client, prefix: cfg.KeyPrefix, owned: true}, nil
}

// NewRedisBackendFromClient uses an existing client. Close does not close it.
func NewRedisBackendFromClient(client redis.UniversalClient, keyPrefix string) *RedisBackend {
	return &RedisBackend{client: client, prefix: keyPrefix}
}

// IncrBy implements Backend.
func (r *RedisBackend) IncrBy(ctx context.Context, key string, delta int64) (int64, error) {
	v, err := r.client.IncrBy(ctx, r.prefix+key, delta).Result()
	if err != nil {
		return 0, fmt.Errorf("redis incrby: %w", err)
	}
	return v, nil
}

// Get implements Backend.
func (r *RedisBackend) Get(ctx context.Context, key string) (Value, error) {
	v, err := r.client.Get(ctx, r.prefix+key).Int64()
	if errors.Is(err, redis.Nil) {
		return Value{}, nil
	}
	if err != nil {
		return Value{}, fmt.Errorf("redis get: %w", err)
	}
	return Value{Amount: v, Present: true}, nil
}

// Close implements Backend.
func (r *RedisBackend) Close() error {
	if !r.owned {
		return nil
	}
	return r.client.Close()
}
