package metering

import (
	"context"
	"fmt"

	"mercator-hq/metering/pkg/config"
	"mercator-hq/metering/pkg/metering/storage"
)

// OpenBackend opens the store selected by cfg.Backend.
func OpenBackend(ctx context.Context, cfg config.StorageConfig) (storage.Backend, error) {
	switch cfg.Backend {
	case "", "memory":
		return storage.NewMemoryBackend(), nil

	case "sqlite":
		backend, err := storage.NewSQLiteBackendWithConfig(storage.SQLiteBackendConfig{
			DBPath:             cfg.SQLite.Path,
			CheckpointInterval: cfg.SQLite.CheckpointInterval,
			BusyTimeout:        cfg.SQLite.BusyTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		return backend, nil

	case "redis":
		backend, err := storage.NewRedisBackend(ctx, storage.RedisBackendConfig{
			Addr:        cfg.Redis.Address,
			Username:    cfg.Redis.Username,
			Password:    cfg.Redis.Password,
			DB:          cfg.Redis.DB,
			KeyPrefix:   cfg.Redis.KeyPrefix,
			DialTimeout: cfg.Redis.DialTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open redis store: %w", err)
		}
		return backend, nil

	case "postgres":
		backend, err := storage.NewPostgresBackend(ctx, storage.PostgresBackendConfig{
			DSN:      cfg.Postgres.DSN,
			MaxConns: cfg.Postgres.MaxConns,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres store: %w", err)
		}
		return backend, nil

	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.Backend)
	}
}
