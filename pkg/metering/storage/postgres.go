package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresBackendConfig configures the Postgres backend.
type PostgresBackendConfig struct {
	// DSN is a libpq connection string or URL.
	DSN string

	// MaxConns caps the pool size. Zero keeps the pgx default.
	MaxConns int32
}

// PostgresBackend implements Backend on a Postgres table using
// INSERT ... ON CONFLICT DO UPDATE ... RETURNING, which the database applies
// atomically per row.
type PostgresBackend struct {
	pool *pgxpool.Pool
}

// NewPostgresBackend opens a pool and ensures the aggregate table exists.
func NewPostgresBackend(ctx context.Context, cfg PostgresBackendConfig) (*PostgresBackend, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres dsn cannot be empty")
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	b := &PostgresBackend{pool: pool}
	if err := b.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return b, nil
}

// EnsureSchema creates the aggregate table if it does not exist.
func (p *PostgresBackend) EnsureSchema(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS metering_aggregates (
			key TEXT PRIMARY KEY,
			value BIGINT NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// IncrBy implements Backend.
func (p *PostgresBackend) IncrBy(ctx context.Context, key string, delta int64) (int64, error) {
	var value int64
	err := p.pool.QueryRow(ctx, `
		INSERT INTO metering_aggregates (key, value)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET
			value = metering_aggregates.value + EXCLUDED.value,
			updated_at = now()
		RETURNING value
	`, key, delta).Scan(&value)
	if err != nil {
		return 0, fmt.Errorf("failed to increment aggregate: %w", err)
	}
	return value, nil
}

// Get implements Backend.
func (p *PostgresBackend) Get(ctx context.Context, key string) (Value, error) {
	var value int64
	err := p.pool.QueryRow(ctx, `SELECT value FROM metering_aggregates WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return Value{}, nil
	}
	if err != nil {
		return Value{}, fmt.Errorf("failed to read aggregate: %w", err)
	}
	return Value{Amount: value, Present: true}, nil
}

// Close implements Backend.
func (p *PostgresBackend) Close() error {
	p.pool.Close()
	return nil
}
