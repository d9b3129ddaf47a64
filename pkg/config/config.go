package config

import "time"

// Config is the root configuration structure.
type Config struct {
	// Metering contains engine-wide settings.
	Metering MeteringConfig `yaml:"metering"`

	// Pricing contains the static cost maps registered at startup.
	Pricing PricingConfig `yaml:"pricing"`

	// Subscriptions contains the policy catalog and static assignments.
	Subscriptions SubscriptionsConfig `yaml:"subscriptions"`

	// Storage selects and configures the aggregate store.
	Storage StorageConfig `yaml:"storage"`

	// Telemetry contains logging, metrics, tracing and health configuration.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// MeteringConfig contains engine-wide settings.
type MeteringConfig struct {
	// OperationTimeout bounds every store operation.
	// Default: 2s
	OperationTimeout time.Duration `yaml:"operation_timeout"`

	// StorageUsageTypes lists the usage types whose quantity (bytes)
	// counts toward total-storage.
	// Default: ["filesystem:storage:byte"]
	StorageUsageTypes []string `yaml:"storage_usage_types"`

	// PriceRefreshSchedule is a standard cron expression for refreshing
	// cached dynamic prices. Empty disables scheduled refresh.
	PriceRefreshSchedule string `yaml:"price_refresh_schedule"`
}

// PricingConfig contains static prices.
type PricingConfig struct {
	// Providers maps provider id to usage type to cost per unit in
	// micro-units. Fractional costs are allowed.
	Providers map[string]map[string]float64 `yaml:"providers"`
}

// SubscriptionsConfig contains the policy catalog.
type SubscriptionsConfig struct {
	// Policies is the catalog. Empty installs the built-in free policies.
	Policies []PolicyConfig `yaml:"policies"`

	// DefaultUserPolicy is the policy id for registered users without an assignment.
	// Default: "user_free"
	DefaultUserPolicy string `yaml:"default_user_policy"`

	// DefaultTemporaryPolicy is the policy id for temporary sessions without an assignment.
	// Default: "temp_free"
	DefaultTemporaryPolicy string `yaml:"default_temporary_policy"`

	// Assignments maps actor id to policy id.
	Assignments map[string]string `yaml:"assignments"`

	// Cache configures caching of directory lookups.
	Cache PolicyCacheConfig `yaml:"cache"`
}

// PolicyConfig is one policy in the catalog.
type PolicyConfig struct {
	ID string `yaml:"id"`

	// Kind is one of "free", "temporary_free", "paid".
	Kind string `yaml:"kind"`

	// MonthlyUsageAllowance is in micro-units.
	MonthlyUsageAllowance int64 `yaml:"monthly_usage_allowance"`

	// MonthlyStorageAllowance is in bytes.
	MonthlyStorageAllowance int64 `yaml:"monthly_storage_allowance"`
}

// PolicyCacheConfig configures the directory cache.
type PolicyCacheConfig struct {
	// Enabled interposes a cache in front of the directory.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// TTL is how long an answer is served from the cache.
	// Default: 1m
	TTL time.Duration `yaml:"ttl"`

	// MaxEntries caps the number of cached answers.
	// Default: 10000
	MaxEntries int64 `yaml:"max_entries"`
}

// StorageConfig selects the aggregate store.
type StorageConfig struct {
	// Backend is one of "memory", "sqlite", "redis", "postgres".
	// Default: "memory"
	Backend string `yaml:"backend"`

	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Redis    RedisConfig    `yaml:"redis"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// SQLiteConfig configures the SQLite store.
type SQLiteConfig struct {
	// Path is the database file.
	// Default: "data/metering.db"
	Path string `yaml:"path"`

	// BusyTimeout is how long to wait for locks.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`

	// CheckpointInterval is how often the WAL is checkpointed.
	// Default: 5m
	CheckpointInterval time.Duration `yaml:"checkpoint_interval"`
}

// RedisConfig configures the Redis store.
type RedisConfig struct {
	// Address is host:port.
	// Default: "127.0.0.1:6379"
	Address  string `yaml:"address"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`

	// KeyPrefix is prepended to every aggregate key.
	KeyPrefix string `yaml:"key_prefix"`

	// DialTimeout bounds connection setup.
	// Default: 5s
	DialTimeout time.Duration `yaml:"dial_timeout"`
}

// PostgresConfig configures the Postgres store.
type PostgresConfig struct {
	// DSN is a connection URL or libpq string.
	DSN string `yaml:"dsn"`

	// MaxConns caps the pool. Zero keeps the driver default.
	MaxConns int32 `yaml:"max_conns"`
}

// TelemetryConfig contains configuration for observability.
type TelemetryConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
	Health  HealthConfig  `yaml:"health"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format controls the log output format.
	// Options: "json", "text"
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	AddSource bool `yaml:"add_source"`
}

// MetricsConfig contains metrics exposition configuration.
type MetricsConfig struct {
	// Enabled serves the Prometheus endpoint from the run command.
	Enabled bool `yaml:"enabled"`

	// Path is the HTTP path of the endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// ListenAddress is the address the endpoint listens on.
	// Default: "127.0.0.1:9090"
	ListenAddress string `yaml:"listen_address"`

	// Namespace is the metric name prefix.
	// Default: "metering"
	Namespace string `yaml:"namespace"`
}

// TracingConfig contains OpenTelemetry tracing configuration.
type TracingConfig struct {
	// Enabled exports spans for record and evaluate operations.
	Enabled bool `yaml:"enabled"`

	// Endpoint is the OTLP gRPC collector address.
	// Default: "localhost:4317"
	Endpoint string `yaml:"endpoint"`

	// ServiceName is reported as the service.name resource attribute.
	// Default: "metering"
	ServiceName string `yaml:"service_name"`

	// Sampler selects the sampling strategy.
	// Options: "always", "never", "ratio"
	// Default: "ratio"
	Sampler string `yaml:"sampler"`

	// SampleRatio is the fraction of traces sampled by the ratio sampler.
	// Default: 0.1
	SampleRatio float64 `yaml:"sample_ratio"`

	// Insecure disables TLS towards the collector.
	Insecure bool `yaml:"insecure"`

	// Timeout bounds each export.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`
}

// HealthConfig contains health endpoint configuration.
type HealthConfig struct {
	// Enabled serves /health/live and /health/ready next to the metrics endpoint.
	Enabled bool `yaml:"enabled"`

	// CheckTimeout bounds each readiness check.
	// Default: 2s
	CheckTimeout time.Duration `yaml:"check_timeout"`
}
