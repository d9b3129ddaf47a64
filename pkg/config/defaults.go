package config

import "time"

// Default values for configuration fields.
const (
	// Metering defaults
	DefaultOperationTimeout = 2 * time.Second

	// Subscription defaults
	DefaultUserPolicyID      = "user_free"
	DefaultTemporaryPolicyID = "temp_free"
	DefaultPolicyCacheTTL    = time.Minute
	DefaultPolicyCacheSize   = 10000

	// Built-in free allowances, used only when no policies are configured.
	DefaultUserUsageAllowance        = 50_000_000 // 50 cents
	DefaultUserStorageAllowance      = 500 << 20  // 500 MiB
	DefaultTemporaryUsageAllowance   = 25_000_000 // 25 cents
	DefaultTemporaryStorageAllowance = 100 << 20  // 100 MiB

	// Storage defaults
	DefaultStorageBackend           = "memory"
	DefaultSQLitePath               = "data/metering.db"
	DefaultSQLiteBusyTimeout        = 5 * time.Second
	DefaultSQLiteCheckpointInterval = 5 * time.Minute
	DefaultRedisAddress             = "127.0.0.1:6379"
	DefaultRedisDialTimeout         = 5 * time.Second

	// Telemetry defaults
	DefaultLogLevel             = "info"
	DefaultLogFormat            = "json"
	DefaultMetricsPath          = "/metrics"
	DefaultMetricsListenAddress = "127.0.0.1:9090"
	DefaultMetricsNamespace     = "metering"
	DefaultTracingEndpoint      = "localhost:4317"
	DefaultTracingServiceName   = "metering"
	DefaultTracingSampler       = "ratio"
	DefaultTracingSampleRatio   = 0.1
	DefaultTracingTimeout       = 10 * time.Second
	DefaultHealthCheckTimeout   = 2 * time.Second
)

// DefaultStorageUsageTypes are the usage types counted as storage when
// none are configured.
var DefaultStorageUsageTypes = []string{"filesystem:storage:byte"}

// BuiltinPolicies returns the free policies installed when none are configured.
func BuiltinPolicies() []PolicyConfig {
	return []PolicyConfig{
		{
			ID:                      DefaultUserPolicyID,
			Kind:                    "free",
			MonthlyUsageAllowance:   DefaultUserUsageAllowance,
			MonthlyStorageAllowance: DefaultUserStorageAllowance,
		},
		{
			ID:                      DefaultTemporaryPolicyID,
			Kind:                    "temporary_free",
			MonthlyUsageAllowance:   DefaultTemporaryUsageAllowance,
			MonthlyStorageAllowance: DefaultTemporaryStorageAllowance,
		},
	}
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills zero-valued fields with their defaults.
func ApplyDefaults(cfg *Config) {
	// Metering defaults
	if cfg.Metering.OperationTimeout == 0 {
		cfg.Metering.OperationTimeout = DefaultOperationTimeout
	}
	if len(cfg.Metering.StorageUsageTypes) == 0 {
		cfg.Metering.StorageUsageTypes = append([]string(nil), DefaultStorageUsageTypes...)
	}

	// Subscription defaults
	if len(cfg.Subscriptions.Policies) == 0 {
		cfg.Subscriptions.Policies = BuiltinPolicies()
	}
	if cfg.Subscriptions.DefaultUserPolicy == "" {
		cfg.Subscriptions.DefaultUserPolicy = DefaultUserPolicyID
	}
	if cfg.Subscriptions.DefaultTemporaryPolicy == "" {
		cfg.Subscriptions.DefaultTemporaryPolicy = DefaultTemporaryPolicyID
	}
	if cfg.Subscriptions.Cache.TTL == 0 {
		cfg.Subscriptions.Cache.TTL = DefaultPolicyCacheTTL
	}
	if cfg.Subscriptions.Cache.MaxEntries == 0 {
		cfg.Subscriptions.Cache.MaxEntries = DefaultPolicyCacheSize
	}

	// Storage defaults
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = DefaultStorageBackend
	}
	if cfg.Storage.SQLite.Path == "" {
		cfg.Storage.SQLite.Path = DefaultSQLitePath
	}
	if cfg.Storage.SQLite.BusyTimeout == 0 {
		cfg.Storage.SQLite.BusyTimeout = DefaultSQLiteBusyTimeout
	}
	if cfg.Storage.SQLite.CheckpointInterval == 0 {
		cfg.Storage.SQLite.CheckpointInterval = DefaultSQLiteCheckpointInterval
	}
	if cfg.Storage.Redis.Address == "" {
		cfg.Storage.Redis.Address = DefaultRedisAddress
	}
	if cfg.Storage.Redis.DialTimeout == 0 {
		cfg.Storage.Redis.DialTimeout = DefaultRedisDialTimeout
	}

	// Telemetry defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLogLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLogFormat
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Telemetry.Metrics.ListenAddress == "" {
		cfg.Telemetry.Metrics.ListenAddress = DefaultMetricsListenAddress
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Telemetry.Tracing.Endpoint == "" {
		cfg.Telemetry.Tracing.Endpoint = DefaultTracingEndpoint
	}
	if cfg.Telemetry.Tracing.ServiceName == "" {
		cfg.Telemetry.Tracing.ServiceName = DefaultTracingServiceName
	}
	if cfg.Telemetry.Tracing.Sampler == "" {
		cfg.Telemetry.Tracing.Sampler = DefaultTracingSampler
	}
	if cfg.Telemetry.Tracing.SampleRatio == 0 {
		cfg.Telemetry.Tracing.SampleRatio = DefaultTracingSampleRatio
	}
	if cfg.Telemetry.Tracing.Timeout == 0 {
		cfg.Telemetry.Tracing.Timeout = DefaultTracingTimeout
	}
	if cfg.Telemetry.Health.CheckTimeout == 0 {
		cfg.Telemetry.Health.CheckTimeout = DefaultHealthCheckTimeout
	}
}
