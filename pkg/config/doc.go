// Package config provides configuration management for the metering engine.
//
// Configuration is loaded from a YAML file, completed with defaults,
// overridden from the environment and validated:
//
//	cfg, err := config.LoadConfigWithEnvOverrides("metering.yaml")
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention METERING_SECTION_FIELD:
//
//   - METERING_STORAGE_BACKEND overrides storage.backend
//   - METERING_STORAGE_REDIS_ADDRESS overrides storage.redis.address
//   - METERING_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// Environment variables always take precedence over file-based configuration.
//
// # Policies
//
// Subscription policy allowances are configuration. When the file defines
// no policies, the built-in user_free and temp_free policies from
// defaults.go are installed; once any policy is configured, only the
// configured policies exist.
//
// # Singleton Pattern
//
// Load installs the process-wide configuration and Current returns it. Swap
// replaces it with a reloaded configuration and hands back the previous one,
// so RestartRequired can report changes a running engine does not pick up.
// Prefer passing a *Config explicitly in tests.
//
// # Hot Reload
//
// Watcher observes the configuration file with fsnotify and invokes a
// callback with the freshly loaded configuration after a debounce interval.
// Invalid files are logged and ignored; the previous configuration stays in
// effect.
package config
