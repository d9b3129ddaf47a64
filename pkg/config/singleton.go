package config

import (
	"maps"
	"slices"
	"sync"
)

var (
	current   *Config
	currentMu sync.RWMutex
)

// Load reads the configuration at path with environment overrides and
// installs it as the current configuration. An empty path loads the
// defaults. On error the current configuration is left unchanged.
func Load(path string) (*Config, error) {
	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		return nil, err
	}
	Swap(cfg)
	return cfg, nil
}

// Current returns the installed configuration, or nil before Load.
func Current() *Config {
	currentMu.RLock()
	defer currentMu.RUnlock()
	return current
}

// Swap installs cfg and returns the configuration it replaced.
func Swap(cfg *Config) *Config {
	currentMu.Lock()
	defer currentMu.Unlock()
	prev := current
	current = cfg
	return prev
}

// RestartRequired lists the sections whose changes between prev and next
// only take effect after a restart. Pricing is the only section a running
// engine reloads.
func RestartRequired(prev, next *Config) []string {
	if prev == nil || next == nil {
		return nil
	}
	var sections []string
	if prev.Storage != next.Storage {
		sections = append(sections, "storage")
	}
	if prev.Metering.OperationTimeout != next.Metering.OperationTimeout ||
		prev.Metering.PriceRefreshSchedule != next.Metering.PriceRefreshSchedule ||
		!slices.Equal(prev.Metering.StorageUsageTypes, next.Metering.StorageUsageTypes) {
		sections = append(sections, "metering")
	}
	ps, ns := prev.Subscriptions, next.Subscriptions
	if ps.DefaultUserPolicy != ns.DefaultUserPolicy ||
		ps.DefaultTemporaryPolicy != ns.DefaultTemporaryPolicy ||
		ps.Cache != ns.Cache ||
		!slices.Equal(ps.Policies, ns.Policies) ||
		!maps.Equal(ps.Assignments, ns.Assignments) {
		sections = append(sections, "subscriptions")
	}
	if prev.Telemetry.Metrics != next.Telemetry.Metrics ||
		prev.Telemetry.Tracing != next.Telemetry.Tracing ||
		prev.Telemetry.Health != next.Telemetry.Health {
		sections = append(sections, "telemetry")
	}
	return sections
}
