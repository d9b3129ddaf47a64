package config

import (
	"fmt"
	"math"
	"strings"

	"github.com/robfig/cron/v3"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "storage.backend").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
type ValidationError struct {
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. All validation errors are collected and
// returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateMetering(&cfg.Metering)...)
	errs = append(errs, validatePricing(&cfg.Pricing)...)
	errs = append(errs, validateSubscriptions(&cfg.Subscriptions)...)
	errs = append(errs, validateStorage(&cfg.Storage)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateMetering(cfg *MeteringConfig) []FieldError {
	var errs []FieldError

	if cfg.OperationTimeout <= 0 {
		errs = append(errs, FieldError{
			Field:   "metering.operation_timeout",
			Message: "must be positive",
		})
	}
	for i, t := range cfg.StorageUsageTypes {
		if t == "" {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("metering.storage_usage_types[%d]", i),
				Message: "must not be empty",
			})
		}
	}
	if cfg.PriceRefreshSchedule != "" {
		if _, err := cron.ParseStandard(cfg.PriceRefreshSchedule); err != nil {
			errs = append(errs, FieldError{
				Field:   "metering.price_refresh_schedule",
				Message: fmt.Sprintf("invalid cron expression: %v", err),
			})
		}
	}
	return errs
}

func validatePricing(cfg *PricingConfig) []FieldError {
	var errs []FieldError

	for provider, costs := range cfg.Providers {
		if provider == "" {
			errs = append(errs, FieldError{Field: "pricing.providers", Message: "provider id must not be empty"})
		}
		for usageType, cost := range costs {
			field := fmt.Sprintf("pricing.providers.%s.%s", provider, usageType)
			if strings.Count(usageType, ":") < 2 {
				errs = append(errs, FieldError{
					Field:   field,
					Message: "usage type must have the form provider:model:unit",
				})
			}
			if math.IsNaN(cost) || math.IsInf(cost, 0) || cost < 0 {
				errs = append(errs, FieldError{
					Field:   field,
					Message: "cost per unit must be a non-negative number",
				})
			}
		}
	}
	return errs
}

var validPolicyKinds = map[string]bool{
	"free":           true,
	"temporary_free": true,
	"paid":           true,
}

func validateSubscriptions(cfg *SubscriptionsConfig) []FieldError {
	var errs []FieldError

	ids := make(map[string]bool, len(cfg.Policies))
	for i, p := range cfg.Policies {
		field := fmt.Sprintf("subscriptions.policies[%d]", i)
		if p.ID == "" {
			errs = append(errs, FieldError{Field: field + ".id", Message: "must not be empty"})
		} else if ids[p.ID] {
			errs = append(errs, FieldError{Field: field + ".id", Message: fmt.Sprintf("duplicate policy id %q", p.ID)})
		}
		ids[p.ID] = true

		if !validPolicyKinds[p.Kind] {
			errs = append(errs, FieldError{
				Field:   field + ".kind",
				Message: fmt.Sprintf("must be one of free, temporary_free, paid, got %q", p.Kind),
			})
		}
		if p.MonthlyUsageAllowance < 0 {
			errs = append(errs, FieldError{Field: field + ".monthly_usage_allowance", Message: "must not be negative"})
		}
		if p.MonthlyStorageAllowance < 0 {
			errs = append(errs, FieldError{Field: field + ".monthly_storage_allowance", Message: "must not be negative"})
		}
	}

	if !ids[cfg.DefaultUserPolicy] {
		errs = append(errs, FieldError{
			Field:   "subscriptions.default_user_policy",
			Message: fmt.Sprintf("policy %q is not defined", cfg.DefaultUserPolicy),
		})
	}
	if !ids[cfg.DefaultTemporaryPolicy] {
		errs = append(errs, FieldError{
			Field:   "subscriptions.default_temporary_policy",
			Message: fmt.Sprintf("policy %q is not defined", cfg.DefaultTemporaryPolicy),
		})
	}
	for actorID, policyID := range cfg.Assignments {
		if !ids[policyID] {
			errs = append(errs, FieldError{
				Field:   "subscriptions.assignments." + actorID,
				Message: fmt.Sprintf("policy %q is not defined", policyID),
			})
		}
	}

	if cfg.Cache.TTL < 0 {
		errs = append(errs, FieldError{Field: "subscriptions.cache.ttl", Message: "must not be negative"})
	}
	if cfg.Cache.MaxEntries < 0 {
		errs = append(errs, FieldError{Field: "subscriptions.cache.max_entries", Message: "must not be negative"})
	}
	return errs
}

func validateStorage(cfg *StorageConfig) []FieldError {
	var errs []FieldError

	switch cfg.Backend {
	case "memory":
	case "sqlite":
		if cfg.SQLite.Path == "" {
			errs = append(errs, FieldError{Field: "storage.sqlite.path", Message: "required for sqlite backend"})
		}
	case "redis":
		if cfg.Redis.Address == "" {
			errs = append(errs, FieldError{Field: "storage.redis.address", Message: "required for redis backend"})
		}
		if cfg.Redis.DB < 0 {
			errs = append(errs, FieldError{Field: "storage.redis.db", Message: "must not be negative"})
		}
	case "postgres":
		if cfg.Postgres.DSN == "" {
			errs = append(errs, FieldError{Field: "storage.postgres.dsn", Message: "required for postgres backend"})
		}
		if cfg.Postgres.MaxConns < 0 {
			errs = append(errs, FieldError{Field: "storage.postgres.max_conns", Message: "must not be negative"})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "storage.backend",
			Message: fmt.Sprintf("must be one of memory, sqlite, redis, postgres, got %q", cfg.Backend),
		})
	}
	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("must be one of debug, info, warn, error, got %q", cfg.Logging.Level),
		})
	}
	switch cfg.Logging.Format {
	case "json", "text":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("must be json or text, got %q", cfg.Logging.Format),
		})
	}
	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, FieldError{Field: "telemetry.metrics.path", Message: "must start with /"})
	}
	if cfg.Tracing.Enabled {
		switch cfg.Tracing.Sampler {
		case "always", "never", "ratio":
		default:
			errs = append(errs, FieldError{
				Field:   "telemetry.tracing.sampler",
				Message: fmt.Sprintf("must be one of always, never, ratio, got %q", cfg.Tracing.Sampler),
			})
		}
		if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1 {
			errs = append(errs, FieldError{Field: "telemetry.tracing.sample_ratio", Message: "must be between 0 and 1"})
		}
		if cfg.Tracing.Endpoint == "" {
			errs = append(errs, FieldError{Field: "telemetry.tracing.endpoint", Message: "required when tracing is enabled"})
		}
	}
	if cfg.Health.CheckTimeout < 0 {
		errs = append(errs, FieldError{Field: "telemetry.health.check_timeout", Message: "must not be negative"})
	}
	return errs
}
