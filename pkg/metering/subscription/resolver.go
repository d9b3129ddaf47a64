package subscription

import (
	"context"
	"log/slog"

	"mercator-hq/metering/pkg/metering/actor"
)

// Source records how a resolution was reached.
type Source string

const (
	// SourceAssigned means the directory named a known policy.
	SourceAssigned Source = "assigned"

	// SourceDefault means the actor has no assignment.
	SourceDefault Source = "default"

	// SourceFallback means the directory failed or named an unknown policy.
	SourceFallback Source = "fallback"
)

// Resolution is the policy governing an actor.
type Resolution struct {
	Policy Policy
	Source Source
}

// FallbackObserver is notified when resolution falls back to a default.
type FallbackObserver interface {
	ObserveFallback(reason string)
}

// Resolver maps actors to policies.
type Resolver struct {
	catalog   *Catalog
	directory Directory
	logger    *slog.Logger
	observer  FallbackObserver
}

// NewResolver creates a resolver. A nil directory means no actor has an assignment.
func NewResolver(catalog *Catalog, directory Directory, logger *slog.Logger) *Resolver {
	if directory == nil {
		directory = StaticDirectory(nil)
	}
	if logger == nil {
		logger = slog.Default().With("component", "metering.subscription")
	}
	return &Resolver{catalog: catalog, directory: directory, logger: logger}
}

// SetObserver sets the observer for fallbacks.
func (r *Resolver) SetObserver(o FallbackObserver) {
	r.observer = o
}

// Catalog returns the catalog policies are resolved from.
func (r *Resolver) Catalog() *Catalog {
	return r.catalog
}

// Resolve returns the policy for a. It never fails: directory errors and
// unknown assigned ids fall back to the actor's default policy.
func (r *Resolver) Resolve(ctx context.Context, a actor.Actor) Resolution {
	id, ok, err := r.directory.AssignedPolicyID(ctx, a)
	if err != nil {
		r.fallback("directory_error", "policy directory unavailable, using default policy",
			"actor", a.String(), "error", err)
		return Resolution{Policy: r.catalog.Default(a), Source: SourceFallback}
	}
	if !ok {
		return Resolution{Policy: r.catalog.Default(a), Source: SourceDefault}
	}

	p, err := r.catalog.Get(id)
	if err != nil {
		r.fallback("unknown_policy", "assigned policy not in catalog, using default policy",
			"actor", a.String(), "policy_id", id)
		return Resolution{Policy: r.catalog.Default(a), Source: SourceFallback}
	}
	return Resolution{Policy: p, Source: SourceAssigned}
}

func (r *Resolver) fallback(reason, msg string, attrs ...any) {
	r.logger.Warn(msg, attrs...)
	if r.observer != nil {
		r.observer.ObserveFallback(reason)
	}
}
