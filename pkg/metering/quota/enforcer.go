package quota

import (
	"context"
	"fmt"
	"log/slog"

	"mercator-hq/metering/pkg/metering/actor"
	"mercator-hq/metering/pkg/metering/period"
	"mercator-hq/metering/pkg/metering/subscription"
)

// TotalsReader reads an actor's cost and storage totals for a period.
type TotalsReader interface {
	Totals(ctx context.Context, a actor.Actor, label string) (cost, stored int64, err error)
}

// Observer receives evaluation outcomes.
type Observer interface {
	ObserveEvaluation(outcome Outcome)
}

type nopObserver struct{}

func (nopObserver) ObserveEvaluation(Outcome) {}

// Enforcer evaluates actors against their policies.
type Enforcer struct {
	totals   TotalsReader
	resolver *subscription.Resolver
	clock    period.Clock
	logger   *slog.Logger
	observer Observer
}

// NewEnforcer creates an enforcer. A nil clock uses the system clock.
func NewEnforcer(totals TotalsReader, resolver *subscription.Resolver, clock period.Clock, logger *slog.Logger) *Enforcer {
	if clock == nil {
		clock = period.SystemClock{}
	}
	if logger == nil {
		logger = slog.Default().With("component", "metering.quota")
	}
	return &Enforcer{
		totals:   totals,
		resolver: resolver,
		clock:    clock,
		logger:   logger,
		observer: nopObserver{},
	}
}

// SetObserver sets the observer.
func (e *Enforcer) SetObserver(o Observer) {
	if o != nil {
		e.observer = o
	}
}

// Evaluate judges a against the current period.
func (e *Enforcer) Evaluate(ctx context.Context, a actor.Actor) (Decision, error) {
	return e.EvaluateAt(ctx, a, period.Current(e.clock))
}

// EvaluateAt judges a against the period with the given label.
// Evaluation has no side effects on aggregates. Invalid actors fail with
// actor.ErrInvalidActor before anything is read.
func (e *Enforcer) EvaluateAt(ctx context.Context, a actor.Actor, label string) (Decision, error) {
	if err := a.Validate(); err != nil {
		return Decision{}, fmt.Errorf("evaluate: %w", err)
	}
	if a.IsGlobal() {
		e.observer.ObserveEvaluation(OutcomeAllowed)
		return Decision{Actor: a, Period: label, Exempt: true}, nil
	}

	cost, stored, err := e.totals.Totals(ctx, a, label)
	if err != nil {
		e.logger.Error("quota evaluation failed",
			"actor", a.String(),
			"period", label,
			"error", err,
		)
		return Decision{}, fmt.Errorf("evaluate %s: %w", a, err)
	}

	res := e.resolver.Resolve(ctx, a)
	costExceeded, storageExceeded := Compare(cost, stored, res.Policy)

	d := Decision{
		Actor:           a,
		Period:          label,
		Policy:          res.Policy,
		Source:          res.Source,
		CostUsed:        cost,
		StorageUsed:     stored,
		CostExceeded:    costExceeded,
		StorageExceeded: storageExceeded,
	}
	for _, o := range d.Outcomes() {
		e.observer.ObserveEvaluation(o)
	}

	if !d.Allowed() {
		e.logger.Info("quota exceeded",
			"actor", a.String(),
			"policy", res.Policy.ID,
			"period", label,
			"cost", cost,
			"storage", stored,
			"reason", d.Reason(),
		)
	}
	return d, nil
}
