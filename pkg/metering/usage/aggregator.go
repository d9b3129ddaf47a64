package usage

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"mercator-hq/metering/pkg/metering/actor"
	"mercator-hq/metering/pkg/metering/costs"
	"mercator-hq/metering/pkg/metering/period"
	"mercator-hq/metering/pkg/metering/storage"
)

// DefaultStorageUsageTypes are the usage types whose quantity counts
// toward total-storage.
var DefaultStorageUsageTypes = []string{"filesystem:storage:byte"}

// readConcurrency caps parallel reads when building a summary.
const readConcurrency = 8

// Aggregator applies usage events to period aggregates.
type Aggregator struct {
	store        storage.Backend
	normalizer   *costs.Normalizer
	clock        period.Clock
	storageTypes map[string]struct{}
	logger       *slog.Logger
	observer     Observer
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithClock sets the clock periods are derived from.
func WithClock(c period.Clock) Option {
	return func(a *Aggregator) {
		if c != nil {
			a.clock = c
		}
	}
}

// WithStorageUsageTypes replaces the set of storage usage types.
func WithStorageUsageTypes(types []string) Option {
	return func(a *Aggregator) {
		a.storageTypes = make(map[string]struct{}, len(types))
		for _, t := range types {
			a.storageTypes[t] = struct{}{}
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Aggregator) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithObserver sets the observer.
func WithObserver(o Observer) Option {
	return func(a *Aggregator) {
		if o != nil {
			a.observer = o
		}
	}
}

// NewAggregator creates an aggregator writing to store.
func NewAggregator(store storage.Backend, normalizer *costs.Normalizer, opts ...Option) *Aggregator {
	a := &Aggregator{
		store:      store,
		normalizer: normalizer,
		clock:      period.SystemClock{},
		logger:     slog.Default().With("component", "metering.usage"),
		observer:   nopObserver{},
	}
	WithStorageUsageTypes(DefaultStorageUsageTypes)(a)
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Clock returns the aggregator's clock.
func (a *Aggregator) Clock() period.Clock {
	return a.clock
}

// IsStorageType reports whether usage of usageType counts toward total-storage.
func (a *Aggregator) IsStorageType(usageType string) bool {
	_, ok := a.storageTypes[usageType]
	return ok
}

type increment struct {
	key   string
	delta int64
}

// Record applies ev to the current period's aggregates and returns the
// post-update totals.
//
// Invalid events fail with costs.ErrInvalidUsage before anything is written.
// A failed primary write fails with an error matching storage.ErrUnavailable
// and the event must be treated as not counted.
func (a *Aggregator) Record(ctx context.Context, ev Event) (Result, error) {
	if err := ev.Actor.Validate(); err != nil {
		return Result{}, fmt.Errorf("%w: %w", costs.ErrInvalidUsage, err)
	}
	appKey := ev.AppKey
	if appKey == "" {
		appKey = actor.GlobalKey
	}

	var (
		cost costs.Result
		err  error
	)
	if ev.CostOverride != nil {
		cost, err = a.normalizer.Override(ev.UsageType, ev.Quantity, *ev.CostOverride)
	} else {
		cost, err = a.normalizer.Normalize(ctx, ev.UsageType, ev.Quantity)
	}
	if err != nil {
		return Result{}, err
	}

	units, err := costs.CeilQuantity(ev.Quantity)
	if err != nil {
		return Result{}, err
	}

	label := period.Current(a.clock)
	res := Result{
		EventID:        uuid.New(),
		Period:         label,
		Cost:           cost,
		StorageTracked: a.IsStorageType(ev.UsageType),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		total, err := a.store.IncrBy(gctx, period.DeriveKey(ev.Actor.ID, period.DimensionCost, label), cost.MicroUnits)
		res.CostTotal = total
		return err
	})
	if res.StorageTracked {
		g.Go(func() error {
			total, err := a.store.IncrBy(gctx, period.DeriveKey(ev.Actor.ID, period.DimensionStorage, label), units)
			res.StorageTotal = total
			return err
		})
	}
	if err := g.Wait(); err != nil {
		a.logger.Error("failed to record usage",
			"actor", ev.Actor.String(),
			"usage_type", ev.UsageType,
			"error", err,
		)
		return Result{}, fmt.Errorf("record usage: %w", err)
	}

	a.applyAuxiliary(ctx, a.auxiliary(ev.Actor, appKey, ev.UsageType, label, units, cost.MicroUnits))
	a.observer.ObserveRecord(ev.UsageType, cost.MicroUnits)

	a.logger.Debug("usage recorded",
		"event_id", res.EventID.String(),
		"actor", ev.Actor.String(),
		"app", appKey,
		"usage_type", ev.UsageType,
		"cost", cost.MicroUnits,
		"unpriced", cost.Unpriced,
		"period", label,
	)
	return res, nil
}

func (a *Aggregator) auxiliary(who actor.Actor, appKey, usageType, label string, units, cost int64) []increment {
	incs := []increment{
		{period.DeriveKey(who.ID, period.UsageTypeDimension(usageType, period.FieldUnits), label), units},
		{period.DeriveKey(who.ID, period.UsageTypeDimension(usageType, period.FieldCost), label), cost},
		{period.DeriveKey(who.ID, period.UsageTypeDimension(usageType, period.FieldCount), label), 1},
		{period.DeriveKey(who.ID, period.AppDimension(appKey, period.FieldCost), label), cost},
		{period.DeriveKey(who.ID, period.AppDimension(appKey, period.FieldCount), label), 1},
		{period.DeriveScopedKey(period.ScopeApp, appKey, period.DimensionCost, label), cost},
		{period.DeriveScopedKey(period.ScopeApp, appKey, period.Dimension(period.FieldCount), label), 1},
	}
	if !who.IsGlobal() {
		incs = append(incs, increment{period.DeriveKey(actor.GlobalKey, period.DimensionCost, label), cost})
	}
	return incs
}

func (a *Aggregator) applyAuxiliary(ctx context.Context, incs []increment) {
	var g errgroup.Group
	for _, inc := range incs {
		g.Go(func() error {
			if _, err := a.store.IncrBy(ctx, inc.key, inc.delta); err != nil {
				a.logger.Warn("auxiliary aggregate not updated", "key", inc.key, "error", err)
				a.observer.ObserveAuxiliaryFailure()
			}
			return nil
		})
	}
	_ = g.Wait()
}

// RecordUsageObject records a provider usage object: one event per entry,
// with usage type prefix:kind. All quantities are validated before any is
// recorded. On a persistence failure the results recorded so far are
// returned with the error.
func (a *Aggregator) RecordUsageObject(ctx context.Context, who actor.Actor, appKey, prefix string, usage map[string]float64) ([]Result, error) {
	kinds := make([]string, 0, len(usage))
	for kind, q := range usage {
		if err := costs.ValidateQuantity(q); err != nil {
			return nil, fmt.Errorf("%s: %w", costs.Join(prefix, kind), err)
		}
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)

	results := make([]Result, 0, len(kinds))
	for _, kind := range kinds {
		res, err := a.Record(ctx, Event{
			Actor:     who,
			AppKey:    appKey,
			UsageType: costs.Join(prefix, kind),
			Quantity:  usage[kind],
		})
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

// Totals reads an actor's total-cost and total-storage for a period.
// Absent aggregates read as zero.
func (a *Aggregator) Totals(ctx context.Context, who actor.Actor, label string) (cost, stored int64, err error) {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := a.store.Get(gctx, period.DeriveKey(who.ID, period.DimensionCost, label))
		cost = v.Amount
		return err
	})
	g.Go(func() error {
		v, err := a.store.Get(gctx, period.DeriveKey(who.ID, period.DimensionStorage, label))
		stored = v.Amount
		return err
	})
	if err := g.Wait(); err != nil {
		return 0, 0, fmt.Errorf("read totals: %w", err)
	}
	return cost, stored, nil
}

// Summary reads the current period's aggregates for an actor. appKey may be
// empty to skip the per-app read. usageTypes lists the breakdowns to read.
func (a *Aggregator) Summary(ctx context.Context, who actor.Actor, appKey string, usageTypes []string) (Summary, error) {
	return a.SummaryFor(ctx, who, appKey, period.Current(a.clock), usageTypes)
}

// SummaryFor reads an actor's aggregates for the period with the given label.
func (a *Aggregator) SummaryFor(ctx context.Context, who actor.Actor, appKey, label string, usageTypes []string) (Summary, error) {
	if _, err := period.ParseLabel(label); err != nil {
		return Summary{}, fmt.Errorf("%w: %w", costs.ErrInvalidUsage, err)
	}

	s := Summary{Actor: who, Period: label, AppKey: appKey}

	var keys []string
	var targets []*int64
	read := func(key string, dst *int64) {
		keys = append(keys, key)
		targets = append(targets, dst)
	}

	read(period.DeriveKey(who.ID, period.DimensionCost, label), &s.Cost)
	read(period.DeriveKey(who.ID, period.DimensionStorage, label), &s.Storage)
	if appKey != "" {
		read(period.DeriveKey(who.ID, period.AppDimension(appKey, period.FieldCost), label), &s.AppCost)
		read(period.DeriveKey(who.ID, period.AppDimension(appKey, period.FieldCount), label), &s.AppCount)
	}
	types := make([]TypeUsage, len(usageTypes))
	for i, ut := range usageTypes {
		types[i].UsageType = ut
		read(period.DeriveKey(who.ID, period.UsageTypeDimension(ut, period.FieldUnits), label), &types[i].Units)
		read(period.DeriveKey(who.ID, period.UsageTypeDimension(ut, period.FieldCost), label), &types[i].Cost)
		read(period.DeriveKey(who.ID, period.UsageTypeDimension(ut, period.FieldCount), label), &types[i].Count)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(readConcurrency)
	for i := range keys {
		g.Go(func() error {
			v, err := a.store.Get(gctx, keys[i])
			if err != nil {
				return err
			}
			*targets[i] = v.Amount
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Summary{}, fmt.Errorf("read summary: %w", err)
	}

	for _, t := range types {
		if t.Count != 0 || t.Units != 0 || t.Cost != 0 {
			s.Types = append(s.Types, t)
		}
	}
	return s, nil
}
