package metering

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"

	"mercator-hq/metering/pkg/config"
	"mercator-hq/metering/pkg/metering/actor"
	"mercator-hq/metering/pkg/metering/costs"
	"mercator-hq/metering/pkg/metering/metrics"
	"mercator-hq/metering/pkg/metering/period"
	"mercator-hq/metering/pkg/metering/quota"
	"mercator-hq/metering/pkg/metering/storage"
	"mercator-hq/metering/pkg/metering/subscription"
	"mercator-hq/metering/pkg/metering/usage"
	"mercator-hq/metering/pkg/telemetry/tracing"
)

// pingKey is read by Ping. It is never written.
var pingKey = period.DeriveKey(actor.GlobalKey, "ping", "0000-00")

// Options configures an Engine.
type Options struct {
	// Config supplies pricing, policies, storage and timeouts. Nil uses
	// config.Default().
	Config *config.Config

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Registerer receives the engine's collectors. Nil registers them on a
	// private registry.
	Registerer prometheus.Registerer

	// Store overrides the configured backend. The engine does not close a
	// store it was given.
	Store storage.Backend

	// Directory supplies assigned policies. Nil serves the configured
	// static assignments.
	Directory subscription.Directory

	// Clock defaults to the system clock.
	Clock period.Clock

	// Tracer defaults to a noop tracer.
	Tracer *tracing.Tracer
}

// Engine meters usage and enforces quotas.
type Engine struct {
	cfg    *config.Config
	logger *slog.Logger
	clock  period.Clock
	tracer *tracing.Tracer

	store      storage.Backend
	ownsStore  bool
	registry   *costs.Registry
	normalizer *costs.Normalizer
	refresher  *costs.Refresher
	aggregator *usage.Aggregator
	resolver   *subscription.Resolver
	enforcer   *quota.Enforcer
	cache      *subscription.CachedDirectory
	metrics    *metrics.Metrics

	// providers holds cost maps registered in code. They survive pricing
	// reloads, which only replace the configured maps.
	mu        sync.Mutex
	providers map[string]costs.CostMap

	closeOnce sync.Once
}

// New wires an engine from opts.
func New(ctx context.Context, opts Options) (*Engine, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := opts.Clock
	if clock == nil {
		clock = period.SystemClock{}
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = tracing.Noop()
	}
	reg := opts.Registerer
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	e := &Engine{
		cfg:       cfg,
		logger:    logger.With("component", "metering.engine"),
		clock:     clock,
		tracer:    tracer,
		metrics:   metrics.New(reg, cfg.Telemetry.Metrics.Namespace),
		providers: make(map[string]costs.CostMap),
	}

	catalog, err := subscription.NewCatalog(
		PoliciesFromConfig(cfg.Subscriptions),
		cfg.Subscriptions.DefaultUserPolicy,
		cfg.Subscriptions.DefaultTemporaryPolicy,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build policy catalog: %w", err)
	}

	backend := opts.Store
	if backend == nil {
		backend, err = OpenBackend(ctx, cfg.Storage)
		if err != nil {
			return nil, err
		}
		e.ownsStore = true
	}
	e.store = storage.NewBounded(backend, cfg.Metering.OperationTimeout, e.metrics)

	e.registry = costs.NewRegistry(
		costs.WithRegistryLogger(logger.With("component", "metering.costs")),
		costs.WithCollisionObserver(e.metrics),
	)
	e.registry.Replace(CostMapsFromConfig(cfg.Pricing))

	e.normalizer = costs.NewNormalizer(e.registry, logger.With("component", "metering.normalizer"))
	e.normalizer.SetObserver(e.metrics)
	e.refresher = costs.NewRefresher(cfg.Metering.PriceRefreshSchedule, logger.With("component", "metering.refresher"))

	e.aggregator = usage.NewAggregator(e.store, e.normalizer,
		usage.WithClock(clock),
		usage.WithStorageUsageTypes(cfg.Metering.StorageUsageTypes),
		usage.WithLogger(logger.With("component", "metering.usage")),
		usage.WithObserver(e.metrics),
	)

	directory := opts.Directory
	if directory == nil {
		directory = subscription.StaticDirectory(cfg.Subscriptions.Assignments)
	}
	if cfg.Subscriptions.Cache.Enabled {
		e.cache, err = subscription.NewCachedDirectory(directory, cfg.Subscriptions.Cache.MaxEntries, cfg.Subscriptions.Cache.TTL)
		if err != nil {
			e.closeStore()
			return nil, fmt.Errorf("failed to create policy cache: %w", err)
		}
		directory = e.cache
	}
	e.resolver = subscription.NewResolver(catalog, directory, logger.With("component", "metering.subscription"))
	e.resolver.SetObserver(e.metrics)

	e.enforcer = quota.NewEnforcer(e.aggregator, e.resolver, clock, logger.With("component", "metering.quota"))
	e.enforcer.SetObserver(e.metrics)

	e.logger.Info("metering engine ready",
		"backend", cfg.Storage.Backend,
		"usage_types", e.registry.Len(),
		"policies", len(catalog.Policies()),
		"cache", cfg.Subscriptions.Cache.Enabled,
	)
	return e, nil
}

// Register merges a provider's cost map into the registry. Cached prices in
// the map are refreshed on the configured schedule once Start is called.
func (e *Engine) Register(providerID string, costMap costs.CostMap) {
	e.mu.Lock()
	e.providers[providerID] = costMap
	e.mu.Unlock()

	e.registry.Register(providerID, costMap)
	e.refresher.Add(cachedPrices(costMap)...)
}

// ReloadPricing replaces the configured cost maps with those of cfg as one
// table swap. Maps registered with Register are kept and take precedence.
func (e *Engine) ReloadPricing(cfg config.PricingConfig) {
	maps := CostMapsFromConfig(cfg)

	e.mu.Lock()
	for providerID, m := range e.providers {
		merged := make(costs.CostMap, len(maps[providerID])+len(m))
		for k, v := range maps[providerID] {
			merged[k] = v
		}
		for k, v := range m {
			merged[k] = v
		}
		maps[providerID] = merged
	}
	e.mu.Unlock()

	e.registry.Replace(maps)
	e.logger.Info("pricing reloaded", "providers", len(maps), "usage_types", e.registry.Len())
}

// Start schedules dynamic price refresh until ctx is done.
func (e *Engine) Start(ctx context.Context) error {
	return e.refresher.Start(ctx)
}

// Record prices ev and adds it to the actor's current-period aggregates.
func (e *Engine) Record(ctx context.Context, ev usage.Event) (usage.Result, error) {
	ctx, span := e.startSpan(ctx, tracing.SpanRecord, ev.Actor)
	defer span.End()
	tracing.SetUsageAttributes(span, ev.AppKey, ev.UsageType, ev.Quantity)

	res, err := e.aggregator.Record(ctx, ev)
	if err == nil {
		tracing.SetCostAttributes(span, res.Cost.MicroUnits, res.Cost.Unpriced, res.Period)
	}
	tracing.SetStatus(span, err)
	return res, err
}

// RecordUsageObject records one event per entry of a provider usage object,
// with usage type prefix:kind.
func (e *Engine) RecordUsageObject(ctx context.Context, who actor.Actor, appKey, prefix string, quantities map[string]float64) ([]usage.Result, error) {
	ctx, span := e.startSpan(ctx, tracing.SpanRecord, who)
	defer span.End()
	tracing.SetUsageObjectAttributes(span, appKey, prefix, len(quantities))

	results, err := e.aggregator.RecordUsageObject(ctx, who, appKey, prefix, quantities)
	tracing.SetStatus(span, err)
	return results, err
}

// Evaluate judges the actor against its policy for the current period.
func (e *Engine) Evaluate(ctx context.Context, who actor.Actor) (quota.Decision, error) {
	return e.EvaluateAt(ctx, who, period.Current(e.clock))
}

// EvaluateAt judges the actor against its policy for the given period.
func (e *Engine) EvaluateAt(ctx context.Context, who actor.Actor, label string) (quota.Decision, error) {
	ctx, span := e.startSpan(ctx, tracing.SpanEvaluate, who)
	defer span.End()

	if err := who.Validate(); err != nil {
		err = fmt.Errorf("%w: %w", ErrInvalidUsage, err)
		tracing.SetStatus(span, err)
		return quota.Decision{}, err
	}
	if _, err := period.ParseLabel(label); err != nil {
		err = fmt.Errorf("%w: %w", ErrInvalidUsage, err)
		tracing.SetStatus(span, err)
		return quota.Decision{}, err
	}

	d, err := e.enforcer.EvaluateAt(ctx, who, label)
	if err == nil {
		tracing.SetDecisionAttributes(span, d.Period, d.Policy.ID, string(d.Source), d.OutcomeLabel(), d.CostUsed, d.StorageUsed)
	}
	tracing.SetStatus(span, err)
	return d, err
}

// RecordAndEvaluate records ev and returns the decision for the actor's
// next operation.
func (e *Engine) RecordAndEvaluate(ctx context.Context, ev usage.Event) (usage.Result, quota.Decision, error) {
	res, err := e.Record(ctx, ev)
	if err != nil {
		return usage.Result{}, quota.Decision{}, err
	}
	d, err := e.EvaluateAt(ctx, ev.Actor, res.Period)
	if err != nil {
		return res, quota.Decision{}, err
	}
	return res, d, nil
}

// Summary reads the actor's current-period aggregates with a breakdown for
// every registered usage type and each of extraTypes. appKey may be empty.
func (e *Engine) Summary(ctx context.Context, who actor.Actor, appKey string, extraTypes ...string) (usage.Summary, error) {
	return e.SummaryFor(ctx, who, appKey, period.Current(e.clock), extraTypes...)
}

// SummaryFor reads the actor's aggregates for the given period. Usage types
// without a price are not registered; name them in extraTypes to include
// their breakdown.
func (e *Engine) SummaryFor(ctx context.Context, who actor.Actor, appKey, label string, extraTypes ...string) (usage.Summary, error) {
	ctx, span := e.startSpan(ctx, tracing.SpanSummary, who)
	defer span.End()

	types := e.registry.UsageTypes()
	for _, ut := range extraTypes {
		if ut != "" && !slices.Contains(types, ut) {
			types = append(types, ut)
		}
	}

	s, err := e.aggregator.SummaryFor(ctx, who, appKey, label, types)
	tracing.SetStatus(span, err)
	return s, err
}

// Resolve returns the policy governing the actor.
func (e *Engine) Resolve(ctx context.Context, who actor.Actor) subscription.Resolution {
	return e.resolver.Resolve(ctx, who)
}

// Policies returns the policy catalog sorted by id.
func (e *Engine) Policies() []subscription.Policy {
	return e.resolver.Catalog().Policies()
}

// UsageTypes returns the registered usage types in sorted order.
func (e *Engine) UsageTypes() []string {
	return e.registry.UsageTypes()
}

// Lookup returns the registry entry for a usage type.
func (e *Engine) Lookup(usageType string) (costs.Entry, bool) {
	return e.registry.Lookup(usageType)
}

// Quote prices quantity units of usageType without recording anything.
func (e *Engine) Quote(ctx context.Context, usageType string, quantity float64) (costs.Result, error) {
	return e.normalizer.Normalize(ctx, usageType, quantity)
}

// Remaining returns the micro-units the actor may still consume in the
// current period. The global actor is unbounded and gets math.MaxInt64.
func (e *Engine) Remaining(ctx context.Context, who actor.Actor) (int64, error) {
	d, err := e.Evaluate(ctx, who)
	if err != nil {
		return 0, err
	}
	if d.Exempt {
		return math.MaxInt64, nil
	}
	return d.CostRemaining(), nil
}

// HasEnough reports whether microUnits more would keep the actor within its
// allowances for the current period. Store failures are returned as errors,
// never as a yes.
func (e *Engine) HasEnough(ctx context.Context, who actor.Actor, microUnits int64) (bool, error) {
	if microUnits < 0 {
		return false, fmt.Errorf("%w: negative cost %d", ErrInvalidUsage, microUnits)
	}
	d, err := e.Evaluate(ctx, who)
	if err != nil {
		return false, err
	}
	return d.Fits(microUnits), nil
}

// HasEnoughFor prices an estimated quantity of usageType and reports whether
// it would keep the actor within its allowances. Estimates of a storage usage
// type are also held against the storage allowance. Unpriced estimates cost
// nothing.
func (e *Engine) HasEnoughFor(ctx context.Context, who actor.Actor, usageType string, quantity float64) (bool, error) {
	q, err := e.Quote(ctx, usageType, quantity)
	if err != nil {
		return false, err
	}
	d, err := e.Evaluate(ctx, who)
	if err != nil {
		return false, err
	}
	if !d.Fits(q.MicroUnits) {
		return false, nil
	}
	if !e.aggregator.IsStorageType(usageType) {
		return true, nil
	}
	units, err := costs.CeilQuantity(quantity)
	if err != nil {
		return false, err
	}
	return d.FitsStorage(units), nil
}

// Period returns the current period label.
func (e *Engine) Period() string {
	return period.Current(e.clock)
}

// InvalidatePolicy drops the cached assignment of an actor, if caching is
// enabled.
func (e *Engine) InvalidatePolicy(who actor.Actor) {
	if e.cache != nil {
		e.cache.Invalidate(who)
	}
}

// Ping verifies that the store answers within the operation timeout.
func (e *Engine) Ping(ctx context.Context) error {
	_, err := e.store.Get(ctx, pingKey)
	return err
}

// Close stops the refresher and releases the policy cache and any store
// opened by the engine.
func (e *Engine) Close() error {
	var err error
	e.closeOnce.Do(func() {
		e.refresher.Stop()
		if e.cache != nil {
			e.cache.Close()
		}
		err = e.closeStore()
	})
	return err
}

func (e *Engine) closeStore() error {
	if !e.ownsStore {
		return nil
	}
	if err := e.store.Close(); err != nil {
		return fmt.Errorf("failed to close store: %w", err)
	}
	return nil
}

func (e *Engine) startSpan(ctx context.Context, name string, who actor.Actor) (context.Context, trace.Span) {
	return e.tracer.Start(ctx, name, trace.WithAttributes(tracing.ActorAttributes(who.ID, string(who.Kind))...))
}
