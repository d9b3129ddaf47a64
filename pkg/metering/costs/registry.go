package costs

import (
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
)

// Entry is a registered price and the provider that registered it.
type Entry struct {
	Provider string
	Price    Price
}

type table map[string]Entry

// CollisionObserver is notified when two providers register the same usage type.
type CollisionObserver interface {
	ObserveCollision(usageType string)
}

// Registry is the process-wide cost table.
//
// Lookups read an immutable snapshot through an atomic pointer and never
// block. Register and Replace build a new snapshot under a single writer
// lock and publish it.
type Registry struct {
	mu       sync.Mutex
	current  atomic.Pointer[table]
	logger   *slog.Logger
	observer CollisionObserver
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithRegistryLogger sets the logger used for collision warnings.
func WithRegistryLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithCollisionObserver sets an observer for registration collisions.
func WithCollisionObserver(o CollisionObserver) RegistryOption {
	return func(r *Registry) {
		r.observer = o
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		logger: slog.Default().With("component", "metering.costs"),
	}
	for _, opt := range opts {
		opt(r)
	}
	empty := table{}
	r.current.Store(&empty)
	return r
}

// Register merges costMap into the table under providerID. A later
// registration of the same usage type overwrites the earlier one; when the
// earlier entry came from a different provider the collision is logged.
func (r *Registry) Register(providerID string, costMap CostMap) {
	r.mu.Lock()
	defer r.mu.Unlock()

	old := *r.current.Load()
	next := make(table, len(old)+len(costMap))
	for k, v := range old {
		next[k] = v
	}
	r.merge(next, providerID, costMap)
	r.current.Store(&next)
}

// Replace swaps the whole table for one built from maps, keyed by provider.
// Providers are applied in sorted order so collisions resolve deterministically.
func (r *Registry) Replace(maps map[string]CostMap) {
	providers := make([]string, 0, len(maps))
	for p := range maps {
		providers = append(providers, p)
	}
	sort.Strings(providers)

	r.mu.Lock()
	defer r.mu.Unlock()

	next := table{}
	for _, p := range providers {
		r.merge(next, p, maps[p])
	}
	r.current.Store(&next)
	r.logger.Info("cost table replaced", "providers", len(providers), "usage_types", len(next))
}

func (r *Registry) merge(t table, providerID string, costMap CostMap) {
	keys := make([]string, 0, len(costMap))
	for k := range costMap {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, usageType := range keys {
		if prev, ok := t[usageType]; ok && prev.Provider != providerID {
			r.logger.Warn("usage type registered by multiple providers",
				"usage_type", usageType,
				"provider", providerID,
				"previous_provider", prev.Provider,
			)
			if r.observer != nil {
				r.observer.ObserveCollision(usageType)
			}
		}
		t[usageType] = Entry{Provider: providerID, Price: costMap[usageType]}
	}
}

// Lookup returns the entry registered for usageType.
func (r *Registry) Lookup(usageType string) (Entry, bool) {
	e, ok := (*r.current.Load())[usageType]
	return e, ok
}

// UsageTypes returns all registered usage types in sorted order.
func (r *Registry) UsageTypes() []string {
	t := *r.current.Load()
	out := make([]string, 0, len(t))
	for k := range t {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of registered usage types.
func (r *Registry) Len() int {
	return len(*r.current.Load())
}
