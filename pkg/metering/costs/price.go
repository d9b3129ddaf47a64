package costs

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
)

// Price yields the cost of one unit of a usage type in micro-units.
// Implementations must be safe for concurrent use.
type Price interface {
	PerUnit(ctx context.Context) (decimal.Decimal, error)
}

// Static is a fixed cost per unit.
type Static float64

// PerUnit implements Price.
func (s Static) PerUnit(context.Context) (decimal.Decimal, error) {
	return decimal.NewFromFloat(float64(s)), nil
}

// StaticDecimal is a fixed cost per unit held exactly.
type StaticDecimal struct {
	Value decimal.Decimal
}

// PerUnit implements Price.
func (s StaticDecimal) PerUnit(context.Context) (decimal.Decimal, error) {
	return s.Value, nil
}

// DynamicPrice queries a provider for its current cost per unit on every call.
type DynamicPrice func(ctx context.Context) (decimal.Decimal, error)

// PerUnit implements Price.
func (f DynamicPrice) PerUnit(ctx context.Context) (decimal.Decimal, error) {
	return f(ctx)
}

type cachedValue struct {
	price     decimal.Decimal
	fetchedAt time.Time
}

// CachedPrice serves the last successfully fetched value of a dynamic price.
// Refresh pulls a new value; until the first successful refresh PerUnit
// falls through to the source.
type CachedPrice struct {
	name   string
	source Price
	value  atomic.Pointer[cachedValue]
}

// NewCachedPrice wraps source. The name identifies it in logs.
func NewCachedPrice(name string, source Price) *CachedPrice {
	return &CachedPrice{name: name, source: source}
}

// Name returns the identifier given at construction.
func (c *CachedPrice) Name() string { return c.name }

// PerUnit implements Price.
func (c *CachedPrice) PerUnit(ctx context.Context) (decimal.Decimal, error) {
	if v := c.value.Load(); v != nil {
		return v.price, nil
	}
	return c.source.PerUnit(ctx)
}

// Refresh fetches the current value from the source. On failure the previous
// value is kept.
func (c *CachedPrice) Refresh(ctx context.Context) error {
	p, err := c.source.PerUnit(ctx)
	if err != nil {
		return fmt.Errorf("refresh price %s: %w", c.name, err)
	}
	c.value.Store(&cachedValue{price: p, fetchedAt: time.Now()})
	return nil
}

// FetchedAt returns when the cached value was last refreshed.
func (c *CachedPrice) FetchedAt() (time.Time, bool) {
	v := c.value.Load()
	if v == nil {
		return time.Time{}, false
	}
	return v.fetchedAt, true
}

// CostMap maps usage types to prices for one provider.
type CostMap map[string]Price

// StaticCostMap builds a CostMap from fixed per-unit costs.
func StaticCostMap(costs map[string]float64) CostMap {
	m := make(CostMap, len(costs))
	for k, v := range costs {
		m[k] = Static(v)
	}
	return m
}
