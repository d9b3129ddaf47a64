package metering

import (
	"mercator-hq/metering/pkg/config"
	"mercator-hq/metering/pkg/metering/costs"
	"mercator-hq/metering/pkg/metering/subscription"
)

// CostMapsFromConfig builds one static cost map per configured provider.
func CostMapsFromConfig(cfg config.PricingConfig) map[string]costs.CostMap {
	maps := make(map[string]costs.CostMap, len(cfg.Providers))
	for providerID, prices := range cfg.Providers {
		maps[providerID] = costs.StaticCostMap(prices)
	}
	return maps
}

// PoliciesFromConfig converts the configured policies.
func PoliciesFromConfig(cfg config.SubscriptionsConfig) []subscription.Policy {
	policies := make([]subscription.Policy, 0, len(cfg.Policies))
	for _, p := range cfg.Policies {
		policies = append(policies, subscription.Policy{
			ID:                      p.ID,
			Kind:                    subscription.Kind(p.Kind),
			MonthlyUsageAllowance:   p.MonthlyUsageAllowance,
			MonthlyStorageAllowance: p.MonthlyStorageAllowance,
		})
	}
	return policies
}

// cachedPrices returns the prices in m that need scheduled refresh.
func cachedPrices(m costs.CostMap) []*costs.CachedPrice {
	var out []*costs.CachedPrice
	for _, p := range m {
		if cp, ok := p.(*costs.CachedPrice); ok {
			out = append(out, cp)
		}
	}
	return out
}
