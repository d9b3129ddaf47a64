// Package costs converts heterogeneous provider usage into micro-units.
//
// A usage type names what was consumed as provider:model-or-api:unit, for
// example "openai:gpt-4o:prompt-tokens" or "filesystem:storage:byte". Each
// provider registers a CostMap from usage type to cost per unit at startup.
// The Registry holds the merged table and is read lock-free; Replace swaps
// the whole table for hot reload.
//
// The Normalizer turns (usage type, quantity) into an integer amount of
// micro-units (1 micro-unit = 1e-6 cent), rounding up with exact decimal
// arithmetic:
//
//	cost := ceil(costPerUnit * quantity)
//
// Usage types that are not registered normalize to zero and are flagged as
// unpriced so that a pricing gap never blocks usage.
//
// Prices that come from a provider query can be wrapped in a CachedPrice and
// refreshed on a cron schedule by a Refresher.
package costs
