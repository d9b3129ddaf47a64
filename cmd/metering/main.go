// Metering is a multi-tenant usage metering and quota enforcement engine.
//
// It prices usage events reported by AI providers and storage services,
// accumulates per-actor monthly aggregates in a shared store and decides
// whether an actor may continue under its subscription policy.
//
// Usage:
//
//	# Serve metrics and health, refresh prices, hot reload pricing
//	metering run --config /etc/metering/config.yaml
//
//	# Record usage
//	metering record --actor u1 --usage-type openai:gpt-4o:prompt-tokens --quantity 1200
//
//	# Check the actor's quota (exit status 2 when exceeded)
//	metering evaluate --actor u1
//
//	# Inspect the current period
//	metering usage --actor u1 --output json
package main

func main() {
	Execute()
}
