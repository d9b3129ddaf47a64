// Package metering is a multi-tenant usage metering and quota enforcement
// engine.
//
// # Overview
//
// Callers report consumption of external services (LLM tokens, speech
// characters, OCR pages, stored bytes) as usage events. The engine prices
// each event in micro-units, adds it to the actor's aggregates for the
// current calendar month and decides whether the actor may keep consuming
// under its subscription policy.
//
// The Engine wires the components found in the subpackages:
//   - costs: cost registry, normalizer and scheduled price refresh
//   - period: billing period labels and injective storage keys
//   - storage: atomic add-and-fetch backends (memory, SQLite, Redis, Postgres)
//   - usage: the aggregator applying events to period aggregates
//   - subscription: policy catalog, directory and resolver
//   - quota: the enforcer producing advisory decisions
//   - metrics: Prometheus collectors for all of the above
//
// # Usage
//
//	engine, err := metering.New(ctx, metering.Options{Config: cfg})
//	if err != nil {
//	    return err
//	}
//	defer engine.Close()
//
//	decision, err := engine.Evaluate(ctx, actor.User("u1"))
//	if err != nil {
//	    return err // infrastructure failure: fail closed
//	}
//	if !decision.Allowed() {
//	    return fmt.Errorf("quota exceeded: %s", decision.Reason())
//	}
//
//	// Callers that can estimate the work up front may ask before starting.
//	ok, err := engine.HasEnoughFor(ctx, actor.User("u1"), "openai:gpt-4o:prompt-tokens", 4000)
//	if err != nil || !ok {
//	    return errInsufficientAllowance
//	}
//
//	// ... perform the work ...
//
//	_, err = engine.Record(ctx, usage.Event{
//	    Actor:     actor.User("u1"),
//	    AppKey:    "chat",
//	    UsageType: "openai:gpt-4o:prompt-tokens",
//	    Quantity:  1200,
//	})
//
// # Errors
//
// Errors matching ErrInvalidUsage are caller mistakes detected before any
// write. Errors matching ErrInfrastructure mean the store could not be
// reached within the operation timeout; Record did not count the event and
// Evaluate produced no decision.
package metering
