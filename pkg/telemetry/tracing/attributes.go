package tracing

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Span names.
const (
	SpanRecord   = "metering.record"
	SpanEvaluate = "metering.evaluate"
	SpanSummary  = "metering.summary"
)

// Attribute keys use the "metering.*" namespace.
const (
	AttrActor      = "metering.actor"
	AttrActorKind  = "metering.actor.kind"
	AttrApp        = "metering.app"
	AttrUsageType  = "metering.usage_type"
	AttrQuantity   = "metering.quantity"
	AttrCost       = "metering.cost.micro_units"
	AttrUnpriced   = "metering.cost.unpriced"
	AttrPeriod     = "metering.period"
	AttrPolicyID   = "metering.policy.id"
	AttrPolicySrc  = "metering.policy.source"
	AttrOutcome    = "metering.outcome"
	AttrCostUsed   = "metering.cost.used"
	AttrStoredUsed = "metering.storage.used"
	AttrPrefix     = "metering.usage_object.prefix"
	AttrEntries    = "metering.usage_object.entries"
)

// ActorAttributes identifies the metered actor.
func ActorAttributes(actorID, kind string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrActor, actorID),
		attribute.String(AttrActorKind, kind),
	}
}

// SetUsageAttributes sets the attributes of a recorded usage event.
func SetUsageAttributes(span trace.Span, appKey, usageType string, quantity float64) {
	span.SetAttributes(
		attribute.String(AttrApp, appKey),
		attribute.String(AttrUsageType, usageType),
		attribute.Float64(AttrQuantity, quantity),
	)
}

// SetUsageObjectAttributes sets the attributes of a batch of usage events.
func SetUsageObjectAttributes(span trace.Span, appKey, prefix string, entries int) {
	span.SetAttributes(
		attribute.String(AttrApp, appKey),
		attribute.String(AttrPrefix, prefix),
		attribute.Int(AttrEntries, entries),
	)
}

// SetCostAttributes sets the normalized cost of a recorded event.
func SetCostAttributes(span trace.Span, microUnits int64, unpriced bool, periodLabel string) {
	span.SetAttributes(
		attribute.Int64(AttrCost, microUnits),
		attribute.Bool(AttrUnpriced, unpriced),
		attribute.String(AttrPeriod, periodLabel),
	)
}

// SetDecisionAttributes sets the attributes of a quota decision.
func SetDecisionAttributes(span trace.Span, periodLabel, policyID, source, outcome string, costUsed, storageUsed int64) {
	span.SetAttributes(
		attribute.String(AttrPeriod, periodLabel),
		attribute.String(AttrPolicyID, policyID),
		attribute.String(AttrPolicySrc, source),
		attribute.String(AttrOutcome, outcome),
		attribute.Int64(AttrCostUsed, costUsed),
		attribute.Int64(AttrStoredUsed, storageUsed),
	)
}
