// Package metrics exposes metering activity as Prometheus collectors.
//
// Labels never carry actor or app identifiers. Usage is labelled by
// provider, the first segment of the usage type, so that callers reporting
// arbitrary unpriced usage types cannot grow the series count.
package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"mercator-hq/metering/pkg/metering/quota"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "metering"

// Metrics contains the Prometheus collectors for the metering engine.
type Metrics struct {
	// Recording
	records     *prometheus.CounterVec
	costTotal   *prometheus.CounterVec
	unpriced    *prometheus.CounterVec
	auxFailures prometheus.Counter

	// Evaluation
	evaluations *prometheus.CounterVec
	fallbacks   *prometheus.CounterVec

	// Store
	storeDuration *prometheus.HistogramVec
	storeErrors   *prometheus.CounterVec

	// Registry
	collisions prometheus.Counter
}

// New creates and registers the collectors on reg.
func New(reg prometheus.Registerer, namespace string) *Metrics {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	factory := promauto.With(reg)

	return &Metrics{
		records: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "usage_records_total",
				Help:      "Total number of usage events recorded",
			},
			[]string{"provider"},
		),

		costTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "usage_cost_micro_units_total",
				Help:      "Total normalized cost recorded in micro-units",
			},
			[]string{"provider"},
		),

		unpriced: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "usage_unpriced_total",
				Help:      "Total number of usage events normalized without a price",
			},
			[]string{"provider"},
		),

		auxFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "auxiliary_aggregate_failures_total",
				Help:      "Total number of best-effort aggregate updates that failed",
			},
		),

		evaluations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "quota_evaluations_total",
				Help:      "Total number of quota evaluation outcomes",
			},
			[]string{"outcome"},
		),

		fallbacks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "policy_resolution_fallbacks_total",
				Help:      "Total number of policy resolutions that fell back to a default",
			},
			[]string{"reason"},
		),

		storeDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "store_operation_duration_seconds",
				Help:      "Latency of aggregate store operations",
				Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"operation"},
		),

		storeErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_errors_total",
				Help:      "Total number of failed aggregate store operations",
			},
			[]string{"operation"},
		),

		collisions: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cost_registry_collisions_total",
				Help:      "Total number of usage types registered by more than one provider",
			},
		),
	}
}

func provider(usageType string) string {
	if i := strings.IndexByte(usageType, ':'); i > 0 {
		return usageType[:i]
	}
	return "unknown"
}

// ObserveRecord implements usage.Observer.
func (m *Metrics) ObserveRecord(usageType string, microUnits int64) {
	p := provider(usageType)
	m.records.WithLabelValues(p).Inc()
	m.costTotal.WithLabelValues(p).Add(float64(microUnits))
}

// ObserveAuxiliaryFailure implements usage.Observer.
func (m *Metrics) ObserveAuxiliaryFailure() {
	m.auxFailures.Inc()
}

// ObserveUnpriced implements costs.UnpricedObserver.
func (m *Metrics) ObserveUnpriced(usageType string) {
	m.unpriced.WithLabelValues(provider(usageType)).Inc()
}

// ObserveCollision implements costs.CollisionObserver.
func (m *Metrics) ObserveCollision(string) {
	m.collisions.Inc()
}

// ObserveEvaluation implements quota.Observer.
func (m *Metrics) ObserveEvaluation(outcome quota.Outcome) {
	m.evaluations.WithLabelValues(string(outcome)).Inc()
}

// ObserveFallback implements subscription.FallbackObserver.
func (m *Metrics) ObserveFallback(reason string) {
	m.fallbacks.WithLabelValues(reason).Inc()
}

// ObserveStoreOp implements storage.Observer.
func (m *Metrics) ObserveStoreOp(op string, elapsed time.Duration, err error) {
	m.storeDuration.WithLabelValues(op).Observe(elapsed.Seconds())
	if err != nil {
		m.storeErrors.WithLabelValues(op).Inc()
	}
}
