package usage

import (
	"github.com/google/uuid"

	"mercator-hq/metering/pkg/metering/actor"
	"mercator-hq/metering/pkg/metering/costs"
)

// Event is one unit of metered work.
type Event struct {
	Actor actor.Actor

	// AppKey is the application the usage is attributed to. Empty means
	// the platform itself (actor.GlobalKey).
	AppKey string

	UsageType string
	Quantity  float64

	// CostOverride, when set, is used as the normalized cost instead of the
	// registry price.
	CostOverride *int64
}

// Result reports the outcome of a recorded event.
type Result struct {
	EventID uuid.UUID
	Period  string

	// Cost is the normalized cost of this event.
	Cost costs.Result

	// CostTotal is the actor's total-cost for the period after this event.
	CostTotal int64

	// StorageTotal is the actor's total-storage for the period after this
	// event. Only meaningful when StorageTracked is set.
	StorageTotal   int64
	StorageTracked bool
}

// TypeUsage is the breakdown of one usage type for an actor and period.
type TypeUsage struct {
	UsageType string
	Units     int64
	Cost      int64
	Count     int64
}

// Summary is a read of an actor's aggregates for one period.
type Summary struct {
	Actor   actor.Actor
	Period  string
	Cost    int64
	Storage int64

	// AppKey, AppCost and AppCount are set when the summary was requested
	// for an app.
	AppKey   string
	AppCost  int64
	AppCount int64

	// Types holds the usage types with any recorded usage, in request order.
	Types []TypeUsage
}

// Observer receives aggregate-level events.
type Observer interface {
	ObserveRecord(usageType string, microUnits int64)
	ObserveAuxiliaryFailure()
}

type nopObserver struct{}

func (nopObserver) ObserveRecord(string, int64) {}
func (nopObserver) ObserveAuxiliaryFailure()    {}
