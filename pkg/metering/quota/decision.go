package quota

import (
	"strings"

	"mercator-hq/metering/pkg/metering/actor"
	"mercator-hq/metering/pkg/metering/subscription"
)

// Outcome is one facet of a decision.
type Outcome string

const (
	OutcomeAllowed         Outcome = "allowed"
	OutcomeCostExceeded    Outcome = "cost_exceeded"
	OutcomeStorageExceeded Outcome = "storage_exceeded"
)

// Decision is the result of an evaluation.
type Decision struct {
	Actor  actor.Actor
	Period string

	// Policy is the governing policy; zero when Exempt.
	Policy subscription.Policy
	Source subscription.Source

	CostUsed    int64
	StorageUsed int64

	CostExceeded    bool
	StorageExceeded bool

	// Exempt is set for the global platform actor.
	Exempt bool
}

// Allowed reports whether no allowance is breached.
func (d Decision) Allowed() bool {
	return !d.CostExceeded && !d.StorageExceeded
}

// Outcomes lists the breaches, or OutcomeAllowed when there are none.
func (d Decision) Outcomes() []Outcome {
	if d.Allowed() {
		return []Outcome{OutcomeAllowed}
	}
	var out []Outcome
	if d.CostExceeded {
		out = append(out, OutcomeCostExceeded)
	}
	if d.StorageExceeded {
		out = append(out, OutcomeStorageExceeded)
	}
	return out
}

// OutcomeLabel joins the outcomes with commas, e.g.
// "cost_exceeded,storage_exceeded".
func (d Decision) OutcomeLabel() string {
	outcomes := d.Outcomes()
	parts := make([]string, len(outcomes))
	for i, o := range outcomes {
		parts[i] = string(o)
	}
	return strings.Join(parts, ",")
}

// Reason is a short human readable explanation.
func (d Decision) Reason() string {
	if d.Exempt {
		return "platform actor is exempt"
	}
	if d.Allowed() {
		return "within allowance"
	}
	var parts []string
	if d.CostExceeded {
		parts = append(parts, "monthly usage allowance exceeded")
	}
	if d.StorageExceeded {
		parts = append(parts, "monthly storage allowance exceeded")
	}
	return strings.Join(parts, "; ")
}

// CostRemaining is the allowance left before a cost breach, never negative.
func (d Decision) CostRemaining() int64 {
	return remaining(d.Policy.MonthlyUsageAllowance, d.CostUsed)
}

// StorageRemaining is the allowance left before a storage breach, never negative.
func (d Decision) StorageRemaining() int64 {
	return remaining(d.Policy.MonthlyStorageAllowance, d.StorageUsed)
}

// Fits reports whether cost more micro-units stay within the cost allowance.
// A decision that already breaches an allowance fits nothing; exempt
// decisions fit everything.
func (d Decision) Fits(cost int64) bool {
	if d.Exempt {
		return true
	}
	return d.Allowed() && cost <= d.CostRemaining()
}

// FitsStorage is Fits for bytes against the storage allowance.
func (d Decision) FitsStorage(bytes int64) bool {
	if d.Exempt {
		return true
	}
	return d.Allowed() && bytes <= d.StorageRemaining()
}

func remaining(allowance, used int64) int64 {
	if used >= allowance {
		return 0
	}
	return allowance - used
}

// Compare judges totals against a policy. Equal is within allowance.
func Compare(cost, stored int64, p subscription.Policy) (costExceeded, storageExceeded bool) {
	return cost > p.MonthlyUsageAllowance, stored > p.MonthlyStorageAllowance
}
