package subscription

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownPolicy is returned when a policy id is not in the catalog.
	ErrUnknownPolicy = errors.New("unknown subscription policy")

	// ErrInvalidPolicy is returned for policies that cannot be enforced.
	ErrInvalidPolicy = errors.New("invalid subscription policy")
)

// Kind classifies policies.
type Kind string

const (
	// KindFree is the default for registered users.
	KindFree Kind = "free"

	// KindTemporaryFree is the default for temporary sessions.
	KindTemporaryFree Kind = "temporary_free"

	// KindPaid is a plan purchased through the billing collaborator.
	KindPaid Kind = "paid"
)

// Policy is a monthly allowance.
type Policy struct {
	ID   string
	Kind Kind

	// MonthlyUsageAllowance is the cost allowance in micro-units.
	MonthlyUsageAllowance int64

	// MonthlyStorageAllowance is the storage allowance in bytes.
	MonthlyStorageAllowance int64
}

// Validate checks that p can be enforced.
func (p Policy) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidPolicy)
	}
	switch p.Kind {
	case KindFree, KindTemporaryFree, KindPaid:
	default:
		return fmt.Errorf("%w: policy %s has unknown kind %q", ErrInvalidPolicy, p.ID, p.Kind)
	}
	if p.MonthlyUsageAllowance < 0 || p.MonthlyStorageAllowance < 0 {
		return fmt.Errorf("%w: policy %s has a negative allowance", ErrInvalidPolicy, p.ID)
	}
	return nil
}

// BillingPlan is the shape paid plans arrive in from the billing collaborator.
type BillingPlan struct {
	PlanID            string
	UsageMicroUnits   int64
	StorageLimitBytes int64
}

// AdaptBillingPlan converts a billing plan into a paid policy.
func AdaptBillingPlan(plan BillingPlan) (Policy, error) {
	p := Policy{
		ID:                      plan.PlanID,
		Kind:                    KindPaid,
		MonthlyUsageAllowance:   plan.UsageMicroUnits,
		MonthlyStorageAllowance: plan.StorageLimitBytes,
	}
	if err := p.Validate(); err != nil {
		return Policy{}, err
	}
	return p, nil
}
