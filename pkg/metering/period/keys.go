package period

import (
	"fmt"
	"strings"
)

// Scope names the kind of owner an aggregate belongs to.
type Scope string

const (
	// ScopeActor keys aggregates owned by an actor (including the global sentinel).
	ScopeActor Scope = "actor"

	// ScopeApp keys aggregates owned by an application across all actors.
	ScopeApp Scope = "app"
)

// Dimension identifies what an aggregate measures.
type Dimension string

const (
	// DimensionCost is the running total of normalized cost in micro-units.
	DimensionCost Dimension = "total-cost"

	// DimensionStorage is the running total of stored bytes.
	DimensionStorage Dimension = "total-storage"
)

// Per-usage-type and per-app aggregate fields.
const (
	FieldUnits = "units"
	FieldCost  = "cost"
	FieldCount = "count"
)

// UsageTypeDimension is the dimension of one field of a usage type's breakdown.
func UsageTypeDimension(usageType, field string) Dimension {
	return Dimension("type" + Separator + usageType + Separator + field)
}

// AppDimension is the dimension of one field of an actor's usage within an app.
func AppDimension(appKey, field string) Dimension {
	return Dimension("app" + Separator + appKey + Separator + field)
}

// DeriveKey returns the storage key of an actor's aggregate for a period.
func DeriveKey(actorID string, dimension Dimension, periodLabel string) string {
	return DeriveScopedKey(ScopeActor, actorID, dimension, periodLabel)
}

// DeriveScopedKey returns the storage key of an aggregate owned by owner
// within scope. Distinct inputs always produce distinct keys.
func DeriveScopedKey(scope Scope, owner string, dimension Dimension, periodLabel string) string {
	return strings.Join([]string{
		KeyPrefix,
		string(scope),
		Escape(owner),
		Escape(string(dimension)),
		Escape(periodLabel),
	}, Separator)
}

// KeyParts is a decoded storage key.
type KeyParts struct {
	Scope     Scope
	Owner     string
	Dimension Dimension
	Period    string
}

// String renders the parts in a human readable form.
func (p KeyParts) String() string {
	return fmt.Sprintf("%s=%s dimension=%s period=%s", p.Scope, p.Owner, p.Dimension, p.Period)
}

// ParseKey decodes a key produced by DeriveScopedKey.
func ParseKey(key string) (KeyParts, error) {
	segments := strings.Split(key, Separator)
	if len(segments) != 5 || segments[0] != KeyPrefix {
		return KeyParts{}, fmt.Errorf("%w: %q", ErrMalformedKey, key)
	}

	scope := Scope(segments[1])
	if scope != ScopeActor && scope != ScopeApp {
		return KeyParts{}, fmt.Errorf("%w: unknown scope %q", ErrMalformedKey, segments[1])
	}

	owner, err := Unescape(segments[2])
	if err != nil {
		return KeyParts{}, err
	}
	dimension, err := Unescape(segments[3])
	if err != nil {
		return KeyParts{}, err
	}
	label, err := Unescape(segments[4])
	if err != nil {
		return KeyParts{}, err
	}

	return KeyParts{
		Scope:     scope,
		Owner:     owner,
		Dimension: Dimension(dimension),
		Period:    label,
	}, nil
}
