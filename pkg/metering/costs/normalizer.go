package costs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/shopspring/decimal"
)

// ErrInvalidUsage is returned for quantities or usage identifiers the engine
// refuses to meter. It is a caller error and is raised before persistence.
var ErrInvalidUsage = errors.New("invalid usage")

var maxMicroUnits = decimal.NewFromInt(math.MaxInt64)

// Result is a normalized usage quantity.
type Result struct {
	UsageType string
	Quantity  float64

	// MicroUnits is ceil(costPerUnit * Quantity).
	MicroUnits int64

	// Unpriced is set when no price was available. MicroUnits is zero.
	Unpriced bool

	// Provider that registered the price, empty when unpriced.
	Provider string
}

// UnpricedObserver is notified of usage that normalized to zero for lack of a price.
type UnpricedObserver interface {
	ObserveUnpriced(usageType string)
}

// Normalizer converts usage quantities into micro-units using a Registry.
type Normalizer struct {
	registry *Registry
	logger   *slog.Logger
	observer UnpricedObserver
}

// NewNormalizer creates a normalizer backed by registry.
func NewNormalizer(registry *Registry, logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default().With("component", "metering.costs")
	}
	return &Normalizer{registry: registry, logger: logger}
}

// SetObserver sets the observer for unpriced usage.
func (n *Normalizer) SetObserver(o UnpricedObserver) {
	n.observer = o
}

// Normalize converts quantity units of usageType into micro-units.
//
// Negative, NaN and infinite quantities are rejected with ErrInvalidUsage.
// When the usage type has no usable price the result is zero with Unpriced set.
func (n *Normalizer) Normalize(ctx context.Context, usageType string, quantity float64) (Result, error) {
	if err := validate(usageType, quantity); err != nil {
		return Result{}, err
	}

	res := Result{UsageType: usageType, Quantity: quantity}

	entry, ok := n.registry.Lookup(usageType)
	if !ok {
		n.unpriced(usageType, "usage type not registered", nil)
		res.Unpriced = true
		return res, nil
	}

	perUnit, err := entry.Price.PerUnit(ctx)
	if err != nil {
		n.unpriced(usageType, "price unavailable", err)
		res.Unpriced = true
		return res, nil
	}
	if perUnit.IsNegative() {
		n.unpriced(usageType, "negative price ignored", nil)
		res.Unpriced = true
		return res, nil
	}

	cost, err := Ceil(perUnit, quantity)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", usageType, err)
	}

	res.MicroUnits = cost
	res.Provider = entry.Provider
	return res, nil
}

// Override builds a result for an explicit micro-unit cost supplied by the caller.
func (n *Normalizer) Override(usageType string, quantity float64, microUnits int64) (Result, error) {
	if err := validate(usageType, quantity); err != nil {
		return Result{}, err
	}
	if microUnits < 0 {
		return Result{}, fmt.Errorf("%w: negative cost override %d", ErrInvalidUsage, microUnits)
	}
	return Result{UsageType: usageType, Quantity: quantity, MicroUnits: microUnits}, nil
}

func (n *Normalizer) unpriced(usageType, msg string, err error) {
	attrs := []any{"usage_type", usageType}
	if err != nil {
		attrs = append(attrs, "error", err)
	}
	n.logger.Warn(msg, attrs...)
	if n.observer != nil {
		n.observer.ObserveUnpriced(usageType)
	}
}

func validate(usageType string, quantity float64) error {
	if err := ValidateQuantity(quantity); err != nil {
		return err
	}
	if usageType == "" {
		return fmt.Errorf("%w: empty usage type", ErrInvalidUsage)
	}
	return nil
}

// ValidateQuantity rejects quantities that cannot be metered.
func ValidateQuantity(quantity float64) error {
	switch {
	case math.IsNaN(quantity), math.IsInf(quantity, 0):
		return fmt.Errorf("%w: quantity %v is not a finite number", ErrInvalidUsage, quantity)
	case quantity < 0:
		return fmt.Errorf("%w: negative quantity %v", ErrInvalidUsage, quantity)
	}
	return nil
}

// Ceil returns ceil(perUnit * quantity) as an int64 using exact decimal
// arithmetic on the shortest decimal representation of quantity.
func Ceil(perUnit decimal.Decimal, quantity float64) (int64, error) {
	product := perUnit.Mul(decimal.NewFromFloat(quantity)).Ceil()
	if product.GreaterThan(maxMicroUnits) {
		return 0, fmt.Errorf("%w: cost %s overflows int64", ErrInvalidUsage, product.String())
	}
	return product.IntPart(), nil
}

// CeilQuantity rounds a quantity up to whole units, used for byte counts.
func CeilQuantity(quantity float64) (int64, error) {
	return Ceil(decimal.NewFromInt(1), quantity)
}
