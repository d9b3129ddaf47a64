package costs

import (
	"fmt"
	"strings"
)

// UsageType is a decoded provider:model-or-api:unit identifier.
type UsageType struct {
	Provider string
	Model    string
	Unit     string
}

// ParseUsageType splits s into its components. Models containing ':' are
// kept intact: everything between the first and the last segment is the model.
func ParseUsageType(s string) (UsageType, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 3 {
		return UsageType{}, fmt.Errorf("%w: usage type %q must have the form provider:model:unit", ErrInvalidUsage, s)
	}
	ut := UsageType{
		Provider: parts[0],
		Model:    strings.Join(parts[1:len(parts)-1], ":"),
		Unit:     parts[len(parts)-1],
	}
	if ut.Provider == "" || ut.Model == "" || ut.Unit == "" {
		return UsageType{}, fmt.Errorf("%w: usage type %q has an empty component", ErrInvalidUsage, s)
	}
	return ut, nil
}

// String returns the canonical form.
func (u UsageType) String() string {
	return u.Provider + ":" + u.Model + ":" + u.Unit
}

// Join builds the usage type prefix:kind used for batch usage objects.
func Join(prefix, kind string) string {
	if prefix == "" {
		return kind
	}
	return prefix + ":" + kind
}
