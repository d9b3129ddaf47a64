package metering

import (
	"mercator-hq/metering/pkg/metering/costs"
	"mercator-hq/metering/pkg/metering/storage"
)

var (
	// ErrInvalidUsage marks malformed events: negative or non-finite
	// quantities, empty usage types, invalid actors or period labels.
	ErrInvalidUsage = costs.ErrInvalidUsage

	// ErrInfrastructure marks store failures and timeouts.
	ErrInfrastructure = storage.ErrUnavailable
)
