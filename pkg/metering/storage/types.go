package storage

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrUnavailable marks a failed or timed-out persistence call. Callers must
// treat it as "could not determine", never as success or as zero.
var ErrUnavailable = errors.New("aggregate store unavailable")

var errClosed = errors.New("backend closed")

// ErrOverflow is returned when an increment would overflow int64.
var ErrOverflow = errors.New("aggregate overflow")

// Backend is an atomic counter store. Implementations must be safe for
// concurrent use and IncrBy must be atomic with respect to other IncrBy calls
// on the same key, including from other processes sharing the store.
type Backend interface {
	// IncrBy adds delta to key, creating it at zero if absent, and returns
	// the value after the update.
	IncrBy(ctx context.Context, key string, delta int64) (int64, error)

	// Get returns the current value of key. Absent keys are reported with
	// Present false and Amount zero.
	Get(ctx context.Context, key string) (Value, error)

	// Close releases any resources held by the backend.
	Close() error
}

// Value is the result of a read.
type Value struct {
	Amount  int64
	Present bool
}

// Error describes a failed store operation.
type Error struct {
	Op  string
	Key string
	Err error
}

func (e *Error) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Key, e.Err)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports every store error as ErrUnavailable.
func (e *Error) Is(target error) bool {
	return target == ErrUnavailable
}

// Operation names used in errors and metrics.
const (
	OpIncrBy = "incrby"
	OpGet    = "get"
)

// Observer receives the outcome of every bounded store operation.
type Observer interface {
	ObserveStoreOp(op string, elapsed time.Duration, err error)
}

func addChecked(current, delta int64) (int64, error) {
	sum := current + delta
	if (delta > 0 && sum < current) || (delta < 0 && sum > current) {
		return 0, fmt.Errorf("%w: %d + %d", ErrOverflow, current, delta)
	}
	return sum, nil
}
