package storage

import (
	"context"
	"time"
)

// DefaultTimeout bounds each store operation when no timeout is configured.
const DefaultTimeout = 2 * time.Second

type nopObserver struct{}

func (nopObserver) ObserveStoreOp(string, time.Duration, error) {}

// Bounded wraps a Backend so that every call carries a deadline and every
// failure is reported as an *Error.
type Bounded struct {
	inner    Backend
	timeout  time.Duration
	observer Observer
}

// NewBounded wraps inner. A non-positive timeout uses DefaultTimeout.
func NewBounded(inner Backend, timeout time.Duration, observer Observer) *Bounded {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if observer == nil {
		observer = nopObserver{}
	}
	return &Bounded{inner: inner, timeout: timeout, observer: observer}
}

// Timeout returns the per-operation deadline.
func (b *Bounded) Timeout() time.Duration { return b.timeout }

// Unwrap returns the wrapped backend.
func (b *Bounded) Unwrap() Backend { return b.inner }

// IncrBy implements Backend.
func (b *Bounded) IncrBy(ctx context.Context, key string, delta int64) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	start := time.Now()
	v, err := b.inner.IncrBy(ctx, key, delta)
	b.observer.ObserveStoreOp(OpIncrBy, time.Since(start), err)
	if err != nil {
		return 0, &Error{Op: OpIncrBy, Key: key, Err: err}
	}
	return v, nil
}

// Get implements Backend.
func (b *Bounded) Get(ctx context.Context, key string) (Value, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	start := time.Now()
	v, err := b.inner.Get(ctx, key)
	b.observer.ObserveStoreOp(OpGet, time.Since(start), err)
	if err != nil {
		return Value{}, &Error{Op: OpGet, Key: key, Err: err}
	}
	return v, nil
}

// Close implements Backend.
func (b *Bounded) Close() error {
	return b.inner.Close()
}
