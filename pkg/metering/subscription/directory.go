package subscription

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto/v2"

	"mercator-hq/metering/pkg/metering/actor"
)

// Directory reports the policy assigned to an actor. ok is false when the
// actor has no assignment on file.
type Directory interface {
	AssignedPolicyID(ctx context.Context, a actor.Actor) (id string, ok bool, err error)
}

// DirectoryFunc adapts a function to Directory.
type DirectoryFunc func(ctx context.Context, a actor.Actor) (string, bool, error)

// AssignedPolicyID implements Directory.
func (f DirectoryFunc) AssignedPolicyID(ctx context.Context, a actor.Actor) (string, bool, error) {
	return f(ctx, a)
}

// StaticDirectory serves assignments from a fixed map of actor id to policy id.
type StaticDirectory map[string]string

// AssignedPolicyID implements Directory.
func (s StaticDirectory) AssignedPolicyID(_ context.Context, a actor.Actor) (string, bool, error) {
	id, ok := s[a.ID]
	return id, ok, nil
}

type assignment struct {
	id string
	ok bool
}

// CachedDirectory memoizes another directory's answers, including "no
// assignment", for a fixed TTL. Errors are never cached.
type CachedDirectory struct {
	inner Directory
	cache *ristretto.Cache[string, assignment]
	ttl   time.Duration
}

// NewCachedDirectory wraps inner with a cache of up to maxEntries answers.
func NewCachedDirectory(inner Directory, maxEntries int64, ttl time.Duration) (*CachedDirectory, error) {
	if maxEntries <= 0 {
		maxEntries = 10000
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	c, err := ristretto.NewCache(&ristretto.Config[string, assignment]{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,

		// Every entry costs 1 so MaxCost is an entry count.
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create policy cache: %w", err)
	}
	return &CachedDirectory{inner: inner, cache: c, ttl: ttl}, nil
}

// AssignedPolicyID implements Directory.
func (c *CachedDirectory) AssignedPolicyID(ctx context.Context, a actor.Actor) (string, bool, error) {
	key := a.String()
	if v, found := c.cache.Get(key); found {
		return v.id, v.ok, nil
	}

	id, ok, err := c.inner.AssignedPolicyID(ctx, a)
	if err != nil {
		return "", false, err
	}
	c.cache.SetWithTTL(key, assignment{id: id, ok: ok}, 1, c.ttl)
	return id, ok, nil
}

// Invalidate drops the cached answer for a.
func (c *CachedDirectory) Invalidate(a actor.Actor) {
	c.cache.Del(a.String())
}

// Wait blocks until pending cache writes are applied.
func (c *CachedDirectory) Wait() {
	c.cache.Wait()
}

// Close releases the cache.
func (c *CachedDirectory) Close() {
	c.cache.Close()
}
