package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryBackend implements Backend with a process-local map.
// All data is lost when the process exits.
type MemoryBackend struct {
	mu     sync.Mutex
	values map[string]int64
	closed bool
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{values: make(map[string]int64)}
}

// IncrBy implements Backend.
func (m *MemoryBackend) IncrBy(ctx context.Context, key string, delta int64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, errClosed
	}
	next, err := addChecked(m.values[key], delta)
	if err != nil {
		return 0, err
	}
	m.values[key] = next
	return next, nil
}

// Get implements Backend.
func (m *MemoryBackend) Get(ctx context.Context, key string) (Value, error) {
	if err := ctx.Err(); err != nil {
		return Value{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return Value{}, errClosed
	}
	v, ok := m.values[key]
	return Value{Amount: v, Present: ok}, nil
}

// Keys returns the stored keys with the given prefix in sorted order.
func (m *MemoryBackend) Keys(prefix string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var keys []string
	for k := range m.values {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// Close implements Backend.
func (m *MemoryBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
