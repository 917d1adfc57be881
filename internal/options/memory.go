package options

import (
	"context"
	"maps"
	"sync"
)

// MemoryStore is an in-memory implementation of the Store interface.
// It uses a map for storage and RWMutex for thread-safe concurrent access.
// This implementation is suitable for development, testing, or single-instance deployments.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStore creates a new in-memory store, optionally seeded with values.
// Unknown keys in seed are ignored.
func NewMemoryStore(seed map[string]string) *MemoryStore {
	m := &MemoryStore{values: make(map[string]string)}
	for k, v := range seed {
		if IsKnownKey(k) && v != "" {
			m.values[k] = v
		}
	}
	return m
}

// Get returns the value for key, or "" when unset.
func (m *MemoryStore) Get(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.values[key], nil
}

// All returns a copy of every stored option.
func (m *MemoryStore) All(ctx context.Context) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return maps.Clone(m.values), nil
}

// Set writes values in one step; empty values delete the key.
func (m *MemoryStore) Set(ctx context.Context, values map[string]string) error {
	if err := checkKeys(values); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range values {
		if v == "" {
			delete(m.values, k)
			continue
		}
		m.values[k] = v
	}
	return nil
}

// Close is a no-op for MemoryStore as there are no resources to release.
func (m *MemoryStore) Close() error {
	return nil
}
