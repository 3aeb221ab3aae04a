package store

import (
	"context"
	"sync"
)

// Memory is an in-memory preference store.
// It is suitable for tests and single-process deployments without durability.
type Memory struct {
	mu     sync.RWMutex
	data   map[string][]byte
	closed bool
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

// Get returns a copy of the stored bytes, or nil if key is absent.
func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	return m.GetSync(key)
}

// GetSync is Get without a context; it never blocks on I/O.
func (m *Memory) GetSync(key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, errClosed(key)
	}
	data, ok := m.data[key]
	if !ok {
		return nil, nil
	}
	// Return a copy to prevent mutations
	return append([]byte(nil), data...), nil
}

// Set stores a copy of data under key.
func (m *Memory) Set(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return errClosed(key)
	}
	m.data[key] = append([]byte(nil), data...)
	return nil
}

// Remove deletes key. Removing an absent key is not an error.
func (m *Memory) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return errClosed(key)
	}
	delete(m.data, key)
	return nil
}

// Keys returns the stored keys in no particular order.
func (m *Memory) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	return keys
}

// Close releases the store; later operations fail.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.data = nil
	return nil
}
