package store

import (
	"context"
	"sync"
)

// Memory is an in-process Store. Values are kept encoded so callers never
// share mutable state with the store.
type Memory struct {
	mu     sync.RWMutex
	values map[string][]byte
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{values: make(map[string][]byte)}
}

// Get implements Store.
func (m *Memory) Get(_ context.Context, key string) (any, bool, error) {
	m.mu.RLock()
	data, ok := m.values[key]
	m.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	v, err := decodeValue(data)
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

// Set implements Store.
func (m *Memory) Set(_ context.Context, key string, value any) error {
	if err := validateKey(key); err != nil {
		return err
	}
	data, err := encodeValue(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.values[key] = data
	m.mu.Unlock()
	return nil
}

// Remove implements Store.
func (m *Memory) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.values, key)
	m.mu.Unlock()
	return nil
}

// ListAll implements Store.
func (m *Memory) ListAll(_ context.Context) (map[string]any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]any)
	for key, data := range m.values {
		name, ok := customizationName(key)
		if !ok {
			continue
		}
		v, err := decodeValue(data)
		if err != nil {
			return nil, err
		}
		out[name] = v
	}
	return out, nil
}

// Close implements Backend.
func (m *Memory) Close() error { return nil }
