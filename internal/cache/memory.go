package cache

import (
	"context"
	"sync"
)

// Memory is an in-process HashCache. It backs tests and single-node
// deployments that run without redis.
type Memory struct {
	mu     sync.RWMutex
	hashes map[string]map[string][]byte
}

// NewMemory creates an empty in-memory cache.
func NewMemory() *Memory {
	return &Memory{hashes: make(map[string]map[string][]byte)}
}

func (m *Memory) GetAll(_ context.Context, key string) (map[string][]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string][]byte, len(m.hashes[key]))
	for f, v := range m.hashes[key] {
		out[f] = v
	}
	return out, nil
}

func (m *Memory) Get(_ context.Context, key, field string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.hashes[key][field]
	return v, ok, nil
}

func (m *Memory) PutAll(_ context.Context, key string, fields map[string][]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	h, ok := m.hashes[key]
	if !ok {
		h = make(map[string][]byte, len(fields))
		m.hashes[key] = h
	}
	for f, v := range fields {
		h[f] = v
	}
	return nil
}

func (m *Memory) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, k := range keys {
		delete(m.hashes, k)
	}
	return nil
}
