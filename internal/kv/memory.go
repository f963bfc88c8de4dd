package kv

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// Compile-time interface check.
var _ Store = (*Memory)(nil)

// Memory is an in-process Store. Values are copied on the way in and out.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *Memory) List(_ context.Context, prefix string) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Entry
	for k, v := range m.data {
		if strings.HasPrefix(k, prefix) {
			out = append(out, Entry{Key: k, Value: append([]byte(nil), v...)})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (m *Memory) Close() error { return nil }
