package store

import (
	"context"
	"sort"
	"sync"
)

// Memory is an in-process Store, used by tests and by runs that only
// print results without persisting them.
type Memory struct {
	mu     sync.RWMutex
	data   map[string]*QueryResult
	closed bool
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string]*QueryResult)}
}

func (m *Memory) Get(_ context.Context, key string) (*QueryResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	result, ok := m.data[key]
	if !ok {
		return nil, nil
	}
	cp := *result
	return &cp, nil
}

func (m *Memory) Put(_ context.Context, key string, result *QueryResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	cp := *result
	m.data[key] = &cp
	return nil
}

func (m *Memory) List(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	delete(m.data, key)
	return nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
