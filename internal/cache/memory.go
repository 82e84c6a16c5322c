package cache

import (
	"context"
	"sync"
)

// MemoryStore keeps entries for the lifetime of the process.
type MemoryStore struct {
	entries sync.Map
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Load(_ context.Context, key string) (Entry, bool, error) {
	v, ok := m.entries.Load(key)
	if !ok {
		return Entry{}, false, nil
	}
	return v.(Entry), true, nil
}

func (m *MemoryStore) Save(_ context.Context, e Entry) error {
	m.entries.Store(e.Key, e)
	return nil
}

func (m *MemoryStore) Close() error { return nil }
