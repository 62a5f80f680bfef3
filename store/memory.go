package store

import (
	"fmt"
	"sync"
)

// MemoryStore keeps the snapshot in memory. Data is lost on restart.
// Safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	name    string
	payload []byte
	written bool
}

func NewMemoryStore(name string) *MemoryStore {
	return &MemoryStore{name: name}
}

func (m *MemoryStore) Read() ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.written {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, m.Location())
	}
	return append([]byte(nil), m.payload...), nil
}

func (m *MemoryStore) Write(payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payload = append([]byte(nil), payload...)
	m.written = true
	return nil
}

func (m *MemoryStore) Location() string {
	return "memory:" + m.name
}
