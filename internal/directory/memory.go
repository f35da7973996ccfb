package directory

import (
	"context"
	"sync"

	"mochifi/pkg/sentinel"
)

// Memory is the in-memory directory used by tests and single-node development.
type Memory struct {
	mu      sync.RWMutex
	records map[string]Record // keyed by username
}

func NewMemory() *Memory {
	return &Memory{records: make(map[string]Record)}
}

func (m *Memory) Create(_ context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[rec.Username]; ok {
		return sentinel.ErrConflict
	}
	m.records[rec.Username] = rec
	return nil
}

func (m *Memory) Lookup(_ context.Context, username string) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if rec, ok := m.records[username]; ok {
		return rec, nil
	}
	return Record{}, sentinel.ErrNotFound
}

func (m *Memory) ReverseLookup(_ context.Context, idAddress string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, rec := range m.records {
		if rec.IDAddress == idAddress {
			return rec.Username, nil
		}
	}
	return UnknownUsername, nil
}

func (m *Memory) UpdateAddress(_ context.Context, username, idAddress string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[username]
	if !ok {
		return sentinel.ErrNotFound
	}
	rec.IDAddress = idAddress
	m.records[username] = rec
	return nil
}
