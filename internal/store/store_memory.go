package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/harmwatch/harmwatch/internal/harm"
)

// MemoryStore is an in-memory AggregateStore for development mode and tests.
// Documents are stored as their serialized form so that Get never aliases a
// caller's mutable aggregate.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string][]byte)}
}

func (m *MemoryStore) Get(_ context.Context, encounterID string) (*harm.Aggregate, error) {
	m.mu.RLock()
	raw, ok := m.docs[encounterID]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	var agg harm.Aggregate
	if err := json.Unmarshal(raw, &agg); err != nil {
		return nil, fmt.Errorf("decode aggregate %s: %w", encounterID, err)
	}
	return &agg, nil
}

func (m *MemoryStore) Put(_ context.Context, agg *harm.Aggregate) error {
	raw, err := json.Marshal(agg)
	if err != nil {
		return fmt.Errorf("encode aggregate %s: %w", agg.EncounterID, err)
	}
	m.mu.Lock()
	m.docs[agg.EncounterID] = raw
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, encounterID string) error {
	m.mu.Lock()
	delete(m.docs, encounterID)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) ListEncounterIDs(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.docs))
	for id := range m.docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
