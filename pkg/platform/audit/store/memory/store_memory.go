// Package memory provides an in-memory audit store for tests and local runs.
package memory

import (
	"context"
	"sync"

	id "taxgate/pkg/domain"
	audit "taxgate/pkg/platform/audit"
)

// InMemoryStore keeps records in append order under a lock. Append-only by
// construction: nothing in the API mutates or removes an entry.
type InMemoryStore struct {
	mu      sync.RWMutex
	records []audit.Record
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, rec audit.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

func (s *InMemoryStore) ListRecent(_ context.Context, limit int) ([]audit.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	start := len(s.records) - limit
	if start < 0 {
		start = 0
	}
	out := make([]audit.Record, len(s.records)-start)
	copy(out, s.records[start:])
	return out, nil
}

func (s *InMemoryStore) ListByPrincipal(_ context.Context, principalID id.UserID) ([]audit.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []audit.Record
	for _, rec := range s.records {
		if rec.PrincipalID == principalID {
			out = append(out, rec)
		}
	}
	return out, nil
}

// All returns every record in append order. Test helper.
func (s *InMemoryStore) All() []audit.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]audit.Record, len(s.records))
	copy(out, s.records)
	return out
}

// Clear drops all records. Test helper.
func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = nil
}
