// Package store provides organization persistence.
package store

import (
	"context"
	"sort"
	"sync"

	"taxgate/internal/organization/models"
	id "taxgate/pkg/domain"
	"taxgate/pkg/platform/sentinel"
)

// InMemoryStore keeps organizations in a map. For tests and local runs.
type InMemoryStore struct {
	mu   sync.RWMutex
	orgs map[id.OrgID]models.Organization
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{orgs: make(map[id.OrgID]models.Organization)}
}

func (s *InMemoryStore) Create(_ context.Context, org models.Organization) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.orgs[org.ID]; exists {
		return sentinel.ErrConflict
	}
	s.orgs[org.ID] = org
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, orgID id.OrgID) (models.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	org, ok := s.orgs[orgID]
	if !ok {
		return models.Organization{}, sentinel.ErrNotFound
	}
	return org, nil
}

func (s *InMemoryStore) List(_ context.Context) ([]models.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Organization, 0, len(s.orgs))
	for _, org := range s.orgs {
		out = append(out, org)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemoryStore) Update(_ context.Context, org models.Organization) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orgs[org.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.orgs[org.ID] = org
	return nil
}
