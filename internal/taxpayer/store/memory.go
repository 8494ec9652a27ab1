// Package store provides taxpayer persistence. Reads exclude soft-deleted
// rows; the rows themselves are never removed.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"taxgate/internal/taxpayer/models"
	id "taxgate/pkg/domain"
	"taxgate/pkg/platform/sentinel"
)

// InMemoryStore keeps taxpayers in maps. For tests and local runs.
type InMemoryStore struct {
	mu        sync.RWMutex
	taxpayers map[id.TaxpayerID]models.Taxpayer
	// byTIN indexes live (non-deleted) rows per organization.
	byTIN map[id.OrgID]map[string]id.TaxpayerID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		taxpayers: make(map[id.TaxpayerID]models.Taxpayer),
		byTIN:     make(map[id.OrgID]map[string]id.TaxpayerID),
	}
}

func (s *InMemoryStore) Create(_ context.Context, tp models.Taxpayer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createLocked(tp)
}

func (s *InMemoryStore) createLocked(tp models.Taxpayer) error {
	tins, ok := s.byTIN[tp.OrgID]
	if !ok {
		tins = make(map[string]id.TaxpayerID)
		s.byTIN[tp.OrgID] = tins
	}
	if _, exists := tins[tp.TIN]; exists {
		return sentinel.ErrConflict
	}
	s.taxpayers[tp.ID] = tp
	tins[tp.TIN] = tp.ID
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, taxpayerID id.TaxpayerID) (models.Taxpayer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tp, ok := s.taxpayers[taxpayerID]
	if !ok || tp.Deleted() {
		return models.Taxpayer{}, sentinel.ErrNotFound
	}
	return tp, nil
}

func (s *InMemoryStore) FindByTIN(_ context.Context, orgID id.OrgID, tin string) (models.Taxpayer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	taxpayerID, ok := s.byTIN[orgID][tin]
	if !ok {
		return models.Taxpayer{}, sentinel.ErrNotFound
	}
	return s.taxpayers[taxpayerID], nil
}

func (s *InMemoryStore) ListByOrg(_ context.Context, orgID id.OrgID, filter models.ListFilter) ([]models.Taxpayer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Taxpayer
	for _, tp := range s.taxpayers {
		if tp.OrgID != orgID || tp.Deleted() {
			continue
		}
		if filter.Status != "" && tp.Status != filter.Status {
			continue
		}
		out = append(out, tp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *InMemoryStore) Update(_ context.Context, tp models.Taxpayer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.taxpayers[tp.ID]
	if !ok || existing.Deleted() {
		return sentinel.ErrNotFound
	}
	s.taxpayers[tp.ID] = tp
	return nil
}

func (s *InMemoryStore) SoftDelete(_ context.Context, taxpayerID id.TaxpayerID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tp, ok := s.taxpayers[taxpayerID]
	if !ok || tp.Deleted() {
		return sentinel.ErrNotFound
	}
	tp.DeletedAt = &at
	tp.UpdatedAt = at
	s.taxpayers[tp.ID] = tp
	delete(s.byTIN[tp.OrgID], tp.TIN)
	return nil
}

func (s *InMemoryStore) CountByOrg(_ context.Context, orgID id.OrgID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, tp := range s.taxpayers {
		if tp.OrgID == orgID && !tp.Deleted() {
			count++
		}
	}
	return count, nil
}

func (s *InMemoryStore) CountByOrgAndStatus(_ context.Context, orgID id.OrgID, status models.Status) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, tp := range s.taxpayers {
		if tp.OrgID == orgID && !tp.Deleted() && tp.Status == status {
			count++
		}
	}
	return count, nil
}
