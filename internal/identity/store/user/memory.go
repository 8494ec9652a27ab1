// Package user provides user persistence. Stores return sentinel errors; the
// service translates them into domain errors at the boundary.
package user

import (
	"context"
	"strings"
	"sync"

	"taxgate/internal/identity/models"
	id "taxgate/pkg/domain"
	"taxgate/pkg/platform/sentinel"
)

// InMemoryStore keeps users in a map. For tests and local runs.
type InMemoryStore struct {
	mu      sync.RWMutex
	users   map[id.UserID]models.User
	byEmail map[string]id.UserID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		users:   make(map[id.UserID]models.User),
		byEmail: make(map[string]id.UserID),
	}
}

func (s *InMemoryStore) Create(_ context.Context, user models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(user.Email)
	if _, exists := s.byEmail[email]; exists {
		return sentinel.ErrConflict
	}
	s.users[user.ID] = user
	s.byEmail[email] = user.ID
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, userID id.UserID) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[userID]
	if !ok {
		return models.User{}, sentinel.ErrNotFound
	}
	return user, nil
}

func (s *InMemoryStore) FindByEmail(_ context.Context, email string) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	userID, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return models.User{}, sentinel.ErrNotFound
	}
	return s.users[userID], nil
}

func (s *InMemoryStore) Update(_ context.Context, user models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.users[user.ID] = user
	return nil
}
