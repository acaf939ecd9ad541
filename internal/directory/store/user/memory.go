package user

import (
	"context"
	"sync"

	"rosterclaim/internal/directory/models"
	"rosterclaim/pkg/platform/sentinel"
)

// InMemory is a map-backed user table.
type InMemory struct {
	mu    sync.RWMutex
	users map[string]*models.User
}

// NewInMemory creates an empty user table.
func NewInMemory() *InMemory {
	return &InMemory{users: make(map[string]*models.User)}
}

// Save inserts or replaces a user.
func (s *InMemory) Save(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *u
	s.users[u.ID] = &copied
	return nil
}

func (s *InMemory) FindByID(_ context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (s *InMemory) Update(_ context.Context, id string, update models.UserUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	update.Apply(u)
	return nil
}
