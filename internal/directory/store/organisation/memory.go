package organisation

import (
	"context"
	"sync"

	"rosterclaim/internal/directory/models"
	"rosterclaim/pkg/platform/sentinel"
)

// InMemory is a map-backed organisation table.
type InMemory struct {
	mu   sync.RWMutex
	orgs map[string]models.Organisation
}

// NewInMemory creates an empty table.
func NewInMemory() *InMemory {
	return &InMemory{orgs: make(map[string]models.Organisation)}
}

// Save inserts or replaces an organisation.
func (s *InMemory) Save(_ context.Context, org *models.Organisation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orgs[org.ID] = *org
	return nil
}

func (s *InMemory) FindByID(_ context.Context, id string) (*models.Organisation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	org, ok := s.orgs[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &org, nil
}
