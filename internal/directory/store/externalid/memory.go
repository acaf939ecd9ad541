package externalid

import (
	"context"
	"sync"

	"rosterclaim/internal/directory/models"
	"rosterclaim/pkg/platform/sentinel"
)

type key struct {
	provider, idType, externalID string
}

// InMemory is a map-backed external identity table.
type InMemory struct {
	mu    sync.RWMutex
	links map[key]models.ExternalIdentity
}

// NewInMemory creates an empty table.
func NewInMemory() *InMemory {
	return &InMemory{links: make(map[key]models.ExternalIdentity)}
}

// Upsert replaces the link stored under the normalized triple.
func (s *InMemory) Upsert(_ context.Context, link *models.ExternalIdentity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.links[key{link.Provider, link.IDType, link.ExternalID}] = *link
	return nil
}

// Find returns the link for a normalized triple.
func (s *InMemory) Find(_ context.Context, provider, idType, externalID string) (*models.ExternalIdentity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	link, ok := s.links[key{provider, idType, externalID}]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &link, nil
}
