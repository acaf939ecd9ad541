// Package settings reads system-wide settings such as the custodian organisation id.
package settings

import (
	"context"
	"sync"

	"rosterclaim/pkg/platform/sentinel"
)

// CustodianOrgID is the setting naming the organisation that owns unaffiliated users.
const CustodianOrgID = "custodianOrgId"

// InMemory is a map-backed settings table.
type InMemory struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewInMemory creates an empty settings table.
func NewInMemory() *InMemory {
	return &InMemory{values: make(map[string]string)}
}

// Set stores a setting.
func (s *InMemory) Set(_ context.Context, id, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[id] = value
	return nil
}

func (s *InMemory) Get(_ context.Context, id string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[id]
	if !ok {
		return "", sentinel.ErrNotFound
	}
	return v, nil
}
