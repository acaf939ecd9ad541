package membership

import (
	"context"
	"sync"
	"time"

	"rosterclaim/internal/directory/models"
	"rosterclaim/pkg/platform/sentinel"
)

// InMemory is a map-backed membership table that keeps insertion order.
type InMemory struct {
	mu          sync.RWMutex
	order       []string
	memberships map[string]*models.Membership
}

// NewInMemory creates an empty membership table.
func NewInMemory() *InMemory {
	return &InMemory{memberships: make(map[string]*models.Membership)}
}

func (s *InMemory) ListByUser(_ context.Context, userID string) ([]*models.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Membership
	for _, id := range s.order {
		m := s.memberships[id]
		if m.UserID == userID {
			out = append(out, clone(m))
		}
	}
	return out, nil
}

func (s *InMemory) Insert(_ context.Context, m *models.Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.memberships[m.ID]; ok {
		return sentinel.ErrConflict
	}
	s.memberships[m.ID] = clone(m)
	s.order = append(s.order, m.ID)
	return nil
}

func (s *InMemory) SoftDelete(_ context.Context, id, updatedBy string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.memberships[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	m.IsDeleted = true
	m.UpdatedBy = updatedBy
	m.UpdatedDate = &at
	return nil
}

func clone(m *models.Membership) *models.Membership {
	c := *m
	c.Roles = append([]string(nil), m.Roles...)
	if m.UpdatedDate != nil {
		t := *m.UpdatedDate
		c.UpdatedDate = &t
	}
	return &c
}
