// Package shadow stores roster shadow records and their claim outcome.
package shadow

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"rosterclaim/internal/claim/models"
	"rosterclaim/pkg/platform/sentinel"
)

// InMemory is a map-backed shadow table that iterates in insertion order.
type InMemory struct {
	mu      sync.RWMutex
	order   []models.Key
	records map[models.Key]*models.ShadowUser
	now     func() time.Time
}

// NewInMemory creates an empty shadow table.
func NewInMemory() *InMemory {
	return &InMemory{
		records: make(map[models.Key]*models.ShadowUser),
		now:     time.Now,
	}
}

// Save inserts or replaces a record. It is the ingestion-side write.
func (s *InMemory) Save(_ context.Context, rec *models.ShadowUser) error {
	key := rec.Key()
	if err := key.Validate(); err != nil {
		return fmt.Errorf("save shadow user: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[key]; !ok {
		s.order = append(s.order, key)
	}
	s.records[key] = clone(rec)
	return nil
}

func (s *InMemory) FindByKey(_ context.Context, key models.Key) (*models.ShadowUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[key]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(rec), nil
}

// ForEachByStatus snapshots matching records first so fn may write to the store.
func (s *InMemory) ForEachByStatus(ctx context.Context, status models.ClaimStatus, fn func(*models.ShadowUser) error) error {
	s.mu.RLock()
	var snapshot []*models.ShadowUser
	for _, key := range s.order {
		if rec := s.records[key]; rec.ClaimStatus == status {
			snapshot = append(snapshot, clone(rec))
		}
	}
	s.mu.RUnlock()

	for _, rec := range snapshot {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return nil
}

func (s *InMemory) UpdateClaim(_ context.Context, key models.Key, update models.ClaimUpdate, expected ...models.ClaimStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[key]
	if !ok {
		return sentinel.ErrNotFound
	}
	if len(expected) > 0 && !slices.Contains(expected, rec.ClaimStatus) {
		return fmt.Errorf("shadow user %s is %s: %w", key, rec.ClaimStatus, sentinel.ErrConflict)
	}
	update.Apply(rec, s.now())
	return nil
}

func clone(rec *models.ShadowUser) *models.ShadowUser {
	c := *rec
	c.MatchedUserIDs = append([]string(nil), rec.MatchedUserIDs...)
	if rec.ClaimedOn != nil {
		t := *rec.ClaimedOn
		c.ClaimedOn = &t
	}
	return &c
}
