// Package ports declares the stores and services the claim engine consumes.
package ports

import (
	"context"
	"time"

	"rosterclaim/internal/claim/models"
	dirmodels "rosterclaim/internal/directory/models"
)

// ShadowUserStore persists shadow records and their claim outcome.
type ShadowUserStore interface {
	// FindByKey returns sentinel.ErrNotFound for unknown keys.
	FindByKey(ctx context.Context, key models.Key) (*models.ShadowUser, error)
	// ForEachByStatus calls fn for every record in status, in storage order.
	// A non-nil error from fn stops the iteration and is returned.
	ForEachByStatus(ctx context.Context, status models.ClaimStatus, fn func(*models.ShadowUser) error) error
	// UpdateClaim applies update only while the record is in one of expected.
	// A record in any other state yields sentinel.ErrConflict.
	UpdateClaim(ctx context.Context, key models.Key, update models.ClaimUpdate, expected ...models.ClaimStatus) error
}

// UserStore is the canonical user table.
type UserStore interface {
	FindByID(ctx context.Context, id string) (*dirmodels.User, error)
	Update(ctx context.Context, id string, update dirmodels.UserUpdate) error
}

// MembershipStore is the user-organisation table.
type MembershipStore interface {
	ListByUser(ctx context.Context, userID string) ([]*dirmodels.Membership, error)
	Insert(ctx context.Context, m *dirmodels.Membership) error
	SoftDelete(ctx context.Context, id, updatedBy string, at time.Time) error
}

// ExternalIdentityStore links external ids to canonical users.
type ExternalIdentityStore interface {
	Upsert(ctx context.Context, link *dirmodels.ExternalIdentity) error
}

// OrganisationStore reads organisation records.
type OrganisationStore interface {
	FindByID(ctx context.Context, id string) (*dirmodels.Organisation, error)
}

// SettingsStore reads system settings by id.
type SettingsStore interface {
	Get(ctx context.Context, id string) (string, error)
}

// ProcessContextLookup returns the telemetry context recorded for a bulk-upload process.
type ProcessContextLookup interface {
	TelemetryContext(ctx context.Context, processID string) (map[string]string, error)
}

// Cache is a write-once, time-boxed string cache.
type Cache interface {
	// Get returns sentinel.ErrNotFound on a miss.
	Get(ctx context.Context, key string) (string, error)
	// SetIfAbsent stores value unless a live entry exists and returns the cached value.
	SetIfAbsent(ctx context.Context, key, value string) (string, error)
}

// KeyLocker serialises work on one shadow record across workers and instances.
type KeyLocker interface {
	// Lock blocks until key is held or ctx is done.
	Lock(ctx context.Context, key string) (unlock func(), err error)
}
