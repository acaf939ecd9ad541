package ports

//go:generate mockgen -source=search.go -destination=mocks/search_mocks.go -package=mocks

import (
	"context"

	"rosterclaim/internal/search"
)

// SearchIndex is the eventually-consistent secondary index over users and organisations.
type SearchIndex interface {
	Search(ctx context.Context, q search.Query) ([]search.Document, error)
	// GetByID returns sentinel.ErrNotFound for unknown ids.
	GetByID(ctx context.Context, index, id string) (search.Document, error)
	Upsert(ctx context.Context, index, id string, doc search.Document) error
}
