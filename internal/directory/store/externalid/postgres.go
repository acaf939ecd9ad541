package externalid

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"rosterclaim/internal/directory/models"
	"rosterclaim/pkg/platform/sentinel"
)

// PostgresStore persists external identity links in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed external identity store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Upsert(ctx context.Context, link *models.ExternalIdentity) error {
	query := `
		INSERT INTO usr_external_identity (provider, id_type, external_id, original_provider,
			original_id_type, original_external_id, user_id, created_by, created_on)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (provider, id_type, external_id) DO UPDATE SET
			original_provider = EXCLUDED.original_provider,
			original_id_type = EXCLUDED.original_id_type,
			original_external_id = EXCLUDED.original_external_id,
			user_id = EXCLUDED.user_id,
			created_by = EXCLUDED.created_by,
			created_on = EXCLUDED.created_on
	`
	_, err := s.db.ExecContext(ctx, query,
		link.Provider, link.IDType, link.ExternalID, link.OriginalProvider,
		link.OriginalIDType, link.OriginalExternalID, link.UserID, link.CreatedBy, link.CreatedOn,
	)
	if err != nil {
		return fmt.Errorf("upsert external identity: %w", err)
	}
	return nil
}

// Find returns the link for a normalized triple.
func (s *PostgresStore) Find(ctx context.Context, provider, idType, externalID string) (*models.ExternalIdentity, error) {
	var link models.ExternalIdentity
	err := s.db.QueryRowContext(ctx, `
		SELECT provider, id_type, external_id, original_provider, original_id_type,
			original_external_id, user_id, created_by, created_on
		FROM usr_external_identity
		WHERE provider = $1 AND id_type = $2 AND external_id = $3
	`, provider, idType, externalID).Scan(
		&link.Provider, &link.IDType, &link.ExternalID, &link.OriginalProvider, &link.OriginalIDType,
		&link.OriginalExternalID, &link.UserID, &link.CreatedBy, &link.CreatedOn,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find external identity: %w", err)
	}
	return &link, nil
}
