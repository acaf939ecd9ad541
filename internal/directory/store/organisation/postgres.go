package organisation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"rosterclaim/internal/directory/models"
	"rosterclaim/pkg/platform/sentinel"
)

// PostgresStore reads organisations from PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed organisation store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Save inserts or replaces an organisation.
func (s *PostgresStore) Save(ctx context.Context, org *models.Organisation) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO organisation (id, channel, external_id, is_root_org, hashtag_id)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			channel = EXCLUDED.channel,
			external_id = EXCLUDED.external_id,
			is_root_org = EXCLUDED.is_root_org,
			hashtag_id = EXCLUDED.hashtag_id
	`, org.ID, org.Channel, org.ExternalID, org.IsRootOrg, org.HashTagID)
	if err != nil {
		return fmt.Errorf("save organisation: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id string) (*models.Organisation, error) {
	var org models.Organisation
	err := s.db.QueryRowContext(ctx, `
		SELECT id, channel, external_id, is_root_org, hashtag_id
		FROM organisation WHERE id = $1
	`, id).Scan(&org.ID, &org.Channel, &org.ExternalID, &org.IsRootOrg, &org.HashTagID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find organisation by id: %w", err)
	}
	return &org, nil
}
