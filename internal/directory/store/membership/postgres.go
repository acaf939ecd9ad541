package membership

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"rosterclaim/internal/directory/models"
	"rosterclaim/pkg/platform/sentinel"
)

const uniqueViolation = "23505"

// PostgresStore persists memberships in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed membership store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID string) ([]*models.Membership, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, organisation_id, roles, hashtag_id, is_deleted,
			org_join_date, updated_by, updated_date
		FROM user_organisation
		WHERE user_id = $1
		ORDER BY org_join_date NULLS FIRST, id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	defer rows.Close()

	var out []*models.Membership
	for rows.Next() {
		var (
			m        models.Membership
			roles    pq.StringArray
			joinDate sql.NullTime
			updated  sql.NullTime
		)
		if err := rows.Scan(&m.ID, &m.UserID, &m.OrganisationID, &roles, &m.HashTagID, &m.IsDeleted,
			&joinDate, &m.UpdatedBy, &updated); err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		m.Roles = []string(roles)
		if joinDate.Valid {
			m.OrgJoinDate = joinDate.Time
		}
		if updated.Valid {
			t := updated.Time
			m.UpdatedDate = &t
		}
		out = append(out, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate memberships: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Insert(ctx context.Context, m *models.Membership) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_organisation (id, user_id, organisation_id, roles, hashtag_id,
			is_deleted, org_join_date, updated_by, updated_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, m.ID, m.UserID, m.OrganisationID, pq.Array(m.Roles), m.HashTagID,
		m.IsDeleted, m.OrgJoinDate, m.UpdatedBy, m.UpdatedDate)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert membership: %w", err)
	}
	return nil
}

func (s *PostgresStore) SoftDelete(ctx context.Context, id, updatedBy string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE user_organisation
		SET is_deleted = TRUE, updated_by = $2, updated_date = $3
		WHERE id = $1
	`, id, updatedBy, at)
	if err != nil {
		return fmt.Errorf("soft delete membership: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("soft delete membership: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
