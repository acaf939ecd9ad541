package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"rosterclaim/internal/directory/models"
	"rosterclaim/pkg/platform/sentinel"
)

// PostgresStore persists canonical users in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed user store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Save inserts or replaces a user.
func (s *PostgresStore) Save(ctx context.Context, u *models.User) error {
	query := `
		INSERT INTO users (id, first_name, email, phone, status, is_deleted, root_org_id,
			channel, flags_value, user_type, updated_by, updated_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			first_name = EXCLUDED.first_name,
			email = EXCLUDED.email,
			phone = EXCLUDED.phone,
			status = EXCLUDED.status,
			is_deleted = EXCLUDED.is_deleted,
			root_org_id = EXCLUDED.root_org_id,
			channel = EXCLUDED.channel,
			flags_value = EXCLUDED.flags_value,
			user_type = EXCLUDED.user_type,
			updated_by = EXCLUDED.updated_by,
			updated_date = EXCLUDED.updated_date
	`
	_, err := s.db.ExecContext(ctx, query,
		u.ID, u.FirstName, u.Email, u.Phone, int(u.Status), u.IsDeleted, u.RootOrgID,
		u.Channel, u.FlagsValue, u.UserType, u.UpdatedBy, u.UpdatedDate,
	)
	if err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id string) (*models.User, error) {
	var (
		u       models.User
		status  int
		updated sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, first_name, email, phone, status, is_deleted, root_org_id,
			channel, flags_value, user_type, updated_by, updated_date
		FROM users WHERE id = $1
	`, id).Scan(
		&u.ID, &u.FirstName, &u.Email, &u.Phone, &status, &u.IsDeleted, &u.RootOrgID,
		&u.Channel, &u.FlagsValue, &u.UserType, &u.UpdatedBy, &updated,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	u.Status = models.UserStatus(status)
	if updated.Valid {
		t := updated.Time
		u.UpdatedDate = &t
	}
	return &u, nil
}

// Update writes the claim-owned attribute subset. flags_value is only written
// when the update carries one.
func (s *PostgresStore) Update(ctx context.Context, id string, update models.UserUpdate) error {
	var flags sql.NullInt64
	if update.FlagsValue != nil {
		flags = sql.NullInt64{Int64: int64(*update.FlagsValue), Valid: true}
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET
			first_name = $2,
			flags_value = COALESCE($3, flags_value),
			status = $4,
			is_deleted = $5,
			user_type = $6,
			channel = $7,
			root_org_id = $8,
			updated_by = $9,
			updated_date = $10
		WHERE id = $1
	`, id, update.FirstName, flags, int(update.Status), update.IsDeleted, update.UserType,
		update.Channel, update.RootOrgID, update.UpdatedBy, update.UpdatedDate)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
