package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"rosterclaim/pkg/platform/sentinel"
)

// PostgresStore reads the system_settings table.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed settings store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Set stores a setting. The field column mirrors the id.
func (s *PostgresStore) Set(ctx context.Context, id, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO system_settings (id, field, value) VALUES ($1, $1, $2)
		ON CONFLICT (id) DO UPDATE SET value = EXCLUDED.value
	`, id, value)
	if err != nil {
		return fmt.Errorf("set system setting: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM system_settings WHERE id = $1`, id).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", sentinel.ErrNotFound
		}
		return "", fmt.Errorf("get system setting %s: %w", id, err)
	}
	return value, nil
}
