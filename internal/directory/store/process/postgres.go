package process

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"rosterclaim/pkg/platform/sentinel"
)

// PostgresStore reads bulk_upload_process rows.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed process store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Save records the telemetry context of a process.
func (s *PostgresStore) Save(ctx context.Context, processID string, telemetryContext map[string]string) error {
	raw, err := json.Marshal(telemetryContext)
	if err != nil {
		return fmt.Errorf("marshal telemetry context: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO bulk_upload_process (id, telemetry_context) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET telemetry_context = EXCLUDED.telemetry_context
	`, processID, string(raw))
	if err != nil {
		return fmt.Errorf("save process: %w", err)
	}
	return nil
}

func (s *PostgresStore) TelemetryContext(ctx context.Context, processID string) (map[string]string, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT telemetry_context FROM bulk_upload_process WHERE id = $1`, processID,
	).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("read process telemetry context: %w", err)
	}
	tc := map[string]string{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &tc); err != nil {
			return nil, fmt.Errorf("unmarshal telemetry context: %w", err)
		}
	}
	return tc, nil
}
