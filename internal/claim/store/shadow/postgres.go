package shadow

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"rosterclaim/internal/claim/models"
	dirmodels "rosterclaim/internal/directory/models"
	"rosterclaim/pkg/platform/sentinel"
)

const shadowColumns = `channel, user_ext_id, name, email, phone, org_ext_id, user_status,
	added_by, process_id, claim_status, user_ids, user_id, claimed_on, created_on, updated_on`

// PostgresStore persists shadow records in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed shadow store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Save inserts or replaces a record. It is the ingestion-side write.
func (s *PostgresStore) Save(ctx context.Context, rec *models.ShadowUser) error {
	if err := rec.Key().Validate(); err != nil {
		return fmt.Errorf("save shadow user: %w", err)
	}
	query := `
		INSERT INTO shadow_user (` + shadowColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, now(), now())
		ON CONFLICT (channel, user_ext_id) DO UPDATE SET
			name = EXCLUDED.name,
			email = EXCLUDED.email,
			phone = EXCLUDED.phone,
			org_ext_id = EXCLUDED.org_ext_id,
			user_status = EXCLUDED.user_status,
			added_by = EXCLUDED.added_by,
			process_id = EXCLUDED.process_id,
			claim_status = EXCLUDED.claim_status,
			user_ids = EXCLUDED.user_ids,
			user_id = EXCLUDED.user_id,
			claimed_on = EXCLUDED.claimed_on,
			updated_on = now()
	`
	_, err := s.db.ExecContext(ctx, query,
		rec.Channel, rec.UserExtID, rec.Name, rec.Email, rec.Phone, rec.OrgExtID, int(rec.UserStatus),
		rec.AddedBy, rec.ProcessID, int(rec.ClaimStatus), pq.Array(nonNil(rec.MatchedUserIDs)),
		nullString(rec.UserID), rec.ClaimedOn,
	)
	if err != nil {
		return fmt.Errorf("save shadow user: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByKey(ctx context.Context, key models.Key) (*models.ShadowUser, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+shadowColumns+` FROM shadow_user WHERE channel = $1 AND user_ext_id = $2`,
		key.Channel, key.UserExtID)
	rec, err := scanShadow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find shadow user %s: %w", key, err)
	}
	return rec, nil
}

// ForEachByStatus streams matching rows. Rows are fully read before fn runs on
// each so callbacks never hold a connection that a nested write needs.
func (s *PostgresStore) ForEachByStatus(ctx context.Context, status models.ClaimStatus, fn func(*models.ShadowUser) error) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+shadowColumns+` FROM shadow_user WHERE claim_status = $1 ORDER BY created_on, channel, user_ext_id`,
		int(status))
	if err != nil {
		return fmt.Errorf("list shadow users by status: %w", err)
	}
	var batch []*models.ShadowUser
	for rows.Next() {
		rec, err := scanShadow(rows)
		if err != nil {
			rows.Close()
			return fmt.Errorf("scan shadow user: %w", err)
		}
		batch = append(batch, rec)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("iterate shadow users: %w", err)
	}
	rows.Close()

	for _, rec := range batch {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return nil
}

func (s *PostgresStore) UpdateClaim(ctx context.Context, key models.Key, update models.ClaimUpdate, expected ...models.ClaimStatus) error {
	var (
		userID    sql.NullString
		claimedOn sql.NullTime
		matched   = []string{}
	)
	switch update.Status {
	case models.ClaimStatusClaimed:
		userID = nullString(update.UserID)
		claimedOn = sql.NullTime{Time: update.ClaimedOn, Valid: true}
	case models.ClaimStatusMultiMatch:
		matched = nonNil(update.MatchedUserIDs)
	}
	expectedCodes := make([]int64, 0, len(expected))
	for _, st := range expected {
		expectedCodes = append(expectedCodes, int64(st))
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE shadow_user SET
			claim_status = $3::int,
			user_id = CASE WHEN $3::int = $8::int THEN $4::text WHEN $3::int = $9::int THEN NULL ELSE user_id END,
			claimed_on = CASE WHEN $3::int = $8::int THEN $5::timestamptz ELSE claimed_on END,
			user_ids = CASE WHEN $3::int = $9::int THEN $6::text[] ELSE user_ids END,
			process_id = COALESCE(NULLIF($7::text, ''), process_id),
			updated_on = now()
		WHERE channel = $1 AND user_ext_id = $2
			AND (cardinality($10::int[]) = 0 OR claim_status = ANY($10::int[]))
	`, key.Channel, key.UserExtID, int(update.Status), userID, claimedOn, pq.Array(matched),
		update.ProcessID, int(models.ClaimStatusClaimed), int(models.ClaimStatusMultiMatch),
		pq.Array(expectedCodes))
	if err != nil {
		return fmt.Errorf("update claim for %s: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update claim for %s: %w", key, err)
	}
	if n == 1 {
		return nil
	}

	current, err := s.FindByKey(ctx, key)
	if err != nil {
		return err
	}
	return fmt.Errorf("shadow user %s is %s: %w", key, current.ClaimStatus, sentinel.ErrConflict)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanShadow(row scanner) (*models.ShadowUser, error) {
	var (
		rec         models.ShadowUser
		userStatus  int
		claimStatus int
		matched     pq.StringArray
		userID      sql.NullString
		claimedOn   sql.NullTime
	)
	if err := row.Scan(&rec.Channel, &rec.UserExtID, &rec.Name, &rec.Email, &rec.Phone, &rec.OrgExtID,
		&userStatus, &rec.AddedBy, &rec.ProcessID, &claimStatus, &matched, &userID, &claimedOn,
		&rec.CreatedOn, &rec.UpdatedOn); err != nil {
		return nil, err
	}
	rec.UserStatus = dirmodels.UserStatus(userStatus)
	rec.ClaimStatus = models.ClaimStatus(claimStatus)
	if len(matched) > 0 {
		rec.MatchedUserIDs = []string(matched)
	}
	rec.UserID = userID.String
	if claimedOn.Valid {
		t := claimedOn.Time
		rec.ClaimedOn = &t
	}
	return &rec, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
