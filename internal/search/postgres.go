package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"rosterclaim/pkg/platform/sentinel"
)

// PostgresIndex stores documents as jsonb and answers queries with containment
// (@>) predicates, ordered by first insertion.
type PostgresIndex struct {
	pool *pgxpool.Pool
}

// NewPostgres constructs a jsonb-backed index.
func NewPostgres(pool *pgxpool.Pool) *PostgresIndex {
	return &PostgresIndex{pool: pool}
}

func (p *PostgresIndex) Search(ctx context.Context, q Query) ([]Document, error) {
	if q.Index == "" {
		return nil, fmt.Errorf("search index is required")
	}
	sql, args, err := buildSearchSQL(q)
	if err != nil {
		return nil, err
	}
	rows, err := p.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", q.Index, err)
	}
	defer rows.Close()

	var hits []Document
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan %s document: %w", q.Index, err)
		}
		doc, err := decodeDocument(raw)
		if err != nil {
			return nil, err
		}
		hits = append(hits, doc.Project(q.Fields))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s documents: %w", q.Index, err)
	}
	return hits, nil
}

func (p *PostgresIndex) GetByID(ctx context.Context, index, id string) (Document, error) {
	var raw []byte
	err := p.pool.QueryRow(ctx,
		`SELECT doc FROM search_documents WHERE index_name = $1 AND id = $2`,
		index, id,
	).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get %s document: %w", index, err)
	}
	return decodeDocument(raw)
}

// Upsert merges doc's top-level keys over the stored document.
func (p *PostgresIndex) Upsert(ctx context.Context, index, id string, doc Document) error {
	if index == "" || id == "" {
		return fmt.Errorf("index and id are required")
	}
	merged := doc.Project(nil)
	merged[FieldID] = id
	payload, err := json.Marshal(merged)
	if err != nil {
		return fmt.Errorf("encode %s document: %w", index, err)
	}
	_, err = p.pool.Exec(ctx, `
		INSERT INTO search_documents (index_name, id, doc, updated_at)
		VALUES ($1, $2, $3::jsonb, now())
		ON CONFLICT (index_name, id) DO UPDATE SET
			doc = search_documents.doc || EXCLUDED.doc,
			updated_at = now()
	`, index, id, string(payload))
	if err != nil {
		return fmt.Errorf("upsert %s document: %w", index, err)
	}
	return nil
}

func buildSearchSQL(q Query) (string, []any, error) {
	filters := q.Filters
	if filters == nil {
		filters = map[string]any{}
	}
	filterJSON, err := json.Marshal(filters)
	if err != nil {
		return "", nil, fmt.Errorf("encode filters: %w", err)
	}

	var b strings.Builder
	b.WriteString(`SELECT doc FROM search_documents WHERE index_name = $1 AND doc @> $2::jsonb`)
	args := []any{q.Index, string(filterJSON)}

	if len(q.Or) > 0 {
		terms := make([]string, 0, len(q.Or))
		for _, key := range sortedKeys(q.Or) {
			term, err := json.Marshal(map[string]any{key: q.Or[key]})
			if err != nil {
				return "", nil, fmt.Errorf("encode or term %s: %w", key, err)
			}
			args = append(args, string(term))
			terms = append(terms, fmt.Sprintf("doc @> $%d::jsonb", len(args)))
		}
		b.WriteString(" AND (")
		b.WriteString(strings.Join(terms, " OR "))
		b.WriteString(")")
	}

	args = append(args, q.limit())
	fmt.Fprintf(&b, " ORDER BY seq LIMIT $%d", len(args))
	return b.String(), args, nil
}

func decodeDocument(raw []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return doc, nil
}
