package search

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentAccessors(t *testing.T) {
	var doc Document
	require.NoError(t, json.Unmarshal([]byte(`{
		"id": "U1",
		"flagsValue": 4,
		"isDeleted": false,
		"organisations": [{"id": "M1", "organisationId": "ORG1"}]
	}`), &doc))

	assert.Equal(t, "U1", doc.String(FieldID))
	assert.Equal(t, 4, doc.Int(FieldFlagsValue))
	assert.False(t, doc.Bool(FieldIsDeleted))
	assert.Equal(t, "", doc.String("missing"))

	orgs := doc.Documents(FieldOrganisations)
	require.Len(t, orgs, 1)
	assert.Equal(t, "ORG1", orgs[0].String(FieldOrganisationID))
}

func TestBuildSearchSQL(t *testing.T) {
	sql, args, err := buildSearchSQL(Query{
		Index:   IndexUser,
		Filters: map[string]any{FieldRootOrgID: "CUST"},
		Or:      map[string]any{FieldPhone: "9999", FieldEmail: "a@x.org"},
	})
	require.NoError(t, err)

	assert.Equal(t,
		`SELECT doc FROM search_documents WHERE index_name = $1 AND doc @> $2::jsonb`+
			` AND (doc @> $3::jsonb OR doc @> $4::jsonb) ORDER BY seq LIMIT $5`,
		sql)
	assert.Equal(t, []any{
		IndexUser,
		`{"rootOrgId":"CUST"}`,
		`{"email":"a@x.org"}`,
		`{"phone":"9999"}`,
		DefaultLimit,
	}, args)
}

func TestBuildSearchSQLWithoutOr(t *testing.T) {
	sql, args, err := buildSearchSQL(Query{Index: IndexOrganisation, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, `SELECT doc FROM search_documents WHERE index_name = $1 AND doc @> $2::jsonb ORDER BY seq LIMIT $3`, sql)
	assert.Equal(t, []any{IndexOrganisation, `{}`, 1}, args)
}
