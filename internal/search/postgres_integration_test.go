//go:build integration

package search_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"rosterclaim/internal/search"
	"rosterclaim/pkg/platform/sentinel"
	"rosterclaim/pkg/testutil/containers"
)

type PostgresIndexSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	index    *search.PostgresIndex
}

func TestPostgresIndexSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresIndexSuite))
}

func (s *PostgresIndexSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.index = search.NewPostgres(s.postgres.Pool)
}

func (s *PostgresIndexSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "search_documents"))
}

func (s *PostgresIndexSuite) TestContainmentQueries() {
	ctx := context.Background()
	s.Require().NoError(s.index.Upsert(ctx, search.IndexUser, "U1", search.Document{
		search.FieldEmail: "asha@x.org", search.FieldRootOrgID: "CUST", search.FieldStatus: 1,
	}))
	s.Require().NoError(s.index.Upsert(ctx, search.IndexUser, "U2", search.Document{
		search.FieldPhone: "9999", search.FieldRootOrgID: "CUST", search.FieldStatus: 1,
	}))
	s.Require().NoError(s.index.Upsert(ctx, search.IndexUser, "U3", search.Document{
		search.FieldEmail: "asha@x.org", search.FieldRootOrgID: "OTHER",
	}))

	hits, err := s.index.Search(ctx, search.Query{
		Index:   search.IndexUser,
		Filters: map[string]any{search.FieldRootOrgID: "CUST"},
		Or:      map[string]any{search.FieldEmail: "asha@x.org", search.FieldPhone: "9999"},
		Fields:  []string{search.FieldID, search.FieldStatus},
	})
	s.Require().NoError(err)
	s.Require().Len(hits, 2)
	s.Equal("U1", hits[0].String(search.FieldID))
	s.Equal(1, hits[0].Int(search.FieldStatus))
	s.Equal("U2", hits[1].String(search.FieldID))
}

func (s *PostgresIndexSuite) TestUpsertMergesTopLevelKeys() {
	ctx := context.Background()
	s.Require().NoError(s.index.Upsert(ctx, search.IndexOrganisation, "ORG1", search.Document{
		search.FieldChannel: "ntp", search.FieldIsRootOrg: true,
	}))
	s.Require().NoError(s.index.Upsert(ctx, search.IndexOrganisation, "ORG1", search.Document{
		search.FieldHashTagID: "HT1",
	}))

	doc, err := s.index.GetByID(ctx, search.IndexOrganisation, "ORG1")
	s.Require().NoError(err)
	s.True(doc.Bool(search.FieldIsRootOrg))
	s.Equal("HT1", doc.String(search.FieldHashTagID))

	_, err = s.index.GetByID(ctx, search.IndexOrganisation, "ORG2")
	s.ErrorIs(err, sentinel.ErrNotFound)
}
