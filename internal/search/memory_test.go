package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"rosterclaim/pkg/platform/sentinel"
)

type InMemorySuite struct {
	suite.Suite
	index *InMemory
	ctx   context.Context
}

func TestInMemorySuite(t *testing.T) {
	suite.Run(t, new(InMemorySuite))
}

func (s *InMemorySuite) SetupTest() {
	s.index = NewInMemory()
	s.ctx = context.Background()
	s.seed("U1", Document{FieldEmail: "asha@x.org", FieldPhone: "", FieldRootOrgID: "CUST", FieldStatus: 1})
	s.seed("U2", Document{FieldEmail: "", FieldPhone: "9999", FieldRootOrgID: "CUST", FieldStatus: 1})
	s.seed("U3", Document{FieldEmail: "asha@x.org", FieldPhone: "", FieldRootOrgID: "ROOT1", FieldStatus: 1})
}

func (s *InMemorySuite) seed(id string, doc Document) {
	s.Require().NoError(s.index.Upsert(s.ctx, IndexUser, id, doc))
}

func ids(docs []Document) []string {
	out := make([]string, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.String(FieldID))
	}
	return out
}

func (s *InMemorySuite) TestSearch() {
	s.Run("filters are conjunctive and or terms disjunctive", func() {
		hits, err := s.index.Search(s.ctx, Query{
			Index:   IndexUser,
			Filters: map[string]any{FieldRootOrgID: "CUST"},
			Or:      map[string]any{FieldEmail: "asha@x.org", FieldPhone: "9999"},
		})
		s.Require().NoError(err)
		s.Equal([]string{"U1", "U2"}, ids(hits))
	})

	s.Run("numeric filters compare across int and float forms", func() {
		hits, err := s.index.Search(s.ctx, Query{
			Index:   IndexUser,
			Filters: map[string]any{FieldStatus: float64(1), FieldRootOrgID: "ROOT1"},
		})
		s.Require().NoError(err)
		s.Equal([]string{"U3"}, ids(hits))
	})

	s.Run("projection keeps only requested fields", func() {
		hits, err := s.index.Search(s.ctx, Query{
			Index:   IndexUser,
			Filters: map[string]any{FieldRootOrgID: "ROOT1"},
			Fields:  []string{FieldID, FieldEmail},
		})
		s.Require().NoError(err)
		s.Require().Len(hits, 1)
		s.Len(hits[0], 2)
		s.Equal("asha@x.org", hits[0].String(FieldEmail))
	})

	s.Run("limit caps hits", func() {
		hits, err := s.index.Search(s.ctx, Query{Index: IndexUser, Limit: 1})
		s.Require().NoError(err)
		s.Equal([]string{"U1"}, ids(hits))
	})

	s.Run("unknown index yields no hits", func() {
		hits, err := s.index.Search(s.ctx, Query{Index: IndexOrganisation})
		s.Require().NoError(err)
		s.Empty(hits)
	})

	s.Run("missing index name is an error", func() {
		_, err := s.index.Search(s.ctx, Query{})
		s.Error(err)
	})
}

func (s *InMemorySuite) TestUpsertMerges() {
	s.Require().NoError(s.index.Upsert(s.ctx, IndexUser, "U1", Document{FieldFirstName: "Asha"}))

	doc, err := s.index.GetByID(s.ctx, IndexUser, "U1")
	s.Require().NoError(err)
	s.Equal("Asha", doc.String(FieldFirstName))
	s.Equal("asha@x.org", doc.String(FieldEmail))

	hits, err := s.index.Search(s.ctx, Query{Index: IndexUser})
	s.Require().NoError(err)
	s.Equal([]string{"U1", "U2", "U3"}, ids(hits), "merge keeps original position")
}

func (s *InMemorySuite) TestGetByIDNotFound() {
	_, err := s.index.GetByID(s.ctx, IndexUser, "missing")
	s.ErrorIs(err, sentinel.ErrNotFound)
}
