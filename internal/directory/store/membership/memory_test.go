package membership

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"rosterclaim/internal/directory/models"
	"rosterclaim/pkg/platform/sentinel"
)

type MembershipStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
}

func TestMembershipStoreSuite(t *testing.T) {
	suite.Run(t, new(MembershipStoreSuite))
}

func (s *MembershipStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func (s *MembershipStoreSuite) TestLifecycle() {
	join := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.Require().NoError(s.store.Insert(s.ctx, &models.Membership{ID: "M1", UserID: "U100", OrganisationID: "A", Roles: []string{models.RolePublic}, OrgJoinDate: join}))
	s.Require().NoError(s.store.Insert(s.ctx, &models.Membership{ID: "M2", UserID: "U100", OrganisationID: "B", OrgJoinDate: join}))
	s.Require().NoError(s.store.Insert(s.ctx, &models.Membership{ID: "M3", UserID: "U200", OrganisationID: "A", OrgJoinDate: join}))

	s.Run("lists a user's memberships in insertion order", func() {
		list, err := s.store.ListByUser(s.ctx, "U100")
		s.Require().NoError(err)
		s.Require().Len(list, 2)
		s.Equal("M1", list[0].ID)
		s.Equal("M2", list[1].ID)
	})

	s.Run("duplicate id conflicts", func() {
		err := s.store.Insert(s.ctx, &models.Membership{ID: "M1", UserID: "U100"})
		s.ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("soft delete stamps the row", func() {
		at := join.Add(time.Hour)
		s.Require().NoError(s.store.SoftDelete(s.ctx, "M1", "admin1", at))

		list, err := s.store.ListByUser(s.ctx, "U100")
		s.Require().NoError(err)
		s.True(list[0].IsDeleted)
		s.Equal("admin1", list[0].UpdatedBy)
		s.Require().NotNil(list[0].UpdatedDate)
		s.Equal(at, *list[0].UpdatedDate)
		s.False(list[0].IsActiveIn("A"))
		s.True(list[1].IsActiveIn("b"))
	})

	s.Run("soft delete of unknown id", func() {
		err := s.store.SoftDelete(s.ctx, "missing", "admin1", join)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}
