//go:build integration

package organisation_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rosterclaim/internal/directory/models"
	"rosterclaim/internal/directory/store/organisation"
	"rosterclaim/pkg/platform/sentinel"
	"rosterclaim/pkg/testutil/containers"
)

func TestPostgresStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()
	pg := containers.GetManager().GetPostgres(t)
	require.NoError(t, pg.TruncateTables(ctx, "organisation"))
	store := organisation.NewPostgres(pg.DB)

	_, err := store.FindByID(ctx, "ROOT1")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)

	org := &models.Organisation{ID: "ROOT1", Channel: "ntp", IsRootOrg: true, HashTagID: "HT1"}
	require.NoError(t, store.Save(ctx, org))
	org.HashTagID = "HT2"
	require.NoError(t, store.Save(ctx, org))

	got, err := store.FindByID(ctx, "ROOT1")
	require.NoError(t, err)
	assert.Equal(t, "HT2", got.HashTagID)
	assert.True(t, got.IsRootOrg)
}
