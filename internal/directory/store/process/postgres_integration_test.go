//go:build integration

package process_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rosterclaim/internal/directory/store/process"
	"rosterclaim/pkg/platform/sentinel"
	"rosterclaim/pkg/testutil/containers"
)

func TestPostgresStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()
	pg := containers.GetManager().GetPostgres(t)
	require.NoError(t, pg.TruncateTables(ctx, "bulk_upload_process"))
	store := process.NewPostgres(pg.DB)

	_, err := store.TelemetryContext(ctx, "P1")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)

	require.NoError(t, store.Save(ctx, "P1", map[string]string{"pdata": "bulk-upload", "env": "roster"}))

	got, err := store.TelemetryContext(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"pdata": "bulk-upload", "env": "roster"}, got)
}
