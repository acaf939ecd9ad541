package requestcontext

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNowFallsBackToWallClock(t *testing.T) {
	before := time.Now()
	got := Now(context.Background())
	assert.False(t, got.Before(before))
}

func TestPinnedValues(t *testing.T) {
	fixed := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	ctx := WithTime(context.Background(), fixed)
	ctx = WithRequestID(ctx, "req-1")
	ctx = WithTrigger(ctx, "batch")

	assert.Equal(t, fixed, Now(ctx))
	assert.Equal(t, "req-1", RequestID(ctx))
	assert.Equal(t, "batch", Trigger(ctx))
	assert.Empty(t, RequestID(context.Background()))
}
