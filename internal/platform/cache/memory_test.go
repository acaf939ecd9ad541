package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rosterclaim/pkg/platform/sentinel"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func TestInMemoryWriteOnce(t *testing.T) {
	ctx := context.Background()
	c := NewInMemory("org", time.Minute)

	_, err := c.Get(ctx, "ntp")
	require.ErrorIs(t, err, sentinel.ErrNotFound)

	got, err := c.SetIfAbsent(ctx, "ntp", "ROOT1")
	require.NoError(t, err)
	assert.Equal(t, "ROOT1", got)

	got, err = c.SetIfAbsent(ctx, "ntp", "ROOT2")
	require.NoError(t, err)
	assert.Equal(t, "ROOT1", got, "first writer wins")

	got, err = c.Get(ctx, "ntp")
	require.NoError(t, err)
	assert.Equal(t, "ROOT1", got)
}

func TestInMemoryExpiry(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewInMemory("org", time.Minute, WithClock(clock.Now))

	_, err := c.SetIfAbsent(ctx, "ntp", "ROOT1")
	require.NoError(t, err)

	clock.Advance(time.Minute)
	_, err = c.Get(ctx, "ntp")
	require.ErrorIs(t, err, sentinel.ErrNotFound)

	got, err := c.SetIfAbsent(ctx, "ntp", "ROOT2")
	require.NoError(t, err)
	assert.Equal(t, "ROOT2", got, "expired entry can be replaced")
}

func TestInMemoryBounded(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewInMemory("org", time.Hour, WithClock(clock.Now), WithMaxEntries(2))

	for i := 0; i < 3; i++ {
		_, err := c.SetIfAbsent(ctx, fmt.Sprintf("k%d", i), "v")
		require.NoError(t, err)
		clock.Advance(time.Second)
	}

	assert.Equal(t, 2, c.Len())
	_, err := c.Get(ctx, "k0")
	assert.ErrorIs(t, err, sentinel.ErrNotFound, "oldest entry evicted")
	_, err = c.Get(ctx, "k2")
	assert.NoError(t, err)
}

func TestInMemoryConcurrentSetIfAbsent(t *testing.T) {
	ctx := context.Background()
	c := NewInMemory("org", time.Minute)

	var wg sync.WaitGroup
	results := make([]string, 20)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := c.SetIfAbsent(ctx, "key", fmt.Sprintf("v%d", i))
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}
	wg.Wait()

	for _, v := range results {
		assert.Equal(t, results[0], v)
	}
}
