package service

import (
	"context"

	"rosterclaim/internal/claim/lock"
)

// testLocker wraps the in-memory locker and can park the first Lock call.
type testLocker struct {
	inner   *lock.InMemory
	entered chan struct{}
	release chan struct{}
}

func newTestLocker() *testLocker {
	return &testLocker{inner: lock.NewInMemory()}
}

func (l *testLocker) Lock(ctx context.Context, key string) (func(), error) {
	if l.entered != nil {
		select {
		case l.entered <- struct{}{}:
		default:
		}
	}
	if l.release != nil {
		select {
		case <-l.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return l.inner.Lock(ctx, key)
}
