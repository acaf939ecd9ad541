// Package lock provides per-key advisory locks around shadow record reconciliation.
package lock

import (
	"context"
	"sync"
)

type slot struct {
	held chan struct{}
	refs int
}

// InMemory serialises work per key within one process.
type InMemory struct {
	mu    sync.Mutex
	slots map[string]*slot
}

// NewInMemory creates a process-local locker.
func NewInMemory() *InMemory {
	return &InMemory{slots: make(map[string]*slot)}
}

// Lock blocks until key is free or ctx is done.
func (l *InMemory) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	s, ok := l.slots[key]
	if !ok {
		s = &slot{held: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	l.mu.Unlock()

	select {
	case s.held <- struct{}{}:
	case <-ctx.Done():
		l.release(key, s)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.held
			l.release(key, s)
		})
	}, nil
}

func (l *InMemory) release(key string, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}
