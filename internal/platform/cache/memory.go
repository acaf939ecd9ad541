package cache

import (
	"context"
	"sync"
	"time"

	"rosterclaim/pkg/platform/sentinel"
)

const defaultMaxEntries = 10000

type entry struct {
	value    string
	storedAt time.Time
}

// InMemory is a bounded TTL cache. The first value stored for a key wins until
// it expires.
type InMemory struct {
	mu         sync.Mutex
	name       string
	entries    map[string]entry
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
}

// Option configures an InMemory cache.
type Option func(*InMemory)

// WithMaxEntries bounds the number of live keys.
func WithMaxEntries(n int) Option {
	return func(c *InMemory) {
		if n > 0 {
			c.maxEntries = n
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *InMemory) {
		if now != nil {
			c.now = now
		}
	}
}

// NewInMemory creates a cache whose entries live for ttl. A non-positive ttl never expires.
func NewInMemory(name string, ttl time.Duration, opts ...Option) *InMemory {
	c := &InMemory{
		name:       name,
		entries:    make(map[string]entry),
		ttl:        ttl,
		maxEntries: defaultMaxEntries,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached value or sentinel.ErrNotFound when absent or expired.
func (c *InMemory) Get(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if ok && c.expired(e) {
		delete(c.entries, key)
		ok = false
	}
	recordLookup(c.name, ok)
	if !ok {
		return "", sentinel.ErrNotFound
	}
	return e.value, nil
}

// SetIfAbsent stores value unless a live entry exists, and returns whichever value is cached.
func (c *InMemory) SetIfAbsent(_ context.Context, key, value string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok && !c.expired(e) {
		return e.value, nil
	}
	if len(c.entries) >= c.maxEntries {
		c.evict()
	}
	c.entries[key] = entry{value: value, storedAt: c.now()}
	return value, nil
}

// Len reports the number of stored entries, including expired ones not yet evicted.
func (c *InMemory) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *InMemory) expired(e entry) bool {
	return c.ttl > 0 && c.now().Sub(e.storedAt) >= c.ttl
}

// evict drops expired entries, then the oldest one if the cache is still full.
// Callers hold mu.
func (c *InMemory) evict() {
	var oldestKey string
	var oldest time.Time
	for k, e := range c.entries {
		if c.expired(e) {
			delete(c.entries, k)
			continue
		}
		if oldestKey == "" || e.storedAt.Before(oldest) {
			oldestKey, oldest = k, e.storedAt
		}
	}
	if len(c.entries) >= c.maxEntries && oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}
