package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"rosterclaim/pkg/platform/sentinel"
)

const keyPrefix = "rosterclaim:cache:"

// Redis shares cached lookups across service instances. SETNX gives the same
// first-writer-wins semantics as InMemory.
type Redis struct {
	client *redis.Client
	name   string
	ttl    time.Duration
}

// NewRedis constructs a Redis-backed cache namespaced by name.
func NewRedis(client *redis.Client, name string, ttl time.Duration) *Redis {
	return &Redis{client: client, name: name, ttl: ttl}
}

func (r *Redis) key(key string) string {
	return keyPrefix + r.name + ":" + key
}

func (r *Redis) Get(ctx context.Context, key string) (string, error) {
	val, err := r.client.Get(ctx, r.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		recordLookup(r.name, false)
		return "", sentinel.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("cache get %s: %w", r.name, err)
	}
	recordLookup(r.name, true)
	return val, nil
}

func (r *Redis) SetIfAbsent(ctx context.Context, key, value string) (string, error) {
	k := r.key(key)
	ok, err := r.client.SetNX(ctx, k, value, r.ttl).Result()
	if err != nil {
		return "", fmt.Errorf("cache set %s: %w", r.name, err)
	}
	if ok {
		return value, nil
	}
	existing, err := r.client.Get(ctx, k).Result()
	if errors.Is(err, redis.Nil) {
		// expired between SETNX and GET
		return value, nil
	}
	if err != nil {
		return "", fmt.Errorf("cache get %s: %w", r.name, err)
	}
	return existing, nil
}
