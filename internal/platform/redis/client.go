// Package redis opens the optional Redis connection shared by the caches and
// the per-record key locks.
package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"rosterclaim/internal/platform/config"
)

// Client is a go-redis client that has answered a PING.
type Client struct {
	*redis.Client
}

// New connects to cfg.URL. An empty URL means Redis is not deployed and yields
// a nil client with no error; callers fall back to in-process caches and locks.
func New(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns
	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout

	c := &Client{Client: redis.NewClient(opts)}
	if err := c.Health(ctx); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

// Health pings the server.
func (c *Client) Health(ctx context.Context) error {
	if err := c.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}
