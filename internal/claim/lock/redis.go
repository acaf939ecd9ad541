package lock

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix         = "rosterclaim:lock:"
	defaultRetryDelay = 50 * time.Millisecond
)

// releaseScript deletes the lock only if this holder still owns it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// renewScript extends the lease only if this holder still owns it.
var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// Redis is a lease-based lock shared by every service instance. The lease is
// renewed every third of its length while the holder runs, so long work keeps
// the key; a holder that dies releases it when the lease expires.
type Redis struct {
	client     *redis.Client
	lease      time.Duration
	retryDelay time.Duration
	logger     *slog.Logger
}

// RedisOption configures a Redis locker.
type RedisOption func(*Redis)

// WithRetryDelay sets how long Lock waits between acquisition attempts.
func WithRetryDelay(d time.Duration) RedisOption {
	return func(r *Redis) {
		if d > 0 {
			r.retryDelay = d
		}
	}
}

// WithLogger sets the logger used for release failures.
func WithLogger(logger *slog.Logger) RedisOption {
	return func(r *Redis) {
		r.logger = logger
	}
}

// NewRedis constructs a Redis-backed locker whose leases last lease.
func NewRedis(client *redis.Client, lease time.Duration, opts ...RedisOption) *Redis {
	r := &Redis{
		client:     client,
		lease:      lease,
		retryDelay: defaultRetryDelay,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Redis) Lock(ctx context.Context, key string) (func(), error) {
	k := keyPrefix + key
	token := uuid.NewString()
	for {
		ok, err := r.client.SetNX(ctx, k, token, r.lease).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			stop := make(chan struct{})
			done := make(chan struct{})
			go r.renew(k, token, stop, done)
			var once sync.Once
			return func() {
				once.Do(func() {
					close(stop)
					<-done
					r.release(k, token)
				})
			}, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(r.retryDelay):
		}
	}
}

func (r *Redis) renew(key, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	interval := r.lease / 3
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			held, err := renewScript.Run(ctx, r.client, []string{key}, token, r.lease.Milliseconds()).Int()
			cancel()
			if err != nil {
				r.logger.Warn("renew lock failed", "key", key, "error", err)
				continue
			}
			if held == 0 {
				r.logger.Warn("lock lost before release", "key", key)
				return
			}
		}
	}
}

func (r *Redis) release(key, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := releaseScript.Run(ctx, r.client, []string{key}, token).Err(); err != nil {
		r.logger.Warn("release lock failed", "key", key, "error", err)
	}
}
