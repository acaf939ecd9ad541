//go:build integration

package lock_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"rosterclaim/internal/claim/lock"
	"rosterclaim/pkg/testutil/containers"
)

type RedisLockSuite struct {
	suite.Suite
	redis  *containers.RedisContainer
	locker *lock.Redis
}

func TestRedisLockSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisLockSuite))
}

func (s *RedisLockSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.redis = mgr.GetRedis(s.T())
	s.locker = lock.NewRedis(s.redis.Client, 5*time.Second, lock.WithRetryDelay(5*time.Millisecond))
}

func (s *RedisLockSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisLockSuite) TestExclusiveUntilReleased() {
	unlock, err := s.locker.Lock(context.Background(), "ntp:u1")
	s.Require().NoError(err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = s.locker.Lock(ctx, "ntp:u1")
	s.ErrorIs(err, context.DeadlineExceeded)

	unlock()
	again, err := s.locker.Lock(context.Background(), "ntp:u1")
	s.Require().NoError(err)
	again()
}

func (s *RedisLockSuite) TestLeaseRenewedWhileHeld() {
	short := lock.NewRedis(s.redis.Client, 90*time.Millisecond, lock.WithRetryDelay(5*time.Millisecond))
	unlock, err := short.Lock(context.Background(), "ntp:u3")
	s.Require().NoError(err)

	time.Sleep(400 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = short.Lock(ctx, "ntp:u3")
	s.ErrorIs(err, context.DeadlineExceeded)

	unlock()
	exists, err := s.redis.Client.Exists(context.Background(), "rosterclaim:lock:ntp:u3").Result()
	s.Require().NoError(err)
	s.Equal(int64(0), exists)
}

func (s *RedisLockSuite) TestLostLeaseCannotReleaseNewHolder() {
	stale, err := s.locker.Lock(context.Background(), "ntp:u2")
	s.Require().NoError(err)
	s.Require().NoError(s.redis.Client.Del(context.Background(), "rosterclaim:lock:ntp:u2").Err())

	current, err := s.locker.Lock(context.Background(), "ntp:u2")
	s.Require().NoError(err)
	stale()

	exists, err := s.redis.Client.Exists(context.Background(), "rosterclaim:lock:ntp:u2").Result()
	s.Require().NoError(err)
	s.Equal(int64(1), exists)
	current()
}
