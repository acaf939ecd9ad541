//go:build integration

package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"rosterclaim/internal/platform/cache"
	"rosterclaim/pkg/platform/sentinel"
	"rosterclaim/pkg/testutil/containers"
)

type RedisCacheSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	cache *cache.Redis
}

func TestRedisCacheSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisCacheSuite))
}

func (s *RedisCacheSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.redis = mgr.GetRedis(s.T())
	s.cache = cache.NewRedis(s.redis.Client, "org", time.Minute)
}

func (s *RedisCacheSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisCacheSuite) TestFirstWriterWins() {
	ctx := context.Background()

	_, err := s.cache.Get(ctx, "ntp:sch1")
	s.Require().ErrorIs(err, sentinel.ErrNotFound)

	got, err := s.cache.SetIfAbsent(ctx, "ntp:sch1", "SCH1ID")
	s.Require().NoError(err)
	s.Equal("SCH1ID", got)

	got, err = s.cache.SetIfAbsent(ctx, "ntp:sch1", "OTHER")
	s.Require().NoError(err)
	s.Equal("SCH1ID", got)

	ttl, err := s.redis.Client.TTL(ctx, "rosterclaim:cache:org:ntp:sch1").Result()
	s.Require().NoError(err)
	s.Greater(ttl, time.Duration(0))
}
