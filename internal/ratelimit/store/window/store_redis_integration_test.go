//go:build integration

package window_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"cashdesk/internal/ratelimit/models"
	"cashdesk/internal/ratelimit/store/window"
	"cashdesk/pkg/testutil/containers"
)

type RedisStoreIntegrationSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *window.RedisStore
}

func TestRedisStoreIntegrationSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisStoreIntegrationSuite))
}

func (s *RedisStoreIntegrationSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.store = window.NewRedisStore(s.redis.Client, "")
}

func (s *RedisStoreIntegrationSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisStoreIntegrationSuite) TestConcurrentIncrementsAreAtomic() {
	ctx := context.Background()
	w := models.WindowFor("principal-a", time.Now(), time.Minute)
	const workers = 40

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.store.Increment(ctx, w)
			s.NoError(err)
		}()
	}
	wg.Wait()

	count, err := s.store.Increment(ctx, w)
	s.Require().NoError(err)
	s.Equal(workers+1, count)
}

func (s *RedisStoreIntegrationSuite) TestKeyExpiresWithWindow() {
	ctx := context.Background()
	w := models.WindowFor("principal-b", time.Now(), time.Second)

	_, err := s.store.Increment(ctx, w)
	s.Require().NoError(err)

	s.Eventually(func() bool {
		n, err := s.redis.Client.Exists(ctx, "cashdesk:ratelimit:"+w.Key()).Result()
		return err == nil && n == 0
	}, 5*time.Second, 100*time.Millisecond)
}
