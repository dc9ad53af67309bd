package window

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"cashdesk/internal/ratelimit/models"
)

const testWindow = time.Minute

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
	ctx   context.Context
	base  time.Time
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemoryStore()
	s.ctx = context.Background()
	s.base = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
}

func (s *InMemoryStoreSuite) window(principal string, offset time.Duration) models.Window {
	return models.WindowFor(principal, s.base.Add(offset), testWindow)
}

func (s *InMemoryStoreSuite) TestIncrement() {
	s.Run("counts are post-increment", func() {
		for want := 1; want <= 3; want++ {
			got, err := s.store.Increment(s.ctx, s.window("alice", 0))
			s.Require().NoError(err)
			s.Equal(want, got)
		}
	})

	s.Run("principals are isolated", func() {
		got, err := s.store.Increment(s.ctx, s.window("bob", 0))
		s.Require().NoError(err)
		s.Equal(1, got)
	})

	s.Run("next window starts from one and drops the stale one", func() {
		got, err := s.store.Increment(s.ctx, s.window("alice", testWindow))
		s.Require().NoError(err)
		s.Equal(1, got)
		s.Equal(2, s.store.Len(), "alice's previous window should be discarded")
	})

	s.Run("delimiter in principal cannot alias another key", func() {
		got, err := s.store.Increment(s.ctx, s.window("carol:1", 0))
		s.Require().NoError(err)
		s.Equal(1, got)
	})
}

func (s *InMemoryStoreSuite) TestPrune() {
	_, err := s.store.Increment(s.ctx, s.window("alice", 0))
	s.Require().NoError(err)
	_, err = s.store.Increment(s.ctx, s.window("bob", 30*time.Second))
	s.Require().NoError(err)

	removed, err := s.store.Prune(s.ctx, s.base.Add(30*time.Second))
	s.Require().NoError(err)
	s.Equal(0, removed, "windows still open must survive")

	removed, err = s.store.Prune(s.ctx, s.base.Add(testWindow))
	s.Require().NoError(err)
	s.Equal(2, removed)
	s.Equal(0, s.store.Len())
}

func (s *InMemoryStoreSuite) TestConcurrentIncrements() {
	const goroutines = 100
	w := s.window("alice", 0)

	var wg sync.WaitGroup
	seen := make([]int, goroutines)
	for i := range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := s.store.Increment(s.ctx, w)
			s.NoError(err)
			seen[i] = n
		}()
	}
	wg.Wait()

	unique := make(map[int]struct{}, goroutines)
	for _, n := range seen {
		unique[n] = struct{}{}
	}
	s.Len(unique, goroutines, "every caller must observe a distinct count")
}
