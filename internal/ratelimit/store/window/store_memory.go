package window

import (
	"context"
	"sync"
	"time"

	"cashdesk/internal/ratelimit/models"
)

// InMemoryStore implements ports.WindowStore for a single process.
// Stale windows are dropped lazily when the principal's next window opens,
// and in bulk by Prune.
type InMemoryStore struct {
	mu       sync.Mutex
	counters map[string]*counter
	latest   map[string]string // principal -> key of the newest window seen
}

type counter struct {
	count int
	end   time.Time
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		counters: make(map[string]*counter),
		latest:   make(map[string]string),
	}
}

func (s *InMemoryStore) Increment(_ context.Context, w models.Window) (int, error) {
	key := w.Key()

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.counters[key]
	if !ok {
		if prev, seen := s.latest[w.Principal]; seen && prev != key {
			if old := s.counters[prev]; old != nil && !old.end.After(w.Start) {
				delete(s.counters, prev)
			}
		}
		c = &counter{end: w.End}
		s.counters[key] = c
		s.latest[w.Principal] = key
	}
	c.count++
	return c.count, nil
}

func (s *InMemoryStore) Prune(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, c := range s.counters {
		if !c.end.After(now) {
			delete(s.counters, key)
			removed++
		}
	}
	for principal, key := range s.latest {
		if _, ok := s.counters[key]; !ok {
			delete(s.latest, principal)
		}
	}
	return removed, nil
}

// Len reports the number of live counters.
func (s *InMemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.counters)
}
