package window

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"cashdesk/internal/ratelimit/models"
)

const defaultRedisPrefix = "cashdesk:ratelimit"

// incrementScript bumps the window counter and arms its expiry on first use,
// in one round trip so concurrent callers see distinct counts.
var incrementScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return current
`)

// RedisStore shares window counters across instances. Keys expire on their
// own, so Prune has nothing to do.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	prefix = strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(w models.Window) string {
	return s.prefix + ":" + w.Key()
}

func (s *RedisStore) Increment(ctx context.Context, w models.Window) (int, error) {
	ttl := w.End.Sub(w.Start).Milliseconds()
	if ttl < 1 {
		ttl = 1
	}
	count, err := incrementScript.Run(ctx, s.client, []string{s.key(w)}, ttl).Int64()
	if err != nil {
		return 0, fmt.Errorf("increment rate window: %w", err)
	}
	return int(count), nil
}

func (s *RedisStore) Prune(context.Context, time.Time) (int, error) {
	return 0, nil
}
