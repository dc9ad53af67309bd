// Package ports defines the interfaces the rate limiter depends on.
package ports

import (
	"context"
	"time"

	"cashdesk/internal/ratelimit/models"
)

// WindowStore counts admissions per fixed window.
type WindowStore interface {
	// Increment atomically adds one to the window's counter and returns the
	// post-increment count. The counter must survive at least until w.End.
	Increment(ctx context.Context, w models.Window) (int, error)

	// Prune discards counters for windows that ended at or before now and
	// reports how many were removed.
	Prune(ctx context.Context, now time.Time) (int, error)
}
