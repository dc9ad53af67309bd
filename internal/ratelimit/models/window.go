package models

import (
	"fmt"
	"strings"
	"time"
)

// Window identifies one fixed rate window for a principal.
// Index is floor(unix-nanos / window) so every instance computes the same
// boundaries without coordination.
type Window struct {
	Principal string
	Index     int64
	Start     time.Time
	End       time.Time
}

// WindowFor returns the fixed window containing now.
func WindowFor(principal string, now time.Time, size time.Duration) Window {
	idx := now.UnixNano() / int64(size)
	start := time.Unix(0, idx*int64(size)).UTC()
	return Window{
		Principal: principal,
		Index:     idx,
		Start:     start,
		End:       start.Add(size),
	}
}

// Key is the store key "<principal>:<index>". The principal segment is
// sanitized so it cannot spill into the index segment.
func (w Window) Key() string {
	return fmt.Sprintf("%s:%d", SanitizeKeySegment(w.Principal), w.Index)
}

// Decision is the outcome of one admission attempt.
type Decision struct {
	Allowed    bool          `json:"allowed"`
	Limit      int           `json:"limit"`
	Remaining  int           `json:"remaining"`
	ResetAt    time.Time     `json:"reset_at"`
	RetryAfter time.Duration `json:"retry_after,omitempty"`
}

// RetryAfterSeconds rounds RetryAfter up to whole seconds, minimum 1.
func (d *Decision) RetryAfterSeconds() int {
	secs := int((d.RetryAfter + time.Second - 1) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}

// SanitizeKeySegment escapes delimiter characters in rate limit key segments
// to prevent key collision attacks where user-controlled identifiers containing
// ':' could manipulate adjacent rate limit buckets.
func SanitizeKeySegment(s string) string {
	return strings.ReplaceAll(s, ":", "_")
}
