package ratelimit

import (
	"sync"
	"time"

	interrors "github.com/notekit/notekit/internal/errors"
)

// Limiter is a sliding-window admission counter for note creation. It keeps
// the timestamps admitted within the trailing window and rejects once the
// window holds limit entries. Global across all callers, in-memory only.
type Limiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	times  []time.Time
	now    func() time.Time
}

func New(limit int, window time.Duration) *Limiter {
	return &Limiter{
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

// NewWithClock allows tests to control time.
func NewWithClock(limit int, window time.Duration, now func() time.Time) *Limiter {
	l := New(limit, window)
	l.now = now
	return l
}

// Allow prunes timestamps older than the window, then either records the
// attempt and admits it, or rejects with a RateLimitError without recording.
func (l *Limiter) Allow() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)

	kept := l.times[:0]
	for _, t := range l.times {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	l.times = kept

	if len(l.times) >= l.limit {
		return &interrors.RateLimitError{Limit: l.limit, Window: l.window}
	}

	l.times = append(l.times, now)
	return nil
}
