package security

import (
	"errors"
	"sync"
	"time"
)

// ErrRateLimited is returned when a client exceeds its allowance.
var ErrRateLimited = errors.New("rate limit exceeded")

// RateLimiter is a per-key sliding window limiter. A limit of zero or less
// disables it. Idle keys are dropped once their window empties.
type RateLimiter struct {
	limit  int
	window time.Duration

	mu     sync.Mutex
	events map[string][]time.Time
	now    func() time.Time
}

// NewRateLimiter allows limit events per key within window.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{
		limit:  limit,
		window: window,
		events: make(map[string][]time.Time),
		now:    time.Now,
	}
}

// Allow records an event for key, or returns ErrRateLimited without
// recording it.
func (rl *RateLimiter) Allow(key string) error {
	if rl == nil || rl.limit <= 0 {
		return nil
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	recent := evict(rl.events[key], now.Add(-rl.window))
	if len(recent) >= rl.limit {
		rl.events[key] = recent
		return ErrRateLimited
	}
	rl.events[key] = append(recent, now)
	rl.sweep(now)
	return nil
}

// RetryAfter returns how long key must wait before its next event is allowed.
func (rl *RateLimiter) RetryAfter(key string) time.Duration {
	if rl == nil || rl.limit <= 0 {
		return 0
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	recent := evict(rl.events[key], now.Add(-rl.window))
	if len(recent) < rl.limit {
		return 0
	}
	return recent[0].Add(rl.window).Sub(now)
}

// sweep drops keys with no events left in the window. It runs on the write
// path so memory stays bounded by active clients.
func (rl *RateLimiter) sweep(now time.Time) {
	cutoff := now.Add(-rl.window)
	for k, ev := range rl.events {
		if len(ev) == 0 || !ev[len(ev)-1].After(cutoff) {
			delete(rl.events, k)
		}
	}
}

// evict drops events at or before cutoff. Events are chronological.
func evict(events []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(events) && !events[i].After(cutoff) {
		i++
	}
	return events[i:]
}
