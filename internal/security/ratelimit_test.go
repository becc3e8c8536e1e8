package security

import (
	"errors"
	"testing"
	"time"
)

func TestRateLimiter_SlidingWindow(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(2, time.Minute)
	rl.now = func() time.Time { return now }

	for i := range 2 {
		if err := rl.Allow("1.2.3.4"); err != nil {
			t.Fatalf("Allow #%d: %v", i+1, err)
		}
	}
	if err := rl.Allow("1.2.3.4"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("third Allow = %v, want ErrRateLimited", err)
	}
	if err := rl.Allow("5.6.7.8"); err != nil {
		t.Errorf("other key limited: %v", err)
	}
	if got := rl.RetryAfter("1.2.3.4"); got != time.Minute {
		t.Errorf("RetryAfter = %v, want 1m", got)
	}

	now = now.Add(time.Minute + time.Second)
	if err := rl.Allow("1.2.3.4"); err != nil {
		t.Errorf("Allow after window: %v", err)
	}
	if got := rl.RetryAfter("1.2.3.4"); got != 0 {
		t.Errorf("RetryAfter = %v, want 0", got)
	}
}

func TestRateLimiter_Disabled(t *testing.T) {
	t.Parallel()

	var nilLimiter *RateLimiter
	if err := nilLimiter.Allow("x"); err != nil {
		t.Errorf("nil limiter: %v", err)
	}

	rl := NewRateLimiter(0, time.Minute)
	for range 100 {
		if err := rl.Allow("x"); err != nil {
			t.Fatalf("zero limit: %v", err)
		}
	}
}

func TestRateLimiter_SweepsIdleKeys(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(5, time.Minute)
	rl.now = func() time.Time { return now }

	_ = rl.Allow("a")
	_ = rl.Allow("b")
	now = now.Add(2 * time.Minute)
	_ = rl.Allow("c")

	rl.mu.Lock()
	n := len(rl.events)
	rl.mu.Unlock()
	if n != 1 {
		t.Errorf("tracked keys = %d, want 1", n)
	}
}
