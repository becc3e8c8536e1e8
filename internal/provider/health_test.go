package provider

import (
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func newTestTracker(cfg HealthConfig) (*healthTracker, *fakeClock) {
	h := newHealthTracker(cfg)
	clk := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	h.now = clk.Now
	return h, clk
}

func TestHealthTracker_StartsHealthy(t *testing.T) {
	t.Parallel()

	h, _ := newTestTracker(HealthConfig{})
	if !h.available() {
		t.Error("new tracker should be available")
	}
	if h.needsProbe() {
		t.Error("healthy tracker should not need a probe")
	}
}

func TestHealthTracker_BackoffDoublesAndCaps(t *testing.T) {
	t.Parallel()

	h, _ := newTestTracker(HealthConfig{
		InitialBackoff: time.Second,
		MaxBackoff:     3 * time.Second,
		MaxFailures:    10,
	})

	want := []time.Duration{time.Second, 2 * time.Second, 3 * time.Second, 3 * time.Second}
	for i, w := range want {
		h.failure()
		if got := h.snapshot().backoff; got != w {
			t.Errorf("failure %d: backoff = %v, want %v", i+1, got, w)
		}
	}
}

func TestHealthTracker_CooldownExpires(t *testing.T) {
	t.Parallel()

	h, clk := newTestTracker(HealthConfig{InitialBackoff: time.Second})
	h.failure()

	if h.available() {
		t.Error("should be unavailable during cooldown")
	}
	if h.needsProbe() {
		t.Error("should not probe before cooldown expires")
	}

	clk.Advance(time.Second)
	if !h.available() {
		t.Error("should be available at exact expiry")
	}
	if !h.needsProbe() {
		t.Error("should probe once cooldown expires")
	}
}

func TestHealthTracker_DeadAfterMaxFailures(t *testing.T) {
	t.Parallel()

	h, clk := newTestTracker(HealthConfig{MaxFailures: 2})
	h.failure()
	h.failure()

	if got := h.snapshot().state; got != HealthDead {
		t.Fatalf("state = %s, want %s", got, HealthDead)
	}
	clk.Advance(time.Hour)
	if h.available() {
		t.Error("dead tracker should stay unavailable")
	}
	if !h.needsProbe() {
		t.Error("dead tracker should need a probe")
	}
}

func TestHealthTracker_SuccessResets(t *testing.T) {
	t.Parallel()

	var transitions []HealthState
	h, _ := newTestTracker(HealthConfig{MaxFailures: 2})
	h.onChange = func(_, to HealthState) { transitions = append(transitions, to) }

	h.failure()
	h.failure()
	h.success()

	s := h.snapshot()
	if s.state != HealthHealthy || s.failures != 0 || s.backoff != 0 {
		t.Errorf("snapshot = %+v, want healthy with no failures", s)
	}
	want := []HealthState{HealthCooldown, HealthDead, HealthHealthy}
	if len(transitions) != len(want) {
		t.Fatalf("transitions = %v, want %v", transitions, want)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("transitions[%d] = %s, want %s", i, transitions[i], want[i])
		}
	}
}
