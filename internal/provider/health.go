package provider

import (
	"sync"
	"time"
)

// HealthState is the availability verdict for one chain entry.
type HealthState string

// HealthState values reported by the chain.
const (
	HealthHealthy  HealthState = "healthy"
	HealthCooldown HealthState = "cooldown"
	HealthDead     HealthState = "dead"
)

// HealthConfig controls failure backoff for a chain entry.
type HealthConfig struct {
	// InitialBackoff is the cooldown after the first failure. Default 1s.
	InitialBackoff time.Duration

	// MaxBackoff caps the doubling backoff. Default 60s.
	MaxBackoff time.Duration

	// MaxFailures consecutive failures mark the entry dead. Default 5.
	MaxFailures int

	// CheckInterval is how often the chain probes unhealthy entries. Default 10s.
	CheckInterval time.Duration
}

const defaultCheckInterval = 10 * time.Second

func (c HealthConfig) withDefaults() HealthConfig {
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = time.Second
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = time.Minute
	}
	if c.MaxFailures <= 0 {
		c.MaxFailures = 5
	}
	if c.CheckInterval <= 0 {
		c.CheckInterval = defaultCheckInterval
	}
	return c
}

// healthTracker applies exponential backoff to one provider. A dead entry
// only comes back through a successful probe.
type healthTracker struct {
	cfg HealthConfig

	// onChange runs outside the lock on every state transition.
	onChange func(from, to HealthState)

	mu       sync.Mutex
	state    HealthState
	failures int
	backoff  time.Duration
	until    time.Time

	now func() time.Time
}

func newHealthTracker(cfg HealthConfig) *healthTracker {
	return &healthTracker{
		cfg:   cfg.withDefaults(),
		state: HealthHealthy,
		now:   time.Now,
	}
}

// available reports whether requests may be routed to the entry.
func (h *healthTracker) available() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.availableLocked()
}

func (h *healthTracker) availableLocked() bool {
	switch h.state {
	case HealthHealthy:
		return true
	case HealthCooldown:
		return !h.now().Before(h.until)
	default:
		return false
	}
}

// needsProbe is true for dead entries and for cooldowns that have expired.
func (h *healthTracker) needsProbe() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	switch h.state {
	case HealthDead:
		return true
	case HealthCooldown:
		return !h.now().Before(h.until)
	default:
		return false
	}
}

func (h *healthTracker) success() {
	h.mu.Lock()
	from := h.state
	h.state = HealthHealthy
	h.failures = 0
	h.backoff = 0
	h.mu.Unlock()

	h.notify(from, HealthHealthy)
}

func (h *healthTracker) failure() {
	h.mu.Lock()
	from := h.state
	h.failures++
	if h.failures >= h.cfg.MaxFailures {
		h.state = HealthDead
	} else {
		h.state = HealthCooldown
		h.backoff = min(max(h.backoff*2, h.cfg.InitialBackoff), h.cfg.MaxBackoff)
		h.until = h.now().Add(h.backoff)
	}
	to := h.state
	h.mu.Unlock()

	h.notify(from, to)
}

func (h *healthTracker) notify(from, to HealthState) {
	if from != to && h.onChange != nil {
		h.onChange(from, to)
	}
}

type healthSnapshot struct {
	state    HealthState
	failures int
	backoff  time.Duration
}

func (h *healthTracker) snapshot() healthSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return healthSnapshot{state: h.state, failures: h.failures, backoff: h.backoff}
}
