// Package provider defines the generation collaborator: the Provider
// interface for LLM backends, health tracking with exponential backoff,
// and a failover chain that tells callers whether anything is ready.
package provider

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// nopHandler discards all records. Enabled returns false so slog skips
// formatting entirely.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

// ChainService is the AppContext service name of the application's *Chain.
const ChainService = "provider.chain"

// ChainEntry configures a single provider in the chain.
type ChainEntry struct {
	Name     string
	Provider Provider
	Role     Role
	Health   HealthConfig
}

type chainEntry struct {
	ChainEntry
	health *healthTracker
}

// EntryStatus is a point-in-time report on one chain entry.
type EntryStatus struct {
	Name     string        `json:"name"`
	Model    string        `json:"model"`
	Role     Role          `json:"role"`
	Ready    bool          `json:"ready"`
	State    HealthState   `json:"state"`
	Failures int           `json:"failures,omitempty"`
	Backoff  time.Duration `json:"backoff,omitempty"`
}

// ChainOption configures optional Chain behavior.
type ChainOption func(*Chain)

// WithLogger injects a structured logger. When nil or omitted, log output
// is discarded.
func WithLogger(l *slog.Logger) ChainOption {
	return func(c *Chain) { c.logger = l }
}

// Chain routes requests to the first available provider for a role and
// fails over to fallback entries on retryable errors.
type Chain struct {
	entries []chainEntry
	logger  *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewChain creates a chain from the given entries, in priority order.
func NewChain(entries []ChainEntry, opts ...ChainOption) (*Chain, error) {
	if len(entries) == 0 {
		return nil, ErrNoProvider
	}

	c := &Chain{entries: make([]chainEntry, len(entries))}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.New(nopHandler{})
	}

	for i, e := range entries {
		if e.Provider == nil {
			return nil, fmt.Errorf("%w: entry %q has nil provider", ErrNoProvider, e.Name)
		}
		if e.Role == "" {
			e.Role = RolePrimary
		}
		c.entries[i] = chainEntry{ChainEntry: e, health: newHealthTracker(e.Health)}
		c.entries[i].health.onChange = c.stateLogger(e.Name)
	}
	return c, nil
}

func (c *Chain) stateLogger(name string) func(from, to HealthState) {
	return func(from, to HealthState) {
		switch to {
		case HealthCooldown:
			c.logger.Warn("provider entered cooldown", "provider", name)
		case HealthDead:
			c.logger.Error("provider marked dead", "provider", name)
		case HealthHealthy:
			c.logger.Info("provider revived", "provider", name, "previous_state", string(from))
		}
	}
}

// Start launches the background health probe loop.
func (c *Chain) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return
	}

	ctx, c.cancel = context.WithCancel(ctx)
	c.done = make(chan struct{})
	go func(done chan struct{}) {
		defer close(done)
		c.probeLoop(ctx, c.checkInterval())
	}(c.done)
}

// Stop cancels the probe loop and waits for it to exit.
func (c *Chain) Stop() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// Ready reports whether at least one entry is initialized and outside its
// failure cooldown, so that Complete would call it now.
func (c *Chain) Ready() bool {
	for i := range c.entries {
		e := &c.entries[i]
		if IsReady(e.Provider) && e.health.available() {
			return true
		}
	}
	return false
}

// Complete sends req to the best available provider for role.
// Non-retryable errors stop failover and are returned as-is. When every
// candidate was skipped without a call, the error wraps ErrNotReady.
func (c *Chain) Complete(ctx context.Context, role Role, req CompletionRequest) (CompletionResponse, error) {
	candidates := c.candidates(role)
	if len(candidates) == 0 {
		return CompletionResponse{}, fmt.Errorf("%w for role %q", ErrNoProvider, role)
	}

	var lastErr, skipErr error
	for _, e := range candidates {
		if err := ctx.Err(); err != nil {
			return CompletionResponse{}, err
		}
		if !IsReady(e.Provider) {
			skipErr = fmt.Errorf("%s: %w", e.Name, ErrNotReady)
			continue
		}
		if !e.health.available() {
			skipErr = fmt.Errorf("%s: %w", e.Name, ErrCoolingDown)
			continue
		}

		resp, err := e.Provider.Complete(ctx, req)
		if err == nil {
			e.health.success()
			return resp, nil
		}
		lastErr = err

		if !IsRetryable(err) {
			return CompletionResponse{}, err
		}

		e.health.failure()
		c.logger.Warn("provider failed, failing over", "provider", e.Name, "error", err)
	}

	if lastErr == nil {
		lastErr = skipErr
	}
	c.logger.Error("all providers exhausted", "role", role, "last_error", lastErr)
	return CompletionResponse{}, fmt.Errorf("%w for role %q: %w", ErrAllProviders, role, lastErr)
}

// Corpus returns the corpus of the first entry bound to one.
func (c *Chain) Corpus() (CorpusInfo, bool) {
	for i := range c.entries {
		if b, ok := c.entries[i].Provider.(CorpusBinder); ok {
			if info, ok := b.Corpus(); ok {
				return info, true
			}
		}
	}
	return CorpusInfo{}, false
}

// ListCorpora asks the first ready entry that can list corpora.
func (c *Chain) ListCorpora(ctx context.Context) ([]CorpusInfo, error) {
	for i := range c.entries {
		e := &c.entries[i]
		l, ok := e.Provider.(CorpusLister)
		if !ok || !IsReady(e.Provider) {
			continue
		}
		list, err := l.ListCorpora(ctx)
		if err != nil {
			return nil, fmt.Errorf("%s: list corpora: %w", e.Name, err)
		}
		return list, nil
	}
	return nil, ErrNoProvider
}

// HealthReport describes every entry in priority order.
func (c *Chain) HealthReport() []EntryStatus {
	out := make([]EntryStatus, len(c.entries))
	for i := range c.entries {
		e := &c.entries[i]
		s := e.health.snapshot()
		out[i] = EntryStatus{
			Name:     e.Name,
			Model:    e.Provider.ModelName(),
			Role:     e.Role,
			Ready:    IsReady(e.Provider),
			State:    s.state,
			Failures: s.failures,
			Backoff:  s.backoff,
		}
	}
	return out
}

// candidates returns entries for role first, then fallback entries.
func (c *Chain) candidates(role Role) []*chainEntry {
	var direct, fallbacks []*chainEntry
	for i := range c.entries {
		e := &c.entries[i]
		switch {
		case e.Role == role:
			direct = append(direct, e)
		case e.Role == RoleFallback:
			fallbacks = append(fallbacks, e)
		}
	}
	return append(direct, fallbacks...)
}

func (c *Chain) checkInterval() time.Duration {
	interval := c.entries[0].health.cfg.CheckInterval
	for i := 1; i < len(c.entries); i++ {
		interval = min(interval, c.entries[i].health.cfg.CheckInterval)
	}
	return interval
}

// probeLoop calls HealthCheck on entries that are unhealthy or not yet
// ready. For providers that failed to initialize, HealthCheck retries
// initialization.
func (c *Chain) probeLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.probe(ctx)
		}
	}
}

func (c *Chain) probe(ctx context.Context) {
	for i := range c.entries {
		e := &c.entries[i]
		if IsReady(e.Provider) && !e.health.needsProbe() {
			continue
		}
		checker, ok := e.Provider.(HealthChecker)
		if !ok {
			// Nothing to probe with: once ready, live traffic decides.
			if IsReady(e.Provider) {
				e.health.success()
			}
			continue
		}
		if err := checker.HealthCheck(ctx); err != nil {
			c.logger.Debug("health probe failed", "provider", e.Name, "error", err)
			continue
		}
		e.health.success()
	}
}
