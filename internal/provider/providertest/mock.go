// Package providertest provides test helpers for the provider package.
package providertest

import (
	"context"
	"sync"

	"github.com/serhrag/ragchat/internal/provider"
)

// MockProvider is a configurable test double for provider.Provider.
// CompleteFunc must be set before Complete is called. The other funcs are
// optional: ModelName defaults to "mock", ContextWindowSize to 32768,
// Ready to true, HealthCheck to nil, Corpus to unbound, and ListCorpora
// to ErrNoProvider.
// All methods are safe for concurrent use.
type MockProvider struct {
	CompleteFunc          func(ctx context.Context, req provider.CompletionRequest) (provider.CompletionResponse, error)
	ContextWindowSizeFunc func() int
	ModelNameFunc         func() string
	HealthCheckFunc       func(ctx context.Context) error
	ReadyFunc             func() bool
	CorpusFunc            func() (provider.CorpusInfo, bool)
	ListCorporaFunc       func(ctx context.Context) ([]provider.CorpusInfo, error)

	mu            sync.Mutex
	completeCalls int
	healthCalls   int
	requests      []provider.CompletionRequest
}

// Reply returns a mock that always answers text.
func Reply(text string) *MockProvider {
	return &MockProvider{
		CompleteFunc: func(context.Context, provider.CompletionRequest) (provider.CompletionResponse, error) {
			return provider.CompletionResponse{Content: text, FinishReason: provider.FinishReasonStop}, nil
		},
	}
}

// Fail returns a mock whose Complete and HealthCheck always return err.
func Fail(err error) *MockProvider {
	return &MockProvider{
		CompleteFunc: func(context.Context, provider.CompletionRequest) (provider.CompletionResponse, error) {
			return provider.CompletionResponse{}, err
		},
		HealthCheckFunc: func(context.Context) error { return err },
	}
}

// Complete delegates to CompleteFunc and records the request.
func (m *MockProvider) Complete(ctx context.Context, req provider.CompletionRequest) (provider.CompletionResponse, error) {
	m.mu.Lock()
	m.completeCalls++
	m.requests = append(m.requests, req)
	m.mu.Unlock()
	return m.CompleteFunc(ctx, req)
}

// ContextWindowSize delegates to ContextWindowSizeFunc.
func (m *MockProvider) ContextWindowSize() int {
	if m.ContextWindowSizeFunc == nil {
		return 32768
	}
	return m.ContextWindowSizeFunc()
}

// ModelName delegates to ModelNameFunc.
func (m *MockProvider) ModelName() string {
	if m.ModelNameFunc == nil {
		return "mock"
	}
	return m.ModelNameFunc()
}

// HealthCheck delegates to HealthCheckFunc and tracks call count.
func (m *MockProvider) HealthCheck(ctx context.Context) error {
	m.mu.Lock()
	m.healthCalls++
	m.mu.Unlock()
	if m.HealthCheckFunc == nil {
		return nil
	}
	return m.HealthCheckFunc(ctx)
}

// Ready delegates to ReadyFunc.
func (m *MockProvider) Ready() bool {
	if m.ReadyFunc == nil {
		return true
	}
	return m.ReadyFunc()
}

// Corpus delegates to CorpusFunc.
func (m *MockProvider) Corpus() (provider.CorpusInfo, bool) {
	if m.CorpusFunc == nil {
		return provider.CorpusInfo{}, false
	}
	return m.CorpusFunc()
}

// ListCorpora delegates to ListCorporaFunc. Without one it reports
// provider.ErrNoProvider, as if listing were unsupported.
func (m *MockProvider) ListCorpora(ctx context.Context) ([]provider.CorpusInfo, error) {
	if m.ListCorporaFunc == nil {
		return nil, provider.ErrNoProvider
	}
	return m.ListCorporaFunc(ctx)
}

// CompleteCalls returns how many times Complete was called.
func (m *MockProvider) CompleteCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.completeCalls
}

// HealthCalls returns how many times HealthCheck was called.
func (m *MockProvider) HealthCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.healthCalls
}

// LastRequest returns the most recent request passed to Complete.
func (m *MockProvider) LastRequest() (provider.CompletionRequest, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requests) == 0 {
		return provider.CompletionRequest{}, false
	}
	return m.requests[len(m.requests)-1], true
}

// Interface guards.
var (
	_ provider.Provider      = (*MockProvider)(nil)
	_ provider.HealthChecker = (*MockProvider)(nil)
	_ provider.Readier       = (*MockProvider)(nil)
	_ provider.CorpusBinder  = (*MockProvider)(nil)
	_ provider.CorpusLister  = (*MockProvider)(nil)
)
