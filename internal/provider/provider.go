package provider

import "context"

// Provider generates a reply from a conversation transcript.
// Concrete implementations live under modules/provider and also implement
// core.Module for lifecycle management.
type Provider interface {
	// Complete sends the transcript and returns the full reply.
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)

	// ContextWindowSize returns the maximum context window in tokens.
	ContextWindowSize() int

	// ModelName returns the identifier of the underlying model.
	ModelName() string
}

// HealthChecker is implemented by providers that support active probing.
// The chain calls HealthCheck on providers in cooldown, dead, or not yet ready.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Readier is implemented by providers whose initialization can fail or lag
// behind process start. A provider without Ready is always ready.
type Readier interface {
	Ready() bool
}

// CorpusInfo identifies the retrieval corpus a provider grounds its answers on.
type CorpusInfo struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

// CorpusBinder is implemented by providers bound to a retrieval corpus.
type CorpusBinder interface {
	Corpus() (CorpusInfo, bool)
}

// CorpusLister is implemented by providers that can enumerate the corpora
// visible to their credentials.
type CorpusLister interface {
	ListCorpora(ctx context.Context) ([]CorpusInfo, error)
}

// IsReady reports whether p can serve requests.
func IsReady(p Provider) bool {
	r, ok := p.(Readier)
	return !ok || r.Ready()
}

// ChainMember is implemented by provider modules that declare which chain
// slot they fill. Providers without it are primaries.
type ChainMember interface {
	ChainRole() Role
}

// RoleOf returns the chain slot p fills.
func RoleOf(p Provider) Role {
	if m, ok := p.(ChainMember); ok && m.ChainRole() != "" {
		return m.ChainRole()
	}
	return RolePrimary
}
