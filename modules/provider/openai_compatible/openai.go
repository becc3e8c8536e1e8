// Package openaicompat registers provider.openai_compatible, a generation
// backend for any server speaking the chat completions protocol at a
// configurable base_url (vLLM, LiteLLM, Ollama, Groq). It usually sits behind
// provider.vertex as the fallback, or runs alone for local development.
package openaicompat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/serhrag/ragchat/internal/core"
	"github.com/serhrag/ragchat/internal/provider"
	"github.com/serhrag/ragchat/internal/security"
	"gopkg.in/yaml.v3"
)

func init() {
	core.RegisterModule(&Provider{})
}

// Provider generates replies through a chat completions endpoint.
type Provider struct {
	config Config
	api    *chatClient
	logger *slog.Logger
}

// ModuleInfo implements core.Module.
func (p *Provider) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "provider.openai_compatible",
		New: func() core.Module { return &Provider{} },
	}
}

// Configure implements core.Configurable.
func (p *Provider) Configure(node *yaml.Node) error {
	return node.Decode(&p.config)
}

// Provision resolves the API key, registers it for log redaction and
// builds the HTTP client.
func (p *Provider) Provision(ctx *core.AppContext) error {
	p.config.defaults()
	p.logger = ctx.Logger.With("provider", p.config.Model)
	p.api = newChatClient(p.config)

	if svc, ok := ctx.Service(security.RedactorService); ok {
		if r, ok := svc.(*security.Redactor); ok {
			r.AddLiteral(p.config.APIKey)
		}
	}
	return nil
}

// Validate implements core.Validator.
func (p *Provider) Validate() error {
	return p.config.validate()
}

// Complete implements provider.Provider.
func (p *Provider) Complete(ctx context.Context, req provider.CompletionRequest) (provider.CompletionResponse, error) {
	raw, err := p.api.complete(ctx, toChatRequest(p.config.Model, p.config.MaxTokens, req))
	if err != nil {
		return provider.CompletionResponse{}, err
	}
	resp, err := fromChatResponse(raw)
	if err != nil {
		p.logger.Warn("unusable completion", "error", err, "choices", len(raw.Choices))
	}
	return resp, err
}

// ContextWindowSize implements provider.Provider.
func (p *Provider) ContextWindowSize() int { return p.config.ContextWindow }

// ModelName implements provider.Provider.
func (p *Provider) ModelName() string { return p.config.Model }

// ChainRole implements provider.ChainMember.
func (p *Provider) ChainRole() provider.Role {
	role, _ := provider.ParseRole(p.config.Role)
	return role
}

// HealthCheck lists models. Any failure marks the provider down.
func (p *Provider) HealthCheck(ctx context.Context) error {
	err := p.api.models(ctx)
	if err == nil || errors.Is(err, provider.ErrProviderDown) {
		return err
	}
	return fmt.Errorf("%w: health check: %w", provider.ErrProviderDown, err)
}

var (
	_ core.Module            = (*Provider)(nil)
	_ core.Configurable      = (*Provider)(nil)
	_ core.Provisioner       = (*Provider)(nil)
	_ core.Validator         = (*Provider)(nil)
	_ provider.Provider      = (*Provider)(nil)
	_ provider.HealthChecker = (*Provider)(nil)
	_ provider.ChainMember   = (*Provider)(nil)
)
