// Package echo provides a development provider that answers every message
// by quoting it back. It needs no credentials and is always ready, which
// makes it useful for exercising the HTTP surface without a model.
package echo

import (
	"context"
	"fmt"
	"strings"

	"github.com/serhrag/ragchat/internal/core"
	"github.com/serhrag/ragchat/internal/provider"
	"gopkg.in/yaml.v3"
)

// DefaultTemplate is the reply format. The single %s receives the last
// user message.
const DefaultTemplate = "Recebi sua mensagem: '%s'. Sistema em desenvolvimento."

func init() {
	core.RegisterModule(&Provider{})
}

// Config holds the echo provider's options.
type Config struct {
	Template string `yaml:"template"`
	Role     string `yaml:"role"`
}

// Provider replies with a formatted copy of the latest user message.
type Provider struct {
	config Config
}

// ModuleInfo implements core.Module.
func (p *Provider) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "provider.echo",
		New: func() core.Module { return &Provider{} },
	}
}

// Configure implements core.Configurable.
func (p *Provider) Configure(node *yaml.Node) error {
	return node.Decode(&p.config)
}

// Provision implements core.Provisioner.
func (p *Provider) Provision(_ *core.AppContext) error {
	if p.config.Template == "" {
		p.config.Template = DefaultTemplate
	}
	return nil
}

// Validate implements core.Validator.
func (p *Provider) Validate() error {
	if strings.Count(p.config.Template, "%s") != 1 {
		return fmt.Errorf("provider.echo: template must contain exactly one %%s")
	}
	if _, ok := provider.ParseRole(p.config.Role); !ok {
		return fmt.Errorf("provider.echo: unknown role %q", p.config.Role)
	}
	return nil
}

// Complete implements provider.Provider.
func (p *Provider) Complete(ctx context.Context, req provider.CompletionRequest) (provider.CompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return provider.CompletionResponse{}, err
	}

	var last string
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == provider.MessageRoleUser {
			last = req.Messages[i].Content
			break
		}
	}
	if last == "" {
		return provider.CompletionResponse{}, provider.ErrEmptyResponse
	}

	tmpl := p.config.Template
	if tmpl == "" {
		tmpl = DefaultTemplate
	}
	return provider.CompletionResponse{
		Content:      fmt.Sprintf(tmpl, last),
		FinishReason: provider.FinishReasonStop,
	}, nil
}

// ContextWindowSize implements provider.Provider.
func (p *Provider) ContextWindowSize() int { return 1 << 20 }

// ModelName implements provider.Provider.
func (p *Provider) ModelName() string { return "echo" }

// ChainRole implements provider.ChainMember.
func (p *Provider) ChainRole() provider.Role {
	role, _ := provider.ParseRole(p.config.Role)
	return role
}

var (
	_ core.Module          = (*Provider)(nil)
	_ core.Configurable    = (*Provider)(nil)
	_ core.Provisioner     = (*Provider)(nil)
	_ core.Validator       = (*Provider)(nil)
	_ provider.Provider    = (*Provider)(nil)
	_ provider.ChainMember = (*Provider)(nil)
)
