package core

import (
	"fmt"
	"log/slog"
	"sync"

	"gopkg.in/yaml.v3"
)

// AppContext carries what modules share: the logger and a service registry
// through which modules find each other without importing each other.
type AppContext struct {
	// Logger is scoped to the current module (see ForModule).
	Logger *slog.Logger

	root          *slog.Logger
	moduleConfigs map[string]yaml.Node
	services      *serviceRegistry
}

type serviceRegistry struct {
	mu    sync.RWMutex
	items map[string]any
}

// NewAppContext creates a context around the given root logger.
// A nil logger falls back to slog.Default().
func NewAppContext(logger *slog.Logger) *AppContext {
	if logger == nil {
		logger = slog.Default()
	}
	return &AppContext{
		Logger:   logger,
		root:     logger,
		services: &serviceRegistry{items: make(map[string]any)},
	}
}

// WithModuleConfigs returns a copy carrying the raw per-module configuration.
func (ctx *AppContext) WithModuleConfigs(configs map[string]yaml.Node) *AppContext {
	cp := *ctx
	cp.moduleConfigs = configs
	return &cp
}

// ForModule returns a copy whose logger is tagged with the module ID.
// The service registry is shared.
func (ctx *AppContext) ForModule(id ModuleID) *AppContext {
	cp := *ctx
	cp.Logger = ctx.root.With("module", string(id))
	return &cp
}

// RegisterService publishes a value under name, replacing any previous one.
func (ctx *AppContext) RegisterService(name string, svc any) {
	ctx.services.mu.Lock()
	defer ctx.services.mu.Unlock()
	ctx.services.items[name] = svc
}

// Service returns the value registered under name.
func (ctx *AppContext) Service(name string) (any, bool) {
	ctx.services.mu.RLock()
	defer ctx.services.mu.RUnlock()
	svc, ok := ctx.services.items[name]
	return svc, ok
}

// LoadModule instantiates a registered module and runs it through
//
//	New() → Configure() → Provision() → Validate()
//
// skipping the steps the module does not implement.
func (ctx *AppContext) LoadModule(id string) (Module, error) {
	info, ok := GetModule(id)
	if !ok {
		return nil, fmt.Errorf("unknown module: %s", id)
	}

	mod := info.New()

	if c, ok := mod.(Configurable); ok {
		if node, exists := ctx.moduleConfigs[id]; exists {
			if err := c.Configure(&node); err != nil {
				return nil, fmt.Errorf("configuring module %s: %w", id, err)
			}
		}
	}

	if p, ok := mod.(Provisioner); ok {
		if err := p.Provision(ctx.ForModule(info.ID)); err != nil {
			return nil, fmt.Errorf("provisioning module %s: %w", id, err)
		}
	}

	if v, ok := mod.(Validator); ok {
		if err := v.Validate(); err != nil {
			return nil, fmt.Errorf("validating module %s: %w", id, err)
		}
	}

	return mod, nil
}
