package core

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

const shutdownTimeout = 30 * time.Second

// App owns a set of loaded modules and drives their lifecycle.
type App struct {
	ctx     *AppContext
	modules []moduleInstance
	logger  *slog.Logger
}

type moduleInstance struct {
	id      ModuleID
	module  Module
	started bool
}

// NewApp creates an App bound to ctx.
func NewApp(ctx *AppContext) *App {
	return &App{
		ctx:    ctx,
		logger: ctx.Logger.With("component", "core"),
	}
}

// Context returns the AppContext the modules were provisioned with.
func (a *App) Context() *AppContext {
	return a.ctx
}

// LoadModules loads the given IDs in order. On failure, modules loaded so
// far are stopped and discarded.
func (a *App) LoadModules(ids []string) error {
	for _, id := range ids {
		mod, err := a.ctx.LoadModule(id)
		if err != nil {
			a.cleanup()
			return fmt.Errorf("loading module %s: %w", id, err)
		}
		a.modules = append(a.modules, moduleInstance{id: mod.ModuleInfo().ID, module: mod})
		a.logger.Info("module loaded", "module", id)
	}
	return nil
}

// AppendModule adds an already-built module (e.g. one assembled by the
// wiring code rather than the registry) to the lifecycle.
func (a *App) AppendModule(id ModuleID, mod Module) {
	a.modules = append(a.modules, moduleInstance{id: id, module: mod})
}

// Module returns the loaded module with the given ID.
func (a *App) Module(id string) (Module, bool) {
	for _, mi := range a.modules {
		if string(mi.id) == id {
			return mi.module, true
		}
	}
	return nil, false
}

// Modules returns the loaded modules in load order.
func (a *App) Modules() []Module {
	out := make([]Module, len(a.modules))
	for i, mi := range a.modules {
		out[i] = mi.module
	}
	return out
}

// Start starts every Starter in load order. If one fails, the modules
// before it are stopped in reverse order.
func (a *App) Start() error {
	for i := range a.modules {
		mi := &a.modules[i]
		s, ok := mi.module.(Starter)
		if !ok {
			// Nothing to start, but a Stopper still owns resources.
			mi.started = true
			continue
		}
		a.logger.Info("starting module", "module", string(mi.id))
		if err := s.Start(); err != nil {
			a.logger.Error("module start failed", "module", string(mi.id), "error", err)
			a.stopFrom(i - 1)
			return fmt.Errorf("starting module %s: %w", mi.id, err)
		}
		mi.started = true
	}
	a.logger.Info("all modules started")
	return nil
}

// Stop stops every started module in reverse order.
func (a *App) Stop() {
	a.stopFrom(len(a.modules) - 1)
}

func (a *App) stopFrom(index int) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	for i := index; i >= 0; i-- {
		mi := &a.modules[i]
		if !mi.started {
			continue
		}
		if s, ok := mi.module.(Stopper); ok {
			a.logger.Info("stopping module", "module", string(mi.id))
			if err := s.Stop(ctx); err != nil {
				a.logger.Error("module stop error", "module", string(mi.id), "error", err)
			}
		}
		mi.started = false
	}
}

func (a *App) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	for i := len(a.modules) - 1; i >= 0; i-- {
		if s, ok := a.modules[i].module.(Stopper); ok {
			_ = s.Stop(ctx)
		}
	}
	a.modules = nil
}

// Run starts all modules and blocks until ctx is cancelled, then stops them.
// Callers wire OS signals into ctx (signal.NotifyContext).
func (a *App) Run(ctx context.Context) error {
	if err := a.Start(); err != nil {
		return err
	}

	<-ctx.Done()
	a.logger.Info("shutdown requested", "cause", context.Cause(ctx))

	a.Stop()
	a.logger.Info("shutdown complete")
	return nil
}
