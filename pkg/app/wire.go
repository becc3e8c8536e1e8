package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/serhrag/ragchat/internal/chat"
	"github.com/serhrag/ragchat/internal/config"
	"github.com/serhrag/ragchat/internal/conversation"
	"github.com/serhrag/ragchat/internal/core"
	"github.com/serhrag/ragchat/internal/provider"
	"github.com/serhrag/ragchat/internal/telemetry"
)

// chainModule runs the provider chain's health probes inside the App
// lifecycle.
type chainModule struct {
	chain *provider.Chain
}

func (m *chainModule) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{ID: provider.ChainService}
}

func (m *chainModule) Start() error {
	m.chain.Start(context.Background())
	return nil
}

func (m *chainModule) Stop(_ context.Context) error {
	m.chain.Stop()
	return nil
}

// wireChat builds the provider chain from the loaded provider modules,
// resolves the conversation store, and registers the orchestrator for the
// gateway to discover. Must be called after LoadModules and before Start.
func wireChat(
	app *core.App,
	appCtx *core.AppContext,
	cfg *config.Config,
	tel *telemetry.Telemetry,
	logger *slog.Logger,
) (*provider.Chain, *chat.Orchestrator, error) {
	var entries []provider.ChainEntry
	for _, mod := range app.Modules() {
		p, ok := mod.(provider.Provider)
		if !ok {
			continue
		}
		id := string(mod.ModuleInfo().ID)
		entries = append(entries, provider.ChainEntry{
			Name:     id,
			Provider: p,
			Role:     provider.RoleOf(p),
		})
		logger.Info("provider discovered", "module", id, "model", p.ModelName(), "role", string(provider.RoleOf(p)))
	}
	if len(entries) == 0 {
		return nil, nil, fmt.Errorf("at least one provider module is required")
	}

	chain, err := provider.NewChain(entries, provider.WithLogger(logger.With("component", "chain")))
	if err != nil {
		return nil, nil, err
	}
	app.AppendModule(provider.ChainService, &chainModule{chain: chain})
	appCtx.RegisterService(provider.ChainService, chain)

	store := resolveStore(appCtx, logger)

	orch, err := chat.NewOrchestrator(chat.Config{
		Store:      store,
		Generator:  chain,
		Classifier: chat.NewClassifier(cfg.Chat.ClarificationPhrases...),
		Metrics:    chat.NewMetrics(tel.Registry),
		Tracer:     tel.Tracer("github.com/serhrag/ragchat/internal/chat"),
		Logger:     logger,
		Options:    chatOptions(cfg.Chat),
	})
	if err != nil {
		return nil, nil, err
	}
	appCtx.RegisterService(chat.OrchestratorService, orch)

	return chain, orch, nil
}

// resolveStore returns the store a module registered, or an in-memory
// store when none is configured.
func resolveStore(appCtx *core.AppContext, logger *slog.Logger) conversation.Store {
	if svc, ok := appCtx.Service(conversation.StoreService); ok {
		if s, ok := svc.(conversation.Store); ok {
			return s
		}
		logger.Warn("ignoring store service of unexpected type", "type", fmt.Sprintf("%T", svc))
	}
	logger.Info("no store module configured, conversations are kept in memory")
	return conversation.NewMemoryStore()
}

func chatOptions(c config.ChatConfig) chat.Options {
	safety := make([]provider.SafetySetting, 0, len(c.Generation.Safety))
	for _, s := range c.Generation.Safety {
		safety = append(safety, provider.SafetySetting{Category: s.Category, Threshold: s.Threshold})
	}

	return chat.Options{
		SystemInstruction: c.SystemInstruction,
		Timeout:           c.GenerationTimeout,
		Generation: chat.GenerationOptions{
			Temperature: c.Generation.Temperature,
			TopP:        c.Generation.TopP,
			TopK:        c.Generation.TopK,
			MaxTokens:   c.Generation.MaxTokens,
			Safety:      safety,
		},
		Window: chat.Window{
			MaxTurns:  c.History.MaxTurns,
			MaxTokens: c.History.MaxTokens,
			Estimator: chat.CharEstimator{CharsPerToken: c.History.CharsPerToken},
		},
	}
}
