package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/serhrag/ragchat/internal/core"
	"gopkg.in/yaml.v3"
)

var (
	validLevels  = []string{"debug", "info", "warn", "error"}
	validFormats = []string{"text", "json"}
)

// Validate checks the structural validity of a Config and reports every
// problem at once.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Version == "" {
		errs = append(errs, errors.New("config: version field is required"))
	} else if cfg.Version != "1" {
		errs = append(errs, fmt.Errorf("config: unsupported version %q (supported: \"1\")", cfg.Version))
	}

	if cfg.Log.Level != "" && !slices.Contains(validLevels, strings.ToLower(cfg.Log.Level)) {
		errs = append(errs, fmt.Errorf("config: log.level %q must be one of %v", cfg.Log.Level, validLevels))
	}
	if cfg.Log.Format != "" && !slices.Contains(validFormats, cfg.Log.Format) {
		errs = append(errs, fmt.Errorf("config: log.format %q must be one of %v", cfg.Log.Format, validFormats))
	}
	if r := cfg.Telemetry.SampleRatio; r < 0 || r > 1 {
		errs = append(errs, fmt.Errorf("config: telemetry.sample_ratio %v must be within [0, 1]", r))
	}

	errs = append(errs, validateChat(&cfg.Chat)...)
	errs = append(errs, validateModules(cfg.Modules)...)

	return errors.Join(errs...)
}

func validateChat(c *ChatConfig) []error {
	var errs []error

	if c.GenerationTimeout < 0 {
		errs = append(errs, errors.New("config: chat.generation_timeout must not be negative"))
	}
	if c.History.MaxTurns < 0 || c.History.MaxTokens < 0 {
		errs = append(errs, errors.New("config: chat.history limits must not be negative (0 means unlimited)"))
	}

	g := c.Generation
	if g.Temperature != nil && (*g.Temperature < 0 || *g.Temperature > 2) {
		errs = append(errs, fmt.Errorf("config: chat.generation.temperature %v must be within [0, 2]", *g.Temperature))
	}
	if g.TopP != nil && (*g.TopP <= 0 || *g.TopP > 1) {
		errs = append(errs, fmt.Errorf("config: chat.generation.top_p %v must be within (0, 1]", *g.TopP))
	}
	if g.TopK != nil && *g.TopK <= 0 {
		errs = append(errs, fmt.Errorf("config: chat.generation.top_k %d must be positive", *g.TopK))
	}
	if g.MaxTokens < 0 {
		errs = append(errs, errors.New("config: chat.generation.max_tokens must not be negative"))
	}
	for i, s := range g.Safety {
		if !strings.HasPrefix(s.Category, "HARM_CATEGORY_") {
			errs = append(errs, fmt.Errorf("config: chat.generation.safety[%d]: category %q must start with HARM_CATEGORY_", i, s.Category))
		}
		if s.Threshold == "" {
			errs = append(errs, fmt.Errorf("config: chat.generation.safety[%d]: threshold is required", i))
		}
	}
	return errs
}

// validateModules checks module IDs against the registry and requires at
// least one provider and at most one store.
func validateModules(modules map[string]yaml.Node) []error {
	var errs []error
	if len(modules) == 0 {
		return append(errs, errors.New("config: at least one module must be configured"))
	}

	var providers, stores []string
	for id := range modules {
		if _, ok := core.GetModule(id); !ok {
			errs = append(errs, fmt.Errorf("config: unknown module %q", id))
			continue
		}
		switch core.ModuleID(id).Namespace() {
		case "provider":
			providers = append(providers, id)
		case "store":
			stores = append(stores, id)
		}
	}

	if len(providers) == 0 {
		errs = append(errs, errors.New("config: at least one provider.* module must be configured"))
	}
	if len(stores) > 1 {
		slices.Sort(stores)
		errs = append(errs, fmt.Errorf("config: at most one store.* module may be configured, got %v", stores))
	}
	return errs
}
