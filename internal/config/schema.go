// Package config handles YAML configuration loading, environment variable
// expansion, defaults, and structural validation for ragchat.
package config

import (
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration structure.
type Config struct {
	// Version is the config format version. Currently only "1" is supported.
	Version string `yaml:"version"`

	Log       LogConfig       `yaml:"log"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Chat      ChatConfig      `yaml:"chat"`

	// Modules maps module IDs to their raw YAML configuration.
	// Keys must match registered module IDs (e.g. "provider.vertex").
	Modules map[string]yaml.Node `yaml:"modules"`
}

// LogConfig selects the root logger's level and output format.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// TelemetryConfig controls tracing export. Metrics are always collected and
// served by the gateway; traces are exported only when an endpoint is set.
type TelemetryConfig struct {
	ServiceName  string  `yaml:"service_name"`
	OTLPEndpoint string  `yaml:"otlp_endpoint"`
	Insecure     bool    `yaml:"insecure"`
	SampleRatio  float64 `yaml:"sample_ratio"`
}

// ChatConfig tunes the turn orchestrator.
type ChatConfig struct {
	// SystemInstruction is sent ahead of every conversation.
	SystemInstruction string `yaml:"system_instruction"`

	// GenerationTimeout bounds each call to the model.
	GenerationTimeout time.Duration `yaml:"generation_timeout"`

	History HistoryConfig `yaml:"history"`

	// ClarificationPhrases are added to the built-in phrase set.
	ClarificationPhrases []string `yaml:"clarification_phrases"`

	Generation GenerationConfig `yaml:"generation"`
}

// HistoryConfig limits how much history is resent to the model per turn.
// Zero values resend the full transcript.
type HistoryConfig struct {
	MaxTurns      int     `yaml:"max_turns"`
	MaxTokens     int     `yaml:"max_tokens"`
	CharsPerToken float64 `yaml:"chars_per_token"`
}

// GenerationConfig holds sampling options passed to the model.
// Unset pointers leave the model default in place.
type GenerationConfig struct {
	Temperature *float64       `yaml:"temperature"`
	TopP        *float64       `yaml:"top_p"`
	TopK        *int           `yaml:"top_k"`
	MaxTokens   int            `yaml:"max_tokens"`
	Safety      []SafetyConfig `yaml:"safety"`
}

// SafetyConfig sets the block threshold for one harm category.
type SafetyConfig struct {
	Category  string `yaml:"category"`
	Threshold string `yaml:"threshold"`
}
