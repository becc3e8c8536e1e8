package app

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/serhrag/ragchat/internal/config"
	"github.com/serhrag/ragchat/internal/security"
	_ "github.com/serhrag/ragchat/modules/provider/echo"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "ragchat.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

const echoConfig = `version: "1"
chat:
  history:
    max_turns: 4
  clarification_phrases: ["qual unidade"]
modules:
  provider.echo: {}
  gateway.http:
    bind: "127.0.0.1:0"
`

func TestBuild_InvalidConfigPath(t *testing.T) {
	t.Parallel()

	_, err := Build(context.Background(), Params{ConfigPath: "/nonexistent/ragchat.yaml", LogOutput: io.Discard})
	if err == nil {
		t.Error("expected error for invalid config path")
	}
}

func TestBuild_InvalidConfig(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "modules:\n  provider.echo: {}\n")
	_, err := Build(context.Background(), Params{ConfigPath: path, LogOutput: io.Discard})
	if err == nil || !strings.Contains(err.Error(), "version") {
		t.Errorf("Build() error = %v, want version error", err)
	}
}

func TestBuild_WiresOrchestrator(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, echoConfig)
	rt, err := Build(context.Background(), Params{ConfigPath: path, Version: "1.0.0", LogOutput: io.Discard})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(func() { _ = rt.Stop() })

	if rt.ConfigPath != path {
		t.Errorf("ConfigPath = %q, want %q", rt.ConfigPath, path)
	}
	if _, ok := rt.App.Module("gateway.http"); !ok {
		t.Error("gateway.http not loaded")
	}
	if len(rt.Chain.HealthReport()) != 1 {
		t.Errorf("chain entries = %d, want 1", len(rt.Chain.HealthReport()))
	}

	res, err := rt.Orchestrator.HandleChat(context.Background(), "olá", "")
	if err != nil {
		t.Fatalf("HandleChat: %v", err)
	}
	if !strings.Contains(res.Text, "olá") || res.TurnCount != 1 {
		t.Errorf("HandleChat() = %+v", res)
	}
}

func TestBuild_Exclude(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, echoConfig)
	rt, err := Build(context.Background(), Params{
		ConfigPath: path,
		Exclude:    []string{"gateway.http"},
		LogOutput:  io.Discard,
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(func() { _ = rt.Stop() })

	if _, ok := rt.App.Module("gateway.http"); ok {
		t.Error("gateway.http loaded despite Exclude")
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, echoConfig)
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	if err := Run(ctx, Params{ConfigPath: path, LogOutput: io.Discard}); err != nil {
		t.Errorf("Run() = %v, want nil", err)
	}
}

func TestNewLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	redactor := security.NewRedactor()
	redactor.AddLiteral("s3cr3t-value")

	logger, err := NewLogger(&buf, config.LogConfig{Level: "warn", Format: "json"}, redactor)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	logger.Info("dropped")
	logger.Warn("kept", "token", "s3cr3t-value")

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Error("info record written at warn level")
	}
	if !strings.Contains(out, `"msg":"kept"`) {
		t.Errorf("output %q is not JSON or lacks the warn record", out)
	}
	if strings.Contains(out, "s3cr3t-value") {
		t.Errorf("output %q leaks the secret", out)
	}
}

func TestNewLogger_Invalid(t *testing.T) {
	t.Parallel()

	tests := []config.LogConfig{
		{Level: "loud"},
		{Format: "xml"},
	}
	for _, cfg := range tests {
		if _, err := NewLogger(io.Discard, cfg, nil); err == nil {
			t.Errorf("NewLogger(%+v) succeeded, want error", cfg)
		}
	}
}

func TestChatOptions(t *testing.T) {
	t.Parallel()

	temp := 0.2
	opts := chatOptions(config.ChatConfig{
		SystemInstruction: "sys",
		GenerationTimeout: 30 * time.Second,
		History:           config.HistoryConfig{MaxTurns: 6, MaxTokens: 2000, CharsPerToken: 3},
		Generation: config.GenerationConfig{
			Temperature: &temp,
			MaxTokens:   512,
			Safety:      []config.SafetyConfig{{Category: "HARM_CATEGORY_HATE_SPEECH", Threshold: "BLOCK_ONLY_HIGH"}},
		},
	})

	if opts.SystemInstruction != "sys" || opts.Timeout != 30*time.Second {
		t.Errorf("opts = %+v", opts)
	}
	if opts.Window.MaxTurns != 6 || opts.Window.MaxTokens != 2000 {
		t.Errorf("Window = %+v", opts.Window)
	}
	if *opts.Generation.Temperature != 0.2 || opts.Generation.MaxTokens != 512 {
		t.Errorf("Generation = %+v", opts.Generation)
	}
	if len(opts.Generation.Safety) != 1 || opts.Generation.Safety[0].Threshold != "BLOCK_ONLY_HIGH" {
		t.Errorf("Safety = %+v", opts.Generation.Safety)
	}
}
