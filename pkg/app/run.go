// Package app assembles ragchat from configuration: logging, telemetry,
// the module lifecycle, and the chat orchestrator shared by the HTTP
// gateway and the MCP server.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/serhrag/ragchat/internal/chat"
	"github.com/serhrag/ragchat/internal/config"
	"github.com/serhrag/ragchat/internal/core"
	"github.com/serhrag/ragchat/internal/gateway"
	"github.com/serhrag/ragchat/internal/provider"
	"github.com/serhrag/ragchat/internal/security"
	"github.com/serhrag/ragchat/internal/telemetry"
)

// Name is the product name reported by /, /health and the MCP handshake.
const Name = "ragchat"

const telemetryShutdownTimeout = 5 * time.Second

// Params configures Build.
type Params struct {
	// ConfigPath is an explicit path to the YAML configuration file.
	// If empty, config.Locate searches the standard locations.
	ConfigPath string

	// Version, Commit, and Date are injected at build time via ldflags.
	Version string
	Commit  string
	Date    string

	// Exclude drops module IDs from the configured set, e.g. the HTTP
	// gateway when serving MCP over stdio.
	Exclude []string

	// LogOutput receives log records. Defaults to os.Stderr.
	LogOutput io.Writer
}

// Runtime is a fully wired application that has not been started yet.
type Runtime struct {
	App          *core.App
	Config       *config.Config
	ConfigPath   string
	Chain        *provider.Chain
	Orchestrator *chat.Orchestrator
	Logger       *slog.Logger

	telemetry *telemetry.Telemetry
}

// Build loads and validates configuration, then provisions every
// configured module and wires the orchestrator. Nothing is started.
func Build(ctx context.Context, params Params) (*Runtime, error) {
	cfgPath, err := config.Locate(params.ConfigPath)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	out := params.LogOutput
	if out == nil {
		out = os.Stderr
	}
	redactor := security.NewRedactor()
	logger, err := NewLogger(out, cfg.Log, redactor)
	if err != nil {
		return nil, err
	}

	version := params.Version
	if version == "" {
		version = "dev"
	}
	tel, err := telemetry.New(ctx, telemetry.Config{
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: version,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRatio:    cfg.Telemetry.SampleRatio,
	}, logger)
	if err != nil {
		return nil, err
	}
	tel.InstallGlobal()

	appCtx := core.NewAppContext(logger).WithModuleConfigs(cfg.Modules)
	appCtx.RegisterService(security.RedactorService, redactor)
	appCtx.RegisterService(telemetry.MetricsService, tel.MetricsHandler())
	appCtx.RegisterService(gateway.InfoService, gateway.Info{Name: Name, Version: version})

	application := core.NewApp(appCtx)
	ids := config.Without(config.Resolve(cfg), params.Exclude...)
	if err := application.LoadModules(ids); err != nil {
		return nil, shutdownOnError(tel, err)
	}

	chain, orch, err := wireChat(application, appCtx, cfg, tel, logger)
	if err != nil {
		application.Stop()
		return nil, shutdownOnError(tel, err)
	}

	logger.Info("application built",
		"version", version,
		"commit", params.Commit,
		"config", cfgPath,
		"modules", len(application.Modules()),
	)

	return &Runtime{
		App:          application,
		Config:       cfg,
		ConfigPath:   cfgPath,
		Chain:        chain,
		Orchestrator: orch,
		Logger:       logger,
		telemetry:    tel,
	}, nil
}

// Run starts every module and blocks until ctx is cancelled, then stops
// them and flushes telemetry. Callers wire OS signals into ctx.
func (r *Runtime) Run(ctx context.Context) error {
	err := r.App.Run(ctx)
	if shutdownErr := r.shutdownTelemetry(); err == nil {
		err = shutdownErr
	}
	return err
}

// Start starts every module without blocking. Pair it with Stop.
func (r *Runtime) Start() error {
	if err := r.App.Start(); err != nil {
		return shutdownOnError(r.telemetry, err)
	}
	return nil
}

// Stop stops every module and flushes telemetry.
func (r *Runtime) Stop() error {
	r.App.Stop()
	return r.shutdownTelemetry()
}

func (r *Runtime) shutdownTelemetry() error {
	ctx, cancel := context.WithTimeout(context.Background(), telemetryShutdownTimeout)
	defer cancel()
	return r.telemetry.Shutdown(ctx)
}

// Run builds the application and serves until ctx is cancelled.
func Run(ctx context.Context, params Params) error {
	rt, err := Build(ctx, params)
	if err != nil {
		return err
	}
	return rt.Run(ctx)
}

// NewLogger builds the root logger. Records pass through the redactor
// before reaching the text or JSON handler.
func NewLogger(w io.Writer, cfg config.LogConfig, redactor *security.Redactor) (*slog.Logger, error) {
	var level slog.Level
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
	}
	opts := &slog.HandlerOptions{Level: level}

	var inner slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "", "text":
		inner = slog.NewTextHandler(w, opts)
	case "json":
		inner = slog.NewJSONHandler(w, opts)
	default:
		return nil, fmt.Errorf("log format %q must be text or json", cfg.Format)
	}

	if redactor == nil {
		return slog.New(inner), nil
	}
	return slog.New(security.NewRedactingHandler(inner, redactor)), nil
}

func shutdownOnError(tel *telemetry.Telemetry, err error) error {
	ctx, cancel := context.WithTimeout(context.Background(), telemetryShutdownTimeout)
	defer cancel()
	_ = tel.Shutdown(ctx)
	return err
}
