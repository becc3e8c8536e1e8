// Package gateway is the HTTP surface of ragchat: health, chat, and
// conversation management over the turn orchestrator, plus corpus info,
// prometheus metrics, and a websocket chat endpoint.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/serhrag/ragchat/internal/chat"
	"github.com/serhrag/ragchat/internal/conversation"
	"github.com/serhrag/ragchat/internal/core"
	"github.com/serhrag/ragchat/internal/provider"
	"github.com/serhrag/ragchat/internal/security"
	"github.com/serhrag/ragchat/internal/telemetry"
	"gopkg.in/yaml.v3"
)

func init() {
	core.RegisterModule(&Gateway{})
}

// InfoService is the AppContext service name for the Info shown on GET /.
const InfoService = "gateway.info"

// Info identifies the running service.
type Info struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Chatter runs turns and manages conversations. *chat.Orchestrator
// satisfies it.
type Chatter interface {
	Ready() bool
	GenerationTimeout() time.Duration
	HandleChat(ctx context.Context, text, conversationID string) (chat.TurnResult, error)
	Conversation(ctx context.Context, id string) ([]conversation.Message, error)
	Delete(ctx context.Context, id string) error
	Conversations(ctx context.Context) ([]conversation.Summary, error)
}

// Backends reports on the generation backends. *provider.Chain satisfies it.
type Backends interface {
	Corpus() (provider.CorpusInfo, bool)
	ListCorpora(ctx context.Context) ([]provider.CorpusInfo, error)
	HealthReport() []provider.EntryStatus
}

// Compile-time interface guards.
var (
	_ Chatter            = (*chat.Orchestrator)(nil)
	_ Backends           = (*provider.Chain)(nil)
	_ core.Configurable  = (*Gateway)(nil)
	_ core.Provisioner   = (*Gateway)(nil)
	_ core.Validator     = (*Gateway)(nil)
	_ core.Starter       = (*Gateway)(nil)
	_ core.Stopper       = (*Gateway)(nil)
)

// Gateway is the HTTP gateway module. It is a leaf module; nothing imports it.
type Gateway struct {
	config  Config
	appCtx  *core.AppContext
	logger  *slog.Logger
	server  *http.Server
	addr    net.Addr
	info    Info
	metrics http.Handler

	chatLimiter *security.RateLimiter
	authLimiter *security.RateLimiter

	// Resolved lazily at Start() via the service registry.
	chat     Chatter
	backends Backends
}

// ModuleInfo implements core.Module.
func (g *Gateway) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "gateway.http",
		New: func() core.Module { return &Gateway{} },
	}
}

// Configure implements core.Configurable.
func (g *Gateway) Configure(node *yaml.Node) error {
	if err := node.Decode(&g.config); err != nil {
		return fmt.Errorf("gateway: decode config: %w", err)
	}
	return nil
}

// Provision implements core.Provisioner.
func (g *Gateway) Provision(ctx *core.AppContext) error {
	g.config.defaults()
	g.appCtx = ctx
	g.logger = ctx.Logger
	g.info = Info{Name: "ragchat"}
	g.chatLimiter = security.NewRateLimiter(g.config.RateLimit.ChatPerMinute, time.Minute)
	g.authLimiter = security.NewRateLimiter(g.config.RateLimit.AuthPerMinute, time.Minute)

	if svc, ok := ctx.Service(security.RedactorService); ok {
		if r, ok := svc.(*security.Redactor); ok {
			r.AddLiteral(g.config.Auth.BearerToken)
			r.AddLiteral(g.config.Auth.BasicPass)
		}
	}
	return nil
}

// Validate implements core.Validator.
func (g *Gateway) Validate() error {
	return g.config.validate()
}

// Start implements core.Starter. It resolves dependencies from the service
// registry and starts the HTTP server.
func (g *Gateway) Start() error {
	g.resolveServices()
	if g.chat == nil {
		return errors.New("gateway: no chat orchestrator registered")
	}

	g.server = &http.Server{
		Addr:              g.config.Bind,
		Handler:           g.buildRouter(),
		ReadTimeout:       g.config.ReadTimeout,
		ReadHeaderTimeout: g.config.ReadTimeout,
		WriteTimeout:      g.config.WriteTimeout,
		ErrorLog:          slog.NewLogLogger(g.logger.Handler(), slog.LevelWarn),
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(context.Background(), "tcp", g.config.Bind)
	if err != nil {
		return fmt.Errorf("gateway: listen failed: %w", err)
	}
	g.addr = ln.Addr()

	go func() {
		g.logger.Info("gateway listening", "addr", g.addr.String())
		if err := g.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error("gateway serve error", "error", err)
		}
	}()

	return nil
}

// Stop implements core.Stopper. Graceful shutdown with configured timeout.
func (g *Gateway) Stop(ctx context.Context) error {
	if g.server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, g.config.ShutdownTimeout)
	defer cancel()

	g.logger.Info("gateway shutting down")
	return g.server.Shutdown(shutdownCtx)
}

// Addr returns the listening address once started.
func (g *Gateway) Addr() net.Addr {
	return g.addr
}

func (g *Gateway) resolveServices() {
	if svc, ok := g.appCtx.Service(chat.OrchestratorService); ok {
		if c, ok := svc.(Chatter); ok {
			g.chat = c
		}
	}
	if svc, ok := g.appCtx.Service(provider.ChainService); ok {
		if b, ok := svc.(Backends); ok {
			g.backends = b
		}
	}
	if svc, ok := g.appCtx.Service(telemetry.MetricsService); ok {
		if h, ok := svc.(http.Handler); ok {
			g.metrics = h
		}
	}
	if svc, ok := g.appCtx.Service(InfoService); ok {
		if info, ok := svc.(Info); ok {
			g.info = info
		}
	}
}
