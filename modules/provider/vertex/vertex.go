// Package vertex provides the Vertex AI Gemini provider module. Every
// request carries a retrieval tool bound to a RAG corpus, so answers are
// grounded on the documents indexed there.
//
// Initialization happens at Start and may fail (missing credentials, no
// corpus). The provider then reports not ready instead of aborting the
// process; the chain's health probes call HealthCheck, which retries.
package vertex

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"cloud.google.com/go/auth/httptransport"
	"github.com/serhrag/ragchat/internal/core"
	"github.com/serhrag/ragchat/internal/provider"
	"github.com/serhrag/ragchat/internal/security"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/genai"
	"gopkg.in/yaml.v3"
)

func init() {
	core.RegisterModule(&Provider{})
}

// contentGenerator is the slice of *genai.Models the provider uses.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// session is everything a successful initialization produces.
type session struct {
	models contentGenerator
	rag    *ragClient
	corpus ragCorpus
	bound  bool
	tools  []*genai.Tool
}

// Provider is the Vertex AI Gemini provider.
type Provider struct {
	config Config
	logger *slog.Logger
	tracer trace.Tracer
	creds  *security.CredentialProvider

	// connect builds a session; replaced in tests.
	connect func(ctx context.Context) (*session, error)

	initMu  sync.Mutex
	mu      sync.RWMutex
	sess    *session
	initErr error
}

// ModuleInfo implements core.Module.
func (p *Provider) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "provider.vertex",
		New: func() core.Module { return &Provider{} },
	}
}

// Configure implements core.Configurable.
func (p *Provider) Configure(node *yaml.Node) error {
	return node.Decode(&p.config)
}

// Provision implements core.Provisioner.
func (p *Provider) Provision(ctx *core.AppContext) error {
	p.config.defaults()
	p.logger = ctx.Logger
	p.tracer = otel.Tracer("github.com/serhrag/ragchat/modules/provider/vertex")
	p.creds = security.DefaultCredentialProvider(p.config.CredentialsFile)
	if p.connect == nil {
		p.connect = p.dial
	}
	return nil
}

// Validate implements core.Validator.
func (p *Provider) Validate() error {
	return p.config.validate()
}

// Start implements core.Starter. A failed initialization is logged and
// leaves the provider not ready; it never fails the process.
func (p *Provider) Start() error {
	ctx, cancel := context.WithTimeout(context.Background(), p.config.InitTimeout)
	defer cancel()

	if err := p.initialize(ctx); err != nil {
		p.logger.Warn("vertex initialization failed, serving as not ready", "error", err)
	}
	return nil
}

func (p *Provider) initialize(ctx context.Context) error {
	p.initMu.Lock()
	defer p.initMu.Unlock()

	if p.Ready() {
		return nil
	}

	sess, err := p.connect(ctx)
	if err != nil {
		p.mu.Lock()
		p.initErr = err
		p.mu.Unlock()
		return fmt.Errorf("%w: %w", provider.ErrNotReady, err)
	}

	p.mu.Lock()
	p.sess = sess
	p.initErr = nil
	p.mu.Unlock()

	attrs := []any{"model", p.config.Model, "project", p.config.Project, "location", p.config.Location}
	if sess.bound {
		attrs = append(attrs, "corpus", sess.corpus.DisplayName)
	}
	p.logger.Info("vertex ready", attrs...)
	return nil
}

// dial resolves credentials, opens the genai client and selects the corpus.
func (p *Provider) dial(ctx context.Context) (*session, error) {
	creds, source, err := p.creds.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	p.logger.Debug("credentials resolved", "source", source)

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Project:     p.config.Project,
		Location:    p.config.Location,
		Backend:     genai.BackendVertexAI,
		Credentials: creds,
	})
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}

	httpClient, err := httptransport.NewClient(&httptransport.Options{Credentials: creds})
	if err != nil {
		return nil, fmt.Errorf("creating rag client: %w", err)
	}

	sess := &session{
		models: client.Models,
		rag:    &ragClient{http: httpClient, base: p.config.Endpoint, parent: p.config.parent()},
	}
	if err := p.bindCorpus(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

func (p *Provider) bindCorpus(ctx context.Context, sess *session) error {
	if p.config.Retrieval.Disabled {
		return nil
	}
	corpus, err := selectCorpus(ctx, sess.rag, p.config)
	if err != nil {
		return fmt.Errorf("selecting corpus: %w", err)
	}
	sess.corpus = corpus
	sess.bound = true
	sess.tools = ragTools(corpus.Name, p.config.Retrieval)
	return nil
}

func (p *Provider) session() *session {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.sess
}

// Ready implements provider.Readier.
func (p *Provider) Ready() bool {
	return p.session() != nil
}

// InitError returns the error of the last failed initialization, if any.
func (p *Provider) InitError() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.initErr
}

// Complete implements provider.Provider.
func (p *Provider) Complete(ctx context.Context, req provider.CompletionRequest) (provider.CompletionResponse, error) {
	sess := p.session()
	if sess == nil {
		return provider.CompletionResponse{}, provider.ErrNotReady
	}

	ctx, span := p.tracer.Start(ctx, "vertex.generate", trace.WithAttributes(
		attribute.String("gen_ai.system", "vertex_ai"),
		attribute.String("gen_ai.request.model", p.config.Model),
		attribute.Int("gen_ai.request.messages", len(req.Messages)),
	))
	defer span.End()
	if sess.bound {
		span.SetAttributes(attribute.String("rag.corpus", sess.corpus.DisplayName))
	}

	system, contents := buildContents(req.Messages)
	res, err := sess.models.GenerateContent(ctx, p.config.Model, contents, buildConfig(req, system, sess.tools))
	if err != nil {
		err = mapError(ctx, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "generate content")
		return provider.CompletionResponse{}, err
	}

	cr, err := parseResponse(res)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "empty response")
		return cr, err
	}
	span.SetAttributes(
		attribute.String("gen_ai.response.finish_reason", string(cr.FinishReason)),
		attribute.Int("gen_ai.usage.input_tokens", cr.Usage.PromptTokens),
		attribute.Int("gen_ai.usage.output_tokens", cr.Usage.CompletionTokens),
	)
	return cr, nil
}

// ContextWindowSize implements provider.Provider.
func (p *Provider) ContextWindowSize() int {
	return p.config.ContextWindow
}

// ModelName implements provider.Provider.
func (p *Provider) ModelName() string {
	return p.config.Model
}

// ChainRole implements provider.ChainMember.
func (p *Provider) ChainRole() provider.Role {
	role, _ := provider.ParseRole(p.config.Role)
	return role
}

// HealthCheck implements provider.HealthChecker. Before initialization has
// succeeded it retries it; afterwards it reports healthy.
func (p *Provider) HealthCheck(ctx context.Context) error {
	if p.Ready() {
		return nil
	}
	return p.initialize(ctx)
}

// Corpus implements provider.CorpusBinder.
func (p *Provider) Corpus() (provider.CorpusInfo, bool) {
	sess := p.session()
	if sess == nil || !sess.bound {
		return provider.CorpusInfo{}, false
	}
	return sess.corpus.info(), true
}

// ListCorpora implements provider.CorpusLister.
func (p *Provider) ListCorpora(ctx context.Context) ([]provider.CorpusInfo, error) {
	sess := p.session()
	if sess == nil {
		return nil, provider.ErrNotReady
	}
	corpora, err := sess.rag.listCorpora(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]provider.CorpusInfo, len(corpora))
	for i, c := range corpora {
		out[i] = c.info()
	}
	return out, nil
}

var (
	_ core.Module            = (*Provider)(nil)
	_ core.Configurable      = (*Provider)(nil)
	_ core.Provisioner       = (*Provider)(nil)
	_ core.Validator         = (*Provider)(nil)
	_ core.Starter           = (*Provider)(nil)
	_ provider.Provider      = (*Provider)(nil)
	_ provider.HealthChecker = (*Provider)(nil)
	_ provider.Readier       = (*Provider)(nil)
	_ provider.CorpusBinder  = (*Provider)(nil)
	_ provider.CorpusLister  = (*Provider)(nil)
	_ provider.ChainMember   = (*Provider)(nil)
)
