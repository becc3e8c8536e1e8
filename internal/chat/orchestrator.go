// Package chat runs conversation turns: it validates input, serializes
// work per conversation, calls the generation backend with the
// conversation so far, and commits the user and assistant messages
// together only when generation succeeds.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/serhrag/ragchat/internal/conversation"
	"github.com/serhrag/ragchat/internal/provider"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OrchestratorService is the AppContext service name of the *Orchestrator.
const OrchestratorService = "chat.orchestrator"

// DefaultTimeout bounds each generation call when Options.Timeout is zero.
const DefaultTimeout = 60 * time.Second

// Generator is the generation backend. *provider.Chain satisfies it.
type Generator interface {
	Complete(ctx context.Context, role provider.Role, req provider.CompletionRequest) (provider.CompletionResponse, error)
	Ready() bool
}

// GenerationOptions are passed through to the model on every call.
// Nil pointers leave the model default in place.
type GenerationOptions struct {
	Temperature *float64
	TopP        *float64
	TopK        *int
	MaxTokens   int
	Safety      []provider.SafetySetting
}

// Options tune how turns are run.
type Options struct {
	// SystemInstruction is sent ahead of the history on every call and is
	// never stored.
	SystemInstruction string

	Generation GenerationOptions

	// Timeout bounds each generation call. Zero means DefaultTimeout.
	Timeout time.Duration

	// Window limits the history resent per call. The zero value resends
	// the full transcript.
	Window Window
}

// Config groups the orchestrator's dependencies.
type Config struct {
	Store      conversation.Store
	Generator  Generator
	Locks      *conversation.LaneLock
	Classifier *Classifier
	Metrics    *Metrics
	Tracer     trace.Tracer
	Logger     *slog.Logger
	Options    Options

	// Now is injectable for tests. Defaults to time.Now.
	Now func() time.Time
}

// TurnResult is the outcome of one successful turn.
type TurnResult struct {
	Text                string
	ConversationID      string
	TurnCount           int
	AskingClarification bool
}

// Orchestrator runs chat turns against a store and a generator.
// It is safe for concurrent use.
type Orchestrator struct {
	store      conversation.Store
	gen        Generator
	locks      *conversation.LaneLock
	classifier *Classifier
	metrics    *Metrics
	tracer     trace.Tracer
	logger     *slog.Logger
	opts       Options
	now        func() time.Time
}

// NewOrchestrator validates cfg and fills defaults.
func NewOrchestrator(cfg Config) (*Orchestrator, error) {
	if cfg.Store == nil {
		return nil, errors.New("chat: store is required")
	}
	if cfg.Generator == nil {
		return nil, errors.New("chat: generator is required")
	}
	if cfg.Locks == nil {
		cfg.Locks = conversation.NewLaneLock()
	}
	if cfg.Classifier == nil {
		cfg.Classifier = NewClassifier()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = otel.Tracer("github.com/serhrag/ragchat/internal/chat")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Options.Timeout <= 0 {
		cfg.Options.Timeout = DefaultTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Orchestrator{
		store:      cfg.Store,
		gen:        cfg.Generator,
		locks:      cfg.Locks,
		classifier: cfg.Classifier,
		metrics:    cfg.Metrics,
		tracer:     cfg.Tracer,
		logger:     cfg.Logger.With("component", "chat"),
		opts:       cfg.Options,
		now:        cfg.Now,
	}, nil
}

// GenerationTimeout is the bound applied to each backend call.
func (o *Orchestrator) GenerationTimeout() time.Duration {
	return o.opts.Timeout
}

// Ready reports whether the generator can take turns.
func (o *Orchestrator) Ready() bool {
	return o.gen.Ready()
}

// HandleChat runs one turn. An empty conversationID starts a new
// conversation. On any error the store is left unchanged.
func (o *Orchestrator) HandleChat(ctx context.Context, text, conversationID string) (TurnResult, error) {
	ctx, span := o.tracer.Start(ctx, "chat.turn",
		trace.WithAttributes(attribute.Bool("chat.new_conversation", conversationID == "")),
	)
	defer span.End()

	res, err := o.handleChat(ctx, text, conversationID)

	outcome := Outcome(err)
	o.metrics.observeTurn(outcome)
	span.SetAttributes(attribute.String("chat.outcome", outcome))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		return TurnResult{}, err
	}
	span.SetAttributes(
		attribute.String("chat.conversation_id", res.ConversationID),
		attribute.Int("chat.turn_count", res.TurnCount),
	)
	return res, nil
}

func (o *Orchestrator) handleChat(ctx context.Context, text, id string) (TurnResult, error) {
	if strings.TrimSpace(text) == "" {
		return TurnResult{}, ErrEmptyInput
	}
	id = strings.TrimSpace(id)
	if id != "" {
		if err := conversation.ValidateID(id); err != nil {
			return TurnResult{}, fmt.Errorf("%w: %w", ErrInvalidConversationID, err)
		}
	}
	if !o.gen.Ready() {
		return TurnResult{}, ErrNotReady
	}

	if id == "" {
		var err error
		if id, err = conversation.NewID(o.now()); err != nil {
			return TurnResult{}, err
		}
		o.logger.Info("conversation started", "conversation_id", id)
	}

	o.locks.Acquire(id)
	defer o.locks.Release(id)

	history, _, err := o.store.Get(ctx, id)
	if err != nil {
		return TurnResult{}, fmt.Errorf("chat: read history: %w", err)
	}

	userMsg := conversation.Message{Role: conversation.RoleUser, Content: text}
	working := append(slices.Clip(history), userMsg)

	resp, err := o.generate(ctx, working)
	if err != nil {
		if errors.Is(err, provider.ErrNotReady) && !o.gen.Ready() {
			return TurnResult{}, ErrNotReady
		}
		o.logger.Error("generation failed",
			"conversation_id", id,
			"history_len", len(history),
			"error", err,
		)
		return TurnResult{}, &GenerationError{ConversationID: id, Err: err}
	}

	assistantMsg := conversation.Message{Role: conversation.RoleAssistant, Content: resp.Content}
	// The reply is already paid for; a client hanging up now must not drop it.
	if err := o.store.Append(context.WithoutCancel(ctx), id, userMsg, assistantMsg); err != nil {
		return TurnResult{}, fmt.Errorf("chat: save turn: %w", err)
	}
	o.refreshCount(ctx)

	res := TurnResult{
		Text:                resp.Content,
		ConversationID:      id,
		TurnCount:           conversation.CountRole(history, conversation.RoleUser) + 1,
		AskingClarification: o.classifier.IsAskingClarification(resp.Content),
	}
	o.logger.Debug("turn completed",
		"conversation_id", id,
		"turn_count", res.TurnCount,
		"asking_clarification", res.AskingClarification,
	)
	return res, nil
}

// generate calls the backend with the windowed history under the
// configured timeout.
func (o *Orchestrator) generate(ctx context.Context, working []conversation.Message) (provider.CompletionResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, o.opts.Timeout)
	defer cancel()

	start := o.now()
	resp, err := o.gen.Complete(ctx, provider.RolePrimary, o.buildRequest(working))
	o.metrics.observeGeneration(o.now().Sub(start))
	return resp, err
}

func (o *Orchestrator) buildRequest(working []conversation.Message) provider.CompletionRequest {
	sent := o.opts.Window.Apply(working)

	msgs := make([]provider.LLMMessage, 0, len(sent)+1)
	if o.opts.SystemInstruction != "" {
		msgs = append(msgs, provider.LLMMessage{
			Role:    provider.MessageRoleSystem,
			Content: o.opts.SystemInstruction,
		})
	}
	for _, m := range sent {
		role := provider.MessageRoleUser
		if m.Role == conversation.RoleAssistant {
			role = provider.MessageRoleAssistant
		}
		msgs = append(msgs, provider.LLMMessage{Role: role, Content: m.Content})
	}

	g := o.opts.Generation
	return provider.CompletionRequest{
		Messages:    msgs,
		MaxTokens:   g.MaxTokens,
		Temperature: g.Temperature,
		TopP:        g.TopP,
		TopK:        g.TopK,
		Safety:      g.Safety,
	}
}

// Conversation returns the stored history for id.
func (o *Orchestrator) Conversation(ctx context.Context, id string) ([]conversation.Message, error) {
	msgs, ok, err := o.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("chat: read history: %w", err)
	}
	if !ok {
		return nil, ErrUnknownConversation
	}
	return msgs, nil
}

// Delete removes a conversation. It waits for any in-flight turn on the
// same conversation to finish first.
func (o *Orchestrator) Delete(ctx context.Context, id string) error {
	o.locks.Acquire(id)
	defer o.locks.Release(id)

	existed, err := o.store.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("chat: delete conversation: %w", err)
	}
	if !existed {
		return ErrUnknownConversation
	}
	o.refreshCount(ctx)
	o.logger.Info("conversation deleted", "conversation_id", id)
	return nil
}

// Conversations lists every stored conversation.
func (o *Orchestrator) Conversations(ctx context.Context) ([]conversation.Summary, error) {
	list, err := o.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("chat: list conversations: %w", err)
	}
	return list, nil
}

func (o *Orchestrator) refreshCount(ctx context.Context) {
	if o.metrics == nil {
		return
	}
	n, err := o.store.Len(ctx)
	if err != nil {
		o.logger.Warn("count conversations", "error", err)
		return
	}
	o.metrics.setConversations(n)
}
