package gateway

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/serhrag/ragchat/internal/chat"
	"github.com/serhrag/ragchat/internal/conversation"
	"github.com/serhrag/ragchat/internal/provider"
	"github.com/serhrag/ragchat/internal/provider/providertest"
	"github.com/serhrag/ragchat/internal/security"
	"gopkg.in/yaml.v3"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testEnv is a gateway wired to a real orchestrator over a memory store
// and a mock provider.
type testEnv struct {
	gw      *Gateway
	handler http.Handler
	store   *conversation.MemoryStore
	mock    *providertest.MockProvider
}

func newTestEnv(t *testing.T, mock *providertest.MockProvider, mutate func(*Config)) *testEnv {
	t.Helper()

	var cfg Config
	if mutate != nil {
		mutate(&cfg)
	}
	cfg.defaults()

	chain, err := provider.NewChain([]provider.ChainEntry{{Name: "mock", Provider: mock}})
	if err != nil {
		t.Fatalf("NewChain: %v", err)
	}
	store := conversation.NewMemoryStore()
	orch, err := chat.NewOrchestrator(chat.Config{
		Store:     store,
		Generator: chain,
		Logger:    discardLogger(),
	})
	if err != nil {
		t.Fatalf("NewOrchestrator: %v", err)
	}

	g := &Gateway{
		config:      cfg,
		logger:      discardLogger(),
		info:        Info{Name: "ragchat", Version: "test"},
		chat:        orch,
		backends:    chain,
		chatLimiter: security.NewRateLimiter(cfg.RateLimit.ChatPerMinute, time.Minute),
		authLimiter: security.NewRateLimiter(cfg.RateLimit.AuthPerMinute, time.Minute),
	}
	return &testEnv{gw: g, handler: g.buildRouter(), store: store, mock: mock}
}

// do sends a request through the router. Extra headers come in name/value
// pairs.
func (e *testEnv) do(t *testing.T, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()

	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	return rr
}

// chatOK posts text and fails the test unless the turn succeeds.
func (e *testEnv) chatOK(t *testing.T, text, conversationID string) ChatResponse {
	t.Helper()

	body, _ := json.Marshal(ChatRequest{Text: text, ConversationID: conversationID})
	rr := e.do(t, http.MethodPost, "/chat", string(body))
	if rr.Code != http.StatusOK {
		t.Fatalf("POST /chat status = %d, body = %s", rr.Code, rr.Body.String())
	}
	return decodeBody[ChatResponse](t, rr)
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %T: %v (body %q)", v, err, rr.Body.String())
	}
	return v
}

func mustYAMLNode(t *testing.T, src string) *yaml.Node {
	t.Helper()

	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(src), &doc); err != nil {
		t.Fatalf("yaml.Unmarshal: %v", err)
	}
	if len(doc.Content) == 0 {
		return &yaml.Node{Kind: yaml.MappingNode}
	}
	return doc.Content[0]
}
