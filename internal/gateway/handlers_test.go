package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/serhrag/ragchat/internal/conversation"
	"github.com/serhrag/ragchat/internal/provider"
	"github.com/serhrag/ragchat/internal/provider/providertest"
)

func TestChat_Scenario(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, providertest.Reply("Olá!"), nil)

	first := env.chatOK(t, "Hello", "")
	if first.ConversationID == "" {
		t.Fatal("conversation_id is empty")
	}
	if first.TurnCount != 1 {
		t.Errorf("turn_count = %d, want 1", first.TurnCount)
	}
	if first.Response != "Olá!" {
		t.Errorf("response = %q, want %q", first.Response, "Olá!")
	}

	second := env.chatOK(t, "follow up", first.ConversationID)
	if second.ConversationID != first.ConversationID {
		t.Errorf("conversation_id = %q, want %q", second.ConversationID, first.ConversationID)
	}
	if second.TurnCount != 2 {
		t.Errorf("turn_count = %d, want 2", second.TurnCount)
	}

	path := "/conversation/" + first.ConversationID
	rr := env.do(t, http.MethodGet, path, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("GET %s status = %d", path, rr.Code)
	}
	conv := decodeBody[ConversationResponse](t, rr)
	if conv.MessageCount != 4 || len(conv.Messages) != 4 {
		t.Fatalf("message_count = %d, len = %d, want 4", conv.MessageCount, len(conv.Messages))
	}
	wantRoles := []conversation.Role{
		conversation.RoleUser, conversation.RoleAssistant,
		conversation.RoleUser, conversation.RoleAssistant,
	}
	for i, m := range conv.Messages {
		if m.Role != wantRoles[i] {
			t.Errorf("messages[%d].role = %q, want %q", i, m.Role, wantRoles[i])
		}
	}
	if conv.Messages[2].Content != "follow up" {
		t.Errorf("messages[2].content = %q, want %q", conv.Messages[2].Content, "follow up")
	}

	if rr := env.do(t, http.MethodDelete, path, ""); rr.Code != http.StatusOK {
		t.Fatalf("DELETE status = %d, want %d", rr.Code, http.StatusOK)
	}
	if rr := env.do(t, http.MethodGet, path, ""); rr.Code != http.StatusNotFound {
		t.Errorf("GET after delete status = %d, want %d", rr.Code, http.StatusNotFound)
	}
	if rr := env.do(t, http.MethodDelete, path, ""); rr.Code != http.StatusNotFound {
		t.Errorf("second DELETE status = %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestChat_FreshIDs(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, providertest.Reply("ok"), nil)
	seen := make(map[string]bool)
	for range 5 {
		id := env.chatOK(t, "hi", "").ConversationID
		if seen[id] {
			t.Fatalf("conversation_id %q reused", id)
		}
		seen[id] = true
	}
}

func TestChat_ReadIsIdempotent(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, providertest.Reply("ok"), nil)
	id := env.chatOK(t, "hi", "").ConversationID

	a := env.do(t, http.MethodGet, "/conversation/"+id, "").Body.String()
	b := env.do(t, http.MethodGet, "/conversation/"+id, "").Body.String()
	if a != b {
		t.Errorf("reads differ:\n%s\n%s", a, b)
	}
}

func TestChat_EmptyInput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
	}{
		{"empty text", `{"text":""}`},
		{"whitespace", `{"text":"   \n\t"}`},
		{"missing text", `{}`},
		{"whitespace with id", `{"text":" ","conversation_id":"c1"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			env := newTestEnv(t, providertest.Reply("ok"), nil)
			rr := env.do(t, http.MethodPost, "/chat", tt.body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want %d", rr.Code, http.StatusBadRequest)
			}
			if got := decodeBody[errorResponse](t, rr).Error; got != msgEmptyInput {
				t.Errorf("error = %q, want %q", got, msgEmptyInput)
			}
			if n, _ := env.store.Len(context.Background()); n != 0 {
				t.Errorf("store has %d conversations, want 0", n)
			}
			if env.mock.CompleteCalls() != 0 {
				t.Error("provider was called for empty input")
			}
		})
	}
}

func TestChat_MessageAlias(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, providertest.Reply("ok"), nil)
	rr := env.do(t, http.MethodPost, "/chat", `{"message":"oi"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	if got := decodeBody[ChatResponse](t, rr).TurnCount; got != 1 {
		t.Errorf("turn_count = %d, want 1", got)
	}
}

func TestChat_BadBody(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"invalid json", `{"text":`, http.StatusBadRequest},
		{"no body", "", http.StatusBadRequest},
		{"too large", `{"text":"` + strings.Repeat("a", 64) + `"}`, http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			env := newTestEnv(t, providertest.Reply("ok"), func(c *Config) { c.MaxBodyBytes = 32 })
			rr := env.do(t, http.MethodPost, "/chat", tt.body)
			if rr.Code != tt.status {
				t.Errorf("status = %d, want %d (body %s)", rr.Code, tt.status, rr.Body.String())
			}
		})
	}
}

func TestChat_NotReady(t *testing.T) {
	t.Parallel()

	mock := providertest.Reply("ok")
	mock.ReadyFunc = func() bool { return false }
	env := newTestEnv(t, mock, nil)

	rr := env.do(t, http.MethodPost, "/chat", `{"text":"hi"}`)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusServiceUnavailable)
	}
	if n, _ := env.store.Len(context.Background()); n != 0 {
		t.Errorf("store has %d conversations, want 0", n)
	}
}

func TestChat_GenerationErrorIsGeneric(t *testing.T) {
	t.Parallel()

	upstream := errors.New("permission denied on projects/serhrag/secret-detail")
	env := newTestEnv(t, providertest.Reply("ok"), nil)
	id := env.chatOK(t, "first", "").ConversationID

	env.mock.CompleteFunc = providertest.Fail(upstream).CompleteFunc
	rr := env.do(t, http.MethodPost, "/chat", `{"text":"second","conversation_id":"`+id+`"}`)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusInternalServerError)
	}
	body := rr.Body.String()
	if strings.Contains(body, "secret-detail") {
		t.Errorf("response leaks upstream error: %s", body)
	}
	if got := decodeBody[errorResponse](t, rr).Error; got != msgGenerationError {
		t.Errorf("error = %q, want %q", got, msgGenerationError)
	}

	conv := decodeBody[ConversationResponse](t, env.do(t, http.MethodGet, "/conversation/"+id, ""))
	if conv.MessageCount != 2 {
		t.Errorf("message_count = %d, want 2 (failed turn must not be stored)", conv.MessageCount)
	}
}

func TestChat_CallerConversationID(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, providertest.Reply("ok"), nil)

	res := env.chatOK(t, "oi", "  ticket-42  ")
	if res.ConversationID != "ticket-42" {
		t.Fatalf("conversation_id = %q, want %q", res.ConversationID, "ticket-42")
	}
	if rr := env.do(t, http.MethodGet, "/conversation/ticket-42", ""); rr.Code != http.StatusOK {
		t.Errorf("GET caller id: status = %d, want %d", rr.Code, http.StatusOK)
	}

	for _, bad := range []string{"a/b", strings.Repeat("x", conversation.MaxIDLength+1)} {
		body, _ := json.Marshal(ChatRequest{Text: "oi", ConversationID: bad})
		rr := env.do(t, http.MethodPost, "/chat", string(body))
		if rr.Code != http.StatusBadRequest {
			t.Errorf("id %.20q: status = %d, want %d", bad, rr.Code, http.StatusBadRequest)
			continue
		}
		if got := decodeBody[errorResponse](t, rr).Error; got != msgInvalidID {
			t.Errorf("id %.20q: error = %q, want %q", bad, got, msgInvalidID)
		}
	}
	if got := env.mock.CompleteCalls(); got != 1 {
		t.Errorf("provider calls = %d, want 1", got)
	}
}

func TestChat_UpstreamDownThenCoolingDown(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	mock := &providertest.MockProvider{
		CompleteFunc: func(context.Context, provider.CompletionRequest) (provider.CompletionResponse, error) {
			if calls.Add(1) == 1 {
				return provider.CompletionResponse{}, provider.ErrProviderDown
			}
			return provider.CompletionResponse{Content: "ok"}, nil
		},
	}
	env := newTestEnv(t, mock, nil)

	rr := env.do(t, http.MethodPost, "/chat", `{"text":"hi"}`)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("first turn: status = %d, want %d", rr.Code, http.StatusInternalServerError)
	}

	// The only backend is now backing off: the service is unavailable, not failing.
	rr = env.do(t, http.MethodPost, "/chat", `{"text":"hi again"}`)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("second turn: status = %d, want %d (body %s)", rr.Code, http.StatusServiceUnavailable, rr.Body.String())
	}
	if got := decodeBody[errorResponse](t, rr).Error; got != msgNotReady {
		t.Errorf("error = %q, want %q", got, msgNotReady)
	}
	if got := mock.CompleteCalls(); got != 1 {
		t.Errorf("upstream calls = %d, want 1", got)
	}

	rr = env.do(t, http.MethodGet, "/health", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("health: status = %d, want %d", rr.Code, http.StatusServiceUnavailable)
	}
	health := decodeBody[HealthResponse](t, rr)
	if health.Status != statusUnavailable {
		t.Errorf("health status = %q, want %q", health.Status, statusUnavailable)
	}
	if len(health.Providers) != 1 || health.Providers[0].State != provider.HealthCooldown {
		t.Errorf("providers = %+v, want one entry in cooldown", health.Providers)
	}
}

func TestChat_RateLimited(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, providertest.Reply("ok"), func(c *Config) { c.RateLimit.ChatPerMinute = 1 })
	env.chatOK(t, "one", "")

	rr := env.do(t, http.MethodPost, "/chat", `{"text":"two"}`)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusTooManyRequests)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Error("Retry-After header missing")
	}
}

func TestChat_ClarificationAndCorpus(t *testing.T) {
	t.Parallel()

	mock := providertest.Reply("Do you mean the vacation policy or the leave policy?")
	mock.CorpusFunc = func() (provider.CorpusInfo, bool) {
		return provider.CorpusInfo{Name: "rh-docs", ID: "projects/p/locations/l/ragCorpora/1"}, true
	}
	env := newTestEnv(t, mock, nil)

	res := env.chatOK(t, "policy?", "")
	if !res.AskingClarification {
		t.Error("asking_clarification = false, want true")
	}
	if res.Corpus != "rh-docs" {
		t.Errorf("corpus = %q, want %q", res.Corpus, "rh-docs")
	}
}

func TestConversations_List(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, providertest.Reply("ok"), nil)
	a := env.chatOK(t, "a", "").ConversationID
	env.chatOK(t, "a2", a)
	b := env.chatOK(t, "b", "").ConversationID

	rr := env.do(t, http.MethodGet, "/conversations", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	got := decodeBody[ConversationsResponse](t, rr)
	if got.Total != 2 || len(got.Conversations) != 2 {
		t.Fatalf("total = %d, len = %d, want 2", got.Total, len(got.Conversations))
	}
	counts := map[string]int{}
	for _, c := range got.Conversations {
		counts[c.ID] = c.MessageCount
	}
	if counts[a] != 4 || counts[b] != 2 {
		t.Errorf("counts = %v, want %s:4 %s:2", counts, a, b)
	}
}

func TestConversations_EmptyListIsArray(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, providertest.Reply("ok"), nil)
	rr := env.do(t, http.MethodGet, "/conversations", "")
	if !strings.Contains(rr.Body.String(), `"conversations":[]`) {
		t.Errorf("body = %s, want empty array", rr.Body.String())
	}
}

func TestConversation_Unknown(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, providertest.Reply("ok"), nil)
	for _, method := range []string{http.MethodGet, http.MethodDelete} {
		rr := env.do(t, method, "/conversation/nope", "")
		if rr.Code != http.StatusNotFound {
			t.Errorf("%s status = %d, want %d", method, rr.Code, http.StatusNotFound)
		}
		if got := decodeBody[errorResponse](t, rr).Error; got != msgUnknown {
			t.Errorf("%s error = %q, want %q", method, got, msgUnknown)
		}
	}
}

func TestManagementAuth(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, providertest.Reply("ok"), func(c *Config) {
		c.Auth.BearerToken = "admin-token"
	})

	if rr := env.do(t, http.MethodGet, "/conversations", ""); rr.Code != http.StatusUnauthorized {
		t.Errorf("no token: status = %d, want %d", rr.Code, http.StatusUnauthorized)
	}
	if rr := env.do(t, http.MethodGet, "/conversations", "", "Authorization", "Bearer admin-token"); rr.Code != http.StatusOK {
		t.Errorf("with token: status = %d, want %d", rr.Code, http.StatusOK)
	}
	if rr := env.do(t, http.MethodPost, "/chat", `{"text":"hi"}`); rr.Code != http.StatusOK {
		t.Errorf("chat without token: status = %d, want %d", rr.Code, http.StatusOK)
	}
}

func TestHealth(t *testing.T) {
	t.Parallel()

	t.Run("ready", func(t *testing.T) {
		t.Parallel()

		mock := providertest.Reply("ok")
		mock.CorpusFunc = func() (provider.CorpusInfo, bool) {
			return provider.CorpusInfo{Name: "rh-docs", ID: "x"}, true
		}
		env := newTestEnv(t, mock, nil)
		env.chatOK(t, "hi", "")

		rr := env.do(t, http.MethodGet, "/health", "")
		if rr.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
		}
		got := decodeBody[HealthResponse](t, rr)
		if got.Status != statusOK {
			t.Errorf("status = %q, want %q", got.Status, statusOK)
		}
		if got.Corpus != "rh-docs" {
			t.Errorf("corpus = %q, want %q", got.Corpus, "rh-docs")
		}
		if got.Conversations != 1 {
			t.Errorf("conversations = %d, want 1", got.Conversations)
		}
		if len(got.Providers) != 1 || got.Providers[0].Name != "mock" {
			t.Errorf("providers = %+v, want one mock entry", got.Providers)
		}
	})

	t.Run("initializing", func(t *testing.T) {
		t.Parallel()

		mock := providertest.Reply("ok")
		mock.ReadyFunc = func() bool { return false }
		env := newTestEnv(t, mock, nil)

		rr := env.do(t, http.MethodGet, "/health", "")
		if rr.Code != http.StatusServiceUnavailable {
			t.Fatalf("status = %d, want %d", rr.Code, http.StatusServiceUnavailable)
		}
		if got := decodeBody[HealthResponse](t, rr).Status; got != statusInitializing {
			t.Errorf("status = %q, want %q", got, statusInitializing)
		}
	})
}

func TestInfo(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, providertest.Reply("ok"), nil)
	got := decodeBody[InfoResponse](t, env.do(t, http.MethodGet, "/", ""))
	want := InfoResponse{Name: "ragchat", Version: "test", Health: "/health", Chat: "/chat"}
	if got != want {
		t.Errorf("info = %+v, want %+v", got, want)
	}
}

func TestCorpus(t *testing.T) {
	t.Parallel()

	t.Run("bound", func(t *testing.T) {
		t.Parallel()

		mock := providertest.Reply("ok")
		mock.CorpusFunc = func() (provider.CorpusInfo, bool) {
			return provider.CorpusInfo{Name: "rh-docs", ID: "projects/p/locations/l/ragCorpora/1"}, true
		}
		env := newTestEnv(t, mock, nil)

		rr := env.do(t, http.MethodGet, "/corpus", "")
		if rr.Code != http.StatusOK {
			t.Fatalf("status = %d", rr.Code)
		}
		got := decodeBody[provider.CorpusInfo](t, rr)
		if got.Name != "rh-docs" || got.ID != "projects/p/locations/l/ragCorpora/1" {
			t.Errorf("corpus = %+v", got)
		}
	})

	t.Run("unbound", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t, providertest.Reply("ok"), nil)
		if rr := env.do(t, http.MethodGet, "/corpus", ""); rr.Code != http.StatusNotFound {
			t.Errorf("status = %d, want %d", rr.Code, http.StatusNotFound)
		}
	})
}

func TestCorpusList(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		list      func(context.Context) ([]provider.CorpusInfo, error)
		status    int
		wantTotal int
	}{
		{
			name: "listed",
			list: func(context.Context) ([]provider.CorpusInfo, error) {
				return []provider.CorpusInfo{{Name: "a", ID: "1"}, {Name: "b", ID: "2"}}, nil
			},
			status:    http.StatusOK,
			wantTotal: 2,
		},
		{name: "unsupported", list: nil, status: http.StatusNotFound},
		{
			name: "upstream failure",
			list: func(context.Context) ([]provider.CorpusInfo, error) {
				return nil, provider.ErrProviderDown
			},
			status: http.StatusInternalServerError,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			mock := providertest.Reply("ok")
			mock.ListCorporaFunc = tt.list
			env := newTestEnv(t, mock, nil)

			rr := env.do(t, http.MethodGet, "/corpus/list", "")
			if rr.Code != tt.status {
				t.Fatalf("status = %d, want %d", rr.Code, tt.status)
			}
			if tt.status != http.StatusOK {
				return
			}
			if got := decodeBody[CorpusListResponse](t, rr).Total; got != tt.wantTotal {
				t.Errorf("total = %d, want %d", got, tt.wantTotal)
			}
		})
	}
}

func TestMetricsRoute(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, providertest.Reply("ok"), nil)
	if rr := env.do(t, http.MethodGet, "/metrics", ""); rr.Code != http.StatusNotFound {
		t.Errorf("without handler: status = %d, want %d", rr.Code, http.StatusNotFound)
	}

	env.gw.metrics = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ragchat_up 1\n"))
	})
	h := env.gw.buildRouter()
	env.handler = h
	rr := env.do(t, http.MethodGet, "/metrics", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "ragchat_up") {
		t.Errorf("with handler: status = %d, body = %q", rr.Code, rr.Body.String())
	}
}

func TestNotFoundIsJSON(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, providertest.Reply("ok"), nil)
	rr := env.do(t, http.MethodGet, "/nope", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusNotFound)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
}
