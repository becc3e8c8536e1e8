package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/serhrag/ragchat/internal/provider/providertest"
)

func dialChat(t *testing.T, env *testEnv) (*websocket.Conn, context.Context) {
	t.Helper()

	srv := httptest.NewServer(env.handler)
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/chat"
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.CloseNow() })
	return conn, ctx
}

func TestChatWS_Turns(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, providertest.Reply("resposta"), nil)
	conn, ctx := dialChat(t, env)

	if err := wsjson.Write(ctx, conn, ChatRequest{Text: "primeira"}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	var first ChatResponse
	if err := wsjson.Read(ctx, conn, &first); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if first.ConversationID == "" || first.TurnCount != 1 || first.Response != "resposta" {
		t.Fatalf("first = %+v", first)
	}

	if err := wsjson.Write(ctx, conn, ChatRequest{Text: "segunda", ConversationID: first.ConversationID}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	var second ChatResponse
	if err := wsjson.Read(ctx, conn, &second); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if second.ConversationID != first.ConversationID || second.TurnCount != 2 {
		t.Errorf("second = %+v, want same id and turn 2", second)
	}

	_ = conn.Close(websocket.StatusNormalClosure, "")
}

func TestChatWS_ErrorFrames(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, providertest.Reply("ok"), nil)
	conn, ctx := dialChat(t, env)

	tests := []struct {
		name  string
		frame string
		want  string
	}{
		{"invalid json", `{"text":`, "invalid JSON body"},
		{"empty text", `{"text":"  "}`, msgEmptyInput},
	}
	for _, tt := range tests {
		if err := conn.Write(ctx, websocket.MessageText, []byte(tt.frame)); err != nil {
			t.Fatalf("%s: Write: %v", tt.name, err)
		}
		var got errorResponse
		if err := wsjson.Read(ctx, conn, &got); err != nil {
			t.Fatalf("%s: Read: %v", tt.name, err)
		}
		if got.Error != tt.want {
			t.Errorf("%s: error = %q, want %q", tt.name, got.Error, tt.want)
		}
	}

	// The connection survives error frames.
	if err := wsjson.Write(ctx, conn, ChatRequest{Text: "oi"}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	var ok ChatResponse
	if err := wsjson.Read(ctx, conn, &ok); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if ok.TurnCount != 1 {
		t.Errorf("turn_count = %d, want 1", ok.TurnCount)
	}
}

func TestChatWS_Disabled(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, providertest.Reply("ok"), func(c *Config) { c.WebSocket.Disabled = true })
	if rr := env.do(t, http.MethodGet, "/ws/chat", ""); rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusNotFound)
	}
}
