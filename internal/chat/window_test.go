package chat

import (
	"errors"
	"strings"
	"testing"

	"github.com/serhrag/ragchat/internal/conversation"
)

var errTest = errors.New("test error")

func transcript(turns int) []conversation.Message {
	var h []conversation.Message
	for i := range turns {
		h = append(h,
			conversation.Message{Role: conversation.RoleUser, Content: "q" + string(rune('a'+i))},
			conversation.Message{Role: conversation.RoleAssistant, Content: "a" + string(rune('a'+i))},
		)
	}
	return append(h, conversation.Message{Role: conversation.RoleUser, Content: "new"})
}

func TestWindow_UnlimitedPassesThrough(t *testing.T) {
	t.Parallel()

	h := transcript(5)
	got := Window{}.Apply(h)
	if len(got) != len(h) {
		t.Errorf("len = %d, want %d", len(got), len(h))
	}
}

func TestWindow_MaxTurns(t *testing.T) {
	t.Parallel()

	h := transcript(5)
	got := Window{MaxTurns: 2}.Apply(h)
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	if got[0].Content != "qe" || got[2].Content != "new" {
		t.Errorf("got %v, want [qe ae new]", got)
	}

	got = Window{MaxTurns: 1}.Apply(h)
	if len(got) != 1 || got[0].Content != "new" {
		t.Errorf("MaxTurns=1 got %v, want [new]", got)
	}

	got = Window{MaxTurns: 50}.Apply(h)
	if len(got) != len(h) {
		t.Errorf("MaxTurns=50 len = %d, want %d", len(got), len(h))
	}
}

func TestWindow_MaxTokensKeepsNewMessage(t *testing.T) {
	t.Parallel()

	h := []conversation.Message{
		{Role: conversation.RoleUser, Content: "old"},
		{Role: conversation.RoleAssistant, Content: "old answer"},
		{Role: conversation.RoleUser, Content: strings.Repeat("x", 400)},
	}
	got := Window{MaxTokens: 10}.Apply(h)
	if len(got) != 1 || got[0].Role != conversation.RoleUser {
		t.Errorf("got %d messages, want only the new user message", len(got))
	}
}

func TestWindow_MaxTokensStartsAtUser(t *testing.T) {
	t.Parallel()

	h := []conversation.Message{
		{Role: conversation.RoleUser, Content: strings.Repeat("u", 80)},
		{Role: conversation.RoleAssistant, Content: strings.Repeat("a", 8)},
		{Role: conversation.RoleUser, Content: strings.Repeat("n", 8)},
	}
	// The assistant reply fits but the user message before it does not;
	// the window must not start on an assistant message.
	got := Window{MaxTokens: 16}.Apply(h)
	if len(got) != 1 || got[0].Role != conversation.RoleUser {
		t.Errorf("got %v, want only the new user message", got)
	}
}

func TestCharEstimator(t *testing.T) {
	t.Parallel()

	e := CharEstimator{}
	if got := e.Estimate(""); got != 0 {
		t.Errorf("Estimate(\"\") = %d, want 0", got)
	}
	if got := e.Estimate("abc"); got != 1 {
		t.Errorf("Estimate(abc) = %d, want 1", got)
	}
	if got := (CharEstimator{CharsPerToken: 2}).Estimate("abcdef"); got != 4 {
		t.Errorf("Estimate(abcdef, 2) = %d, want 4", got)
	}
}

func TestOutcome(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want string
	}{
		{nil, "ok"},
		{ErrEmptyInput, "empty_input"},
		{ErrNotReady, "not_ready"},
		{&GenerationError{Err: errTest}, "generation_error"},
		{errTest, "error"},
	}
	for _, tt := range tests {
		if got := Outcome(tt.err); got != tt.want {
			t.Errorf("Outcome(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
