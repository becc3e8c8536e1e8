package gateway

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/serhrag/ragchat/internal/chat"
)

// ChatRequest is the body of POST /chat and of each websocket frame.
// Message is accepted as an alias of Text.
type ChatRequest struct {
	Text           string `json:"text"`
	Message        string `json:"message,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
}

func (r ChatRequest) text() string {
	if r.Text != "" {
		return r.Text
	}
	return r.Message
}

// ChatResponse is the result of one turn.
type ChatResponse struct {
	Response            string `json:"response"`
	ConversationID      string `json:"conversation_id"`
	TurnCount           int    `json:"turn_count"`
	AskingClarification bool   `json:"asking_clarification"`
	Corpus              string `json:"corpus,omitempty"`
}

func (g *Gateway) chatResponse(res chat.TurnResult) ChatResponse {
	out := ChatResponse{
		Response:            res.Text,
		ConversationID:      res.ConversationID,
		TurnCount:           res.TurnCount,
		AskingClarification: res.AskingClarification,
	}
	if g.backends != nil {
		if info, ok := g.backends.Corpus(); ok {
			out.Corpus = info.Name
		}
	}
	return out
}

// handleChat returns an http.HandlerFunc for POST /chat.
func (g *Gateway) handleChat() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := "chat:" + clientIP(r)
		if err := g.chatLimiter.Allow(key); err != nil {
			tooManyRequests(w, g.chatLimiter.RetryAfter(key))
			return
		}

		req, err := decodeChatRequest(r.Body)
		if errors.Is(err, errBodyTooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, err.Error())
			return
		}
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		g.extendWriteDeadline(w)
		res, err := g.chat.HandleChat(r.Context(), req.text(), strings.TrimSpace(req.ConversationID))
		if err != nil {
			g.writeChatError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, g.chatResponse(res))
	}
}

// responseSlack is the time allowed past the generation timeout to write
// the reply or the error.
const responseSlack = 5 * time.Second

// extendWriteDeadline pushes the connection's write deadline past the
// generation timeout when the server-wide write_timeout is shorter, so a
// timed-out turn still gets its JSON error.
func (g *Gateway) extendWriteDeadline(w http.ResponseWriter) {
	need := g.chat.GenerationTimeout() + responseSlack
	if need <= g.config.WriteTimeout {
		return
	}
	err := http.NewResponseController(w).SetWriteDeadline(time.Now().Add(need))
	if err != nil && !errors.Is(err, http.ErrNotSupported) {
		g.logger.Warn("chat: extend write deadline", "error", err)
	}
}

var errBodyTooLarge = errors.New("request body too large")

// decodeChatRequest reads one JSON object. Unknown fields are ignored.
func decodeChatRequest(body io.Reader) (ChatRequest, error) {
	var req ChatRequest
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return req, errBodyTooLarge
		case errors.Is(err, io.EOF):
			return req, errors.New("request body is required")
		default:
			return req, errors.New("invalid JSON body")
		}
	}
	return req, nil
}
