package gateway

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/serhrag/ragchat/internal/chat"
)

// errorResponse is the body of every non-2xx JSON response.
type errorResponse struct {
	Error string `json:"error"`
}

// Client-facing messages. Upstream detail is logged, never returned.
const (
	msgEmptyInput      = "message must not be empty"
	msgInvalidID       = "invalid conversation_id"
	msgNotReady        = "service not ready, try again shortly"
	msgUnknown         = "conversation not found"
	msgGenerationError = "failed to generate a response"
	msgInternal        = "internal error"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorResponse{Error: msg})
}

// chatStatus maps an orchestrator error to a status and client message.
func chatStatus(err error) (int, string) {
	var genErr *chat.GenerationError
	switch {
	case errors.Is(err, chat.ErrEmptyInput):
		return http.StatusBadRequest, msgEmptyInput
	case errors.Is(err, chat.ErrInvalidConversationID):
		return http.StatusBadRequest, msgInvalidID
	case errors.Is(err, chat.ErrNotReady):
		return http.StatusServiceUnavailable, msgNotReady
	case errors.Is(err, chat.ErrUnknownConversation):
		return http.StatusNotFound, msgUnknown
	case errors.As(err, &genErr):
		return http.StatusInternalServerError, msgGenerationError
	default:
		return http.StatusInternalServerError, msgInternal
	}
}

// writeChatError writes the mapped error and logs server-side failures
// with their full detail.
func (g *Gateway) writeChatError(w http.ResponseWriter, r *http.Request, err error) {
	code, msg := chatStatus(err)
	if code >= http.StatusInternalServerError {
		g.logger.Error("request failed", append(requestAttrs(r), "error", err)...)
	} else {
		g.logger.Debug("request rejected", "path", r.URL.Path, "status", code, "error", err)
	}
	writeError(w, code, msg)
}

func requestAttrs(r *http.Request) []any {
	return []any{
		slog.String("path", r.URL.Path),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	}
}
