package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/serhrag/ragchat/internal/conversation"
)

// ConversationResponse is the JSON response for GET /conversation/{id}.
type ConversationResponse struct {
	ConversationID string                 `json:"conversation_id"`
	Messages       []conversation.Message `json:"messages"`
	MessageCount   int                    `json:"message_count"`
}

// ConversationsResponse is the JSON response for GET /conversations.
type ConversationsResponse struct {
	Total         int                    `json:"total"`
	Conversations []conversation.Summary `json:"conversations"`
}

// StatusResponse acknowledges a management action.
type StatusResponse struct {
	Status         string `json:"status"`
	ConversationID string `json:"conversation_id,omitempty"`
}

func (g *Gateway) handleGetConversation() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		msgs, err := g.chat.Conversation(r.Context(), id)
		if err != nil {
			g.writeChatError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, ConversationResponse{
			ConversationID: id,
			Messages:       msgs,
			MessageCount:   len(msgs),
		})
	}
}

func (g *Gateway) handleDeleteConversation() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := g.chat.Delete(r.Context(), id); err != nil {
			g.writeChatError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, StatusResponse{Status: "deleted", ConversationID: id})
	}
}

func (g *Gateway) handleListConversations() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := g.chat.Conversations(r.Context())
		if err != nil {
			g.writeChatError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, ConversationsResponse{Total: len(list), Conversations: list})
	}
}
