// Package mcpserver exposes the chat orchestrator as Model Context Protocol
// tools so MCP clients can ask questions and manage conversations.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/serhrag/ragchat/internal/chat"
	"github.com/serhrag/ragchat/internal/conversation"
)

// Tool names.
const (
	ToolAsk                = "ask"
	ToolGetConversation    = "get_conversation"
	ToolListConversations  = "list_conversations"
	ToolDeleteConversation = "delete_conversation"
)

// Chatter runs turns and manages conversations. *chat.Orchestrator
// satisfies it.
type Chatter interface {
	HandleChat(ctx context.Context, text, conversationID string) (chat.TurnResult, error)
	Conversation(ctx context.Context, id string) ([]conversation.Message, error)
	Delete(ctx context.Context, id string) error
	Conversations(ctx context.Context) ([]conversation.Summary, error)
}

var _ Chatter = (*chat.Orchestrator)(nil)

// Server wraps an MCP server whose tools call a Chatter.
type Server struct {
	chat   Chatter
	logger *slog.Logger
	mcp    *server.MCPServer
}

// New builds the MCP server and registers the tools.
func New(c Chatter, name, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		chat:   c,
		logger: logger.With("component", "mcp"),
		mcp: server.NewMCPServer(name, version,
			server.WithToolCapabilities(false),
			server.WithRecovery(),
		),
	}

	s.mcp.AddTool(mcp.NewTool(ToolAsk,
		mcp.WithDescription("Ask the document assistant a question. Pass conversation_id to continue a conversation."),
		mcp.WithString("text", mcp.Required(), mcp.Description("The question or message")),
		mcp.WithString("conversation_id", mcp.Description("Existing conversation to continue")),
	), s.handleAsk)

	s.mcp.AddTool(mcp.NewTool(ToolGetConversation,
		mcp.WithDescription("Return the messages of a conversation in order."),
		mcp.WithString("conversation_id", mcp.Required()),
	), s.handleGetConversation)

	s.mcp.AddTool(mcp.NewTool(ToolListConversations,
		mcp.WithDescription("List every conversation with its message count."),
	), s.handleListConversations)

	s.mcp.AddTool(mcp.NewTool(ToolDeleteConversation,
		mcp.WithDescription("Delete a conversation."),
		mcp.WithString("conversation_id", mcp.Required()),
	), s.handleDeleteConversation)

	return s
}

// MCP returns the underlying server.
func (s *Server) MCP() *server.MCPServer {
	return s.mcp
}

// ServeStdio serves newline-delimited JSON-RPC on in and out until ctx is
// done or in is closed.
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError))

	err := stdio.Listen(ctx, in, out)
	if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// askResult is the JSON text returned by the ask tool.
type askResult struct {
	Response            string `json:"response"`
	ConversationID      string `json:"conversation_id"`
	TurnCount           int    `json:"turn_count"`
	AskingClarification bool   `json:"asking_clarification"`
}

type conversationResult struct {
	ConversationID string                 `json:"conversation_id"`
	Messages       []conversation.Message `json:"messages"`
	MessageCount   int                    `json:"message_count"`
}

type listResult struct {
	Total         int                    `json:"total"`
	Conversations []conversation.Summary `json:"conversations"`
}

func (s *Server) handleAsk(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id := strings.TrimSpace(req.GetString("conversation_id", ""))

	res, err := s.chat.HandleChat(ctx, text, id)
	if err != nil {
		return s.toolError(err), nil
	}
	return jsonResult(askResult{
		Response:            res.Text,
		ConversationID:      res.ConversationID,
		TurnCount:           res.TurnCount,
		AskingClarification: res.AskingClarification,
	})
}

func (s *Server) handleGetConversation(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("conversation_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	msgs, err := s.chat.Conversation(ctx, id)
	if err != nil {
		return s.toolError(err), nil
	}
	return jsonResult(conversationResult{ConversationID: id, Messages: msgs, MessageCount: len(msgs)})
}

func (s *Server) handleListConversations(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	list, err := s.chat.Conversations(ctx)
	if err != nil {
		return s.toolError(err), nil
	}
	return jsonResult(listResult{Total: len(list), Conversations: list})
}

func (s *Server) handleDeleteConversation(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("conversation_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.chat.Delete(ctx, id); err != nil {
		return s.toolError(err), nil
	}
	return mcp.NewToolResultText("deleted " + id), nil
}

// toolError maps orchestrator errors to tool errors. Generation failures
// are logged in full and reported generically.
func (s *Server) toolError(err error) *mcp.CallToolResult {
	var genErr *chat.GenerationError
	switch {
	case errors.Is(err, chat.ErrEmptyInput):
		return mcp.NewToolResultError("message must not be empty")
	case errors.Is(err, chat.ErrInvalidConversationID):
		return mcp.NewToolResultError("invalid conversation_id")
	case errors.Is(err, chat.ErrNotReady):
		return mcp.NewToolResultError("service not ready, try again shortly")
	case errors.Is(err, chat.ErrUnknownConversation):
		return mcp.NewToolResultError("conversation not found")
	case errors.As(err, &genErr):
		s.logger.Error("tool call failed", "error", err)
		return mcp.NewToolResultError("failed to generate a response")
	default:
		s.logger.Error("tool call failed", "error", err)
		return mcp.NewToolResultError("internal error")
	}
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(b)), nil
}
