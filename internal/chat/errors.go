package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/serhrag/ragchat/internal/conversation"
)

// Sentinel errors returned by the orchestrator.
var (
	// ErrEmptyInput indicates the message text was empty or whitespace.
	ErrEmptyInput = errors.New("chat: empty message")

	// ErrNotReady indicates the generation backend has not finished
	// initializing or is unavailable.
	ErrNotReady = errors.New("chat: service not ready")

	// ErrInvalidConversationID indicates a caller-supplied conversation ID
	// that could not be addressed later. It wraps conversation.ErrInvalidID.
	ErrInvalidConversationID = fmt.Errorf("chat: %w", conversation.ErrInvalidID)

	// ErrUnknownConversation indicates the conversation ID does not exist.
	ErrUnknownConversation = errors.New("chat: conversation not found")
)

// GenerationError reports a failed call to the generation backend. The
// wrapped error carries upstream detail for logs and must not be shown
// to end users.
type GenerationError struct {
	ConversationID string
	Err            error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("chat: generation failed for conversation %s: %v", e.ConversationID, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// Timeout reports whether the generation call hit its deadline.
func (e *GenerationError) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}

// Outcome labels a turn result for metrics and logs.
func Outcome(err error) string {
	var genErr *GenerationError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrEmptyInput):
		return "empty_input"
	case errors.Is(err, ErrInvalidConversationID):
		return "invalid_id"
	case errors.Is(err, ErrNotReady):
		return "not_ready"
	case errors.As(err, &genErr) && genErr.Timeout():
		return "timeout"
	case errors.As(err, &genErr):
		return "generation_error"
	default:
		return "error"
	}
}
