// Package conversation holds the volatile conversation store: ordered,
// append-only message histories keyed by an opaque conversation ID, plus the
// per-conversation locks that keep concurrent turns from interleaving.
package conversation

import (
	"context"
	"errors"
)

// Role identifies who authored a message.
type Role string

// Role constants for stored messages.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is a role the store accepts.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Message is one entry in a conversation history.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Summary is a point-in-time view of one conversation.
type Summary struct {
	ID           string `json:"id"`
	MessageCount int    `json:"message_count"`
}

// StoreService is the AppContext service name under which a store module
// publishes its Store.
const StoreService = "conversation.store"

// ErrInvalidMessage is returned by Append for a message with an unknown role.
var ErrInvalidMessage = errors.New("conversation: invalid message role")

// Store maps conversation IDs to histories.
// Implementations must be safe for concurrent use.
type Store interface {
	// Get returns a copy of the history for id. The bool is false when the
	// conversation does not exist; the history is then empty, not an error.
	Get(ctx context.Context, id string) ([]Message, bool, error)

	// Append adds msgs to the end of id's history, creating it if needed.
	// The batch is applied all-or-nothing.
	Append(ctx context.Context, id string, msgs ...Message) error

	// Delete removes the conversation and reports whether it existed.
	Delete(ctx context.Context, id string) (bool, error)

	// List returns a snapshot of every conversation and its message count.
	List(ctx context.Context) ([]Summary, error)

	// Len returns the number of conversations.
	Len(ctx context.Context) (int, error)
}

// CountRole returns how many messages in history were authored by role.
func CountRole(history []Message, role Role) int {
	n := 0
	for _, m := range history {
		if m.Role == role {
			n++
		}
	}
	return n
}

// ValidateBatch checks every message in msgs.
func ValidateBatch(msgs []Message) error {
	for _, m := range msgs {
		if !m.Role.Valid() {
			return ErrInvalidMessage
		}
	}
	return nil
}
