package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/serhrag/ragchat/internal/conversation"
)

// Store implements conversation.Store on a SQLite database.
type Store struct {
	db *sql.DB
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the history for id in append order.
func (s *Store) Get(ctx context.Context, id string) ([]conversation.Message, bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM conversations WHERE id = ?", id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("sqlite: lookup conversation: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT role, content
		FROM messages
		WHERE conversation_id = ?
		ORDER BY seq ASC`,
		id,
	)
	if err != nil {
		return nil, false, fmt.Errorf("sqlite: get messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	msgs := []conversation.Message{}
	for rows.Next() {
		var (
			msg  conversation.Message
			role string
		)
		if err := rows.Scan(&role, &msg.Content); err != nil {
			return nil, false, fmt.Errorf("sqlite: scan message: %w", err)
		}
		msg.Role = conversation.Role(role)
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("sqlite: get messages rows: %w", err)
	}

	return msgs, true, nil
}

// Append adds msgs to id's history in one transaction.
func (s *Store) Append(ctx context.Context, id string, msgs ...conversation.Message) error {
	if err := conversation.ValidateBatch(msgs); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin append tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "INSERT OR IGNORE INTO conversations (id) VALUES (?)", id); err != nil {
		return fmt.Errorf("sqlite: create conversation: %w", err)
	}

	for _, msg := range msgs {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO messages (conversation_id, seq, role, content)
			VALUES (?, COALESCE((SELECT MAX(seq) FROM messages WHERE conversation_id = ?), 0) + 1, ?, ?)`,
			id, id, string(msg.Role), msg.Content,
		)
		if err != nil {
			return fmt.Errorf("sqlite: append message: %w", err)
		}
	}

	return tx.Commit()
}

// Delete removes id and its messages, reporting whether it existed.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("sqlite: begin delete tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM messages WHERE conversation_id = ?", id); err != nil {
		return false, fmt.Errorf("sqlite: delete messages: %w", err)
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM conversations WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("sqlite: delete conversation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: rows affected: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("sqlite: commit delete: %w", err)
	}
	return n > 0, nil
}

// List returns every conversation and its message count, sorted by ID.
func (s *Store) List(ctx context.Context) ([]conversation.Summary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, COUNT(m.seq)
		FROM conversations c
		LEFT JOIN messages m ON m.conversation_id = c.id
		GROUP BY c.id
		ORDER BY c.id ASC`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list conversations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := []conversation.Summary{}
	for rows.Next() {
		var sum conversation.Summary
		if err := rows.Scan(&sum.ID, &sum.MessageCount); err != nil {
			return nil, fmt.Errorf("sqlite: scan summary: %w", err)
		}
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: list rows: %w", err)
	}
	return out, nil
}

// Len returns the number of conversations.
func (s *Store) Len(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM conversations").Scan(&count); err != nil {
		return 0, fmt.Errorf("sqlite: count conversations: %w", err)
	}
	return count, nil
}
