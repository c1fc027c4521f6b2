package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// CreateMessage inserts a message into a chat and bumps the chat's
// updated_at. Fails if the chat does not exist.
func (s *Store) CreateMessage(ctx context.Context, chatID uuid.UUID, content string, role Role) (*Message, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	msg := Message{ID: uuid.New(), ChatID: chatID, Content: content, Role: role}
	err = tx.QueryRow(ctx, `
		INSERT INTO messages (id, chat_id, content, role, created_at)
		VALUES ($1, $2, $3, $4, now())
		RETURNING created_at`,
		msg.ID, chatID, content, role,
	).Scan(&msg.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}

	_, err = tx.Exec(ctx, `UPDATE chats SET updated_at = now() WHERE id = $1`, chatID)
	if err != nil {
		return nil, fmt.Errorf("touch chat: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return &msg, nil
}
