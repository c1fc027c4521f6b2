package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a chat or document does not exist.
var ErrNotFound = errors.New("not found")

// Role of a chat message.
type Role string

const (
	RoleUser      Role = "USER"
	RoleAssistant Role = "ASSISTANT"
	RoleTool      Role = "TOOL"
)

// Chat groups messages under one conversation. Messages is populated only by
// GetChat, oldest first.
type Chat struct {
	ID        uuid.UUID
	Title     *string
	CreatedAt time.Time
	UpdatedAt time.Time
	Messages  []Message
}

// Message is immutable once created.
type Message struct {
	ID        uuid.UUID
	ChatID    uuid.UUID
	Content   string
	Role      Role
	CreatedAt time.Time
}

// Document is an ingested document tracked on behalf of the worker. The id is
// assigned by the worker's ingestion pipeline.
type Document struct {
	ID         string
	Filename   string
	Type       string
	Status     string
	ChunkCount int
	CreatedAt  time.Time
}

type Store struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

// EnsureSchema creates the tables if they do not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS chats (
			id         uuid PRIMARY KEY,
			title      text,
			created_at timestamptz NOT NULL DEFAULT now(),
			updated_at timestamptz NOT NULL DEFAULT now()
		);
		CREATE TABLE IF NOT EXISTS messages (
			id         uuid PRIMARY KEY,
			chat_id    uuid NOT NULL REFERENCES chats(id) ON DELETE CASCADE,
			content    text NOT NULL,
			role       text NOT NULL,
			created_at timestamptz NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS messages_chat_id_created_at_idx
			ON messages (chat_id, created_at);
		CREATE TABLE IF NOT EXISTS documents (
			id          text PRIMARY KEY,
			filename    text NOT NULL,
			type        text NOT NULL,
			status      text NOT NULL,
			chunk_count int NOT NULL DEFAULT 0,
			created_at  timestamptz NOT NULL DEFAULT now()
		);`)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
