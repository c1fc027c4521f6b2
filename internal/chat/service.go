package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/ragline/ragline/internal/bus"
	"github.com/ragline/ragline/internal/store"
)

var (
	// ErrDispatchFailed means the worker rejected the trigger or was
	// unreachable. The user message stays persisted.
	ErrDispatchFailed = errors.New("failed to process the worker request")

	// ErrWorkerReported means the callback carried a worker-side error.
	ErrWorkerReported = errors.New("worker reported a processing error")

	// ErrDuplicateCallback means a callback arrived for a message that was
	// already answered.
	ErrDuplicateCallback = errors.New("callback already processed for this message")
)

// Store is the persistence collaborator. Implemented by *store.Store.
type Store interface {
	CreateChat(ctx context.Context) (*store.Chat, error)
	ListChats(ctx context.Context) ([]store.Chat, error)
	GetChat(ctx context.Context, id uuid.UUID) (*store.Chat, error)
	DeleteChat(ctx context.Context, id uuid.UUID) error
	CreateMessage(ctx context.Context, chatID uuid.UUID, content string, role store.Role) (*store.Message, error)
}

// Dispatcher hands a user message to the external worker. Implemented by
// *worker.Client.
type Dispatcher interface {
	TriggerChat(ctx context.Context, chatID, message, callbackURL string) bool
}

// CallbackPayload is the worker's asynchronous result for a dispatched
// message. Exactly one of Response or Error is meaningful.
type CallbackPayload struct {
	Response string  `json:"response"`
	Status   string  `json:"status,omitempty"`
	Error    *string `json:"error,omitempty"`
}

// Service sequences the two halves of the asynchronous request/response:
// CreateMessage persists and dispatches, HandleCallback persists the result
// and fans it out through the bus. The service holds no per-request state
// beyond the answered-message guard.
type Service struct {
	store   Store
	bus     *bus.Bus
	worker  Dispatcher
	baseURL string
	logger  *slog.Logger

	mu       sync.Mutex
	answered map[uuid.UUID]struct{}
}

func NewService(s Store, b *bus.Bus, w Dispatcher, baseURL string, logger *slog.Logger) *Service {
	return &Service{
		store:    s,
		bus:      b,
		worker:   w,
		baseURL:  baseURL,
		logger:   logger,
		answered: make(map[uuid.UUID]struct{}),
	}
}

func (s *Service) CreateChat(ctx context.Context) (*store.Chat, error) {
	return s.store.CreateChat(ctx)
}

func (s *Service) ListChats(ctx context.Context) ([]store.Chat, error) {
	return s.store.ListChats(ctx)
}

// GetChat returns a chat with TOOL-role messages filtered out of the result.
func (s *Service) GetChat(ctx context.Context, id uuid.UUID) (*store.Chat, error) {
	chat, err := s.store.GetChat(ctx, id)
	if err != nil {
		return nil, err
	}
	visible := chat.Messages[:0]
	for _, m := range chat.Messages {
		if m.Role != store.RoleTool {
			visible = append(visible, m)
		}
	}
	chat.Messages = visible
	return chat, nil
}

func (s *Service) DeleteChat(ctx context.Context, id uuid.UUID) error {
	return s.store.DeleteChat(ctx, id)
}

// CreateMessage persists a USER message and dispatches it to the worker. The
// message is persisted before any dispatch is attempted; a dispatch failure
// is returned to the caller but the message is intentionally kept as a
// visible, unanswered request. The assistant reply arrives later through the
// event bus, never on this call.
func (s *Service) CreateMessage(ctx context.Context, chatID uuid.UUID, content string) (*store.Message, error) {
	msg, err := s.store.CreateMessage(ctx, chatID, content, store.RoleUser)
	if err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}

	callbackURL := fmt.Sprintf("%s/chats/%s/messages/%s/callback", s.baseURL, chatID, msg.ID)
	if !s.worker.TriggerChat(ctx, chatID.String(), content, callbackURL) {
		return nil, ErrDispatchFailed
	}

	return msg, nil
}

// HandleCallback processes the worker's result for a previously dispatched
// message. A second callback for an already-answered message is rejected so
// duplicate deliveries cannot produce duplicate assistant messages.
func (s *Service) HandleCallback(ctx context.Context, chatID, messageID uuid.UUID, payload CallbackPayload) (*store.Message, error) {
	s.mu.Lock()
	_, done := s.answered[messageID]
	s.mu.Unlock()
	if done {
		s.logger.Warn("duplicate callback ignored", "chat_id", chatID, "message_id", messageID)
		return nil, ErrDuplicateCallback
	}

	if payload.Error != nil && *payload.Error != "" {
		s.logger.Error("worker reported error", "chat_id", chatID, "message_id", messageID, "error", *payload.Error)
		s.bus.PublishError(chatID.String(), *payload.Error)
		return nil, ErrWorkerReported
	}

	msg, err := s.store.CreateMessage(ctx, chatID, payload.Response, store.RoleAssistant)
	if err != nil {
		s.logger.Error("failed to save assistant message", "chat_id", chatID, "error", err)
		s.bus.PublishError(chatID.String(), "Failed to process message, please try again.")
		return nil, fmt.Errorf("save assistant message: %w", err)
	}

	s.mu.Lock()
	s.answered[messageID] = struct{}{}
	s.mu.Unlock()

	s.bus.PublishMessage(chatID.String(), bus.Message{
		ID:      msg.ID.String(),
		Content: msg.Content,
		Role:    string(msg.Role),
	})

	return msg, nil
}
