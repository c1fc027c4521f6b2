package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ragline/ragline/internal/store"
)

type messageResponse struct {
	ID      string `json:"id"`
	Content string `json:"content"`
	Role    string `json:"role"`
}

type chatResponse struct {
	ID    string  `json:"id"`
	Title *string `json:"title"`
}

type chatListItem struct {
	ID        string    `json:"id"`
	Title     *string   `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type chatWithMessages struct {
	ID        string            `json:"id"`
	Title     *string           `json:"title"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
	Messages  []messageResponse `json:"messages"`
}

func (s *Server) createChat(w http.ResponseWriter, r *http.Request) {
	chat, err := s.chat.CreateChat(r.Context())
	if err != nil {
		s.logger.Error("failed to create chat", "error", err)
		writeError(w, http.StatusBadRequest, "Failed to create chat")
		return
	}
	writeJSON(w, http.StatusCreated, chatResponse{ID: chat.ID.String(), Title: chat.Title})
}

func (s *Server) listChats(w http.ResponseWriter, r *http.Request) {
	chats, err := s.chat.ListChats(r.Context())
	if err != nil {
		s.logger.Error("failed to list chats", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to list chats")
		return
	}
	out := make([]chatListItem, 0, len(chats))
	for _, c := range chats {
		out = append(out, chatListItem{
			ID:        c.ID.String(),
			Title:     c.Title,
			CreatedAt: c.CreatedAt,
			UpdatedAt: c.UpdatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getChat(w http.ResponseWriter, r *http.Request) {
	id, ok := chatIDParam(w, r)
	if !ok {
		return
	}

	chat, err := s.chat.GetChat(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Chat not found")
		return
	}
	if err != nil {
		s.logger.Error("failed to get chat", "chat_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to get chat")
		return
	}

	out := chatWithMessages{
		ID:        chat.ID.String(),
		Title:     chat.Title,
		CreatedAt: chat.CreatedAt,
		UpdatedAt: chat.UpdatedAt,
		Messages:  make([]messageResponse, 0, len(chat.Messages)),
	}
	for _, m := range chat.Messages {
		out.Messages = append(out.Messages, messageResponse{
			ID:      m.ID.String(),
			Content: m.Content,
			Role:    string(m.Role),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) deleteChat(w http.ResponseWriter, r *http.Request) {
	id, ok := chatIDParam(w, r)
	if !ok {
		return
	}

	err := s.chat.DeleteChat(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Chat not found")
		return
	}
	if err != nil {
		s.logger.Error("failed to delete chat", "chat_id", id, "error", err)
		writeError(w, http.StatusBadRequest, "Failed to remove chat")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func chatIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid chat id")
		return uuid.Nil, false
	}
	return id, true
}
