package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ragline/ragline/internal/chat"
)

type createMessageRequest struct {
	Content string `json:"content"`
}

type callbackResponse struct {
	Status    string `json:"status"`
	MessageID string `json:"messageId"`
}

func (s *Server) createMessage(w http.ResponseWriter, r *http.Request) {
	chatID, ok := chatIDParam(w, r)
	if !ok {
		return
	}

	var req createMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid payload")
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		writeError(w, http.StatusBadRequest, "Content must not be empty")
		return
	}

	msg, err := s.chat.CreateMessage(r.Context(), chatID, req.Content)
	if errors.Is(err, chat.ErrDispatchFailed) {
		writeError(w, http.StatusBadRequest, "Failed to process the worker request")
		return
	}
	if err != nil {
		s.logger.Error("failed to create message", "chat_id", chatID, "error", err)
		writeError(w, http.StatusBadRequest, "Failed to create message")
		return
	}

	writeJSON(w, http.StatusCreated, messageResponse{
		ID:      msg.ID.String(),
		Content: msg.Content,
		Role:    string(msg.Role),
	})
}

func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	chatID, ok := chatIDParam(w, r)
	if !ok {
		return
	}
	messageID, err := uuid.Parse(chi.URLParam(r, "messageID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid message id")
		return
	}

	var payload chat.CallbackPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid payload")
		return
	}

	s.logger.Info("worker callback received", "chat_id", chatID, "message_id", messageID)

	msg, err := s.chat.HandleCallback(r.Context(), chatID, messageID, payload)
	if errors.Is(err, chat.ErrDuplicateCallback) {
		writeError(w, http.StatusConflict, "Callback already processed")
		return
	}
	if errors.Is(err, chat.ErrWorkerReported) {
		writeError(w, http.StatusBadRequest, "Failed to process message")
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to save assistant message")
		return
	}

	writeJSON(w, http.StatusOK, callbackResponse{Status: "success", MessageID: msg.ID.String()})
}
