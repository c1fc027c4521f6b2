package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ragline/ragline/internal/bus"
)

const (
	heartbeatInterval = 30 * time.Second

	// sessionBufferSize bounds the per-session event queue. A session that
	// cannot keep up loses events rather than blocking the publisher.
	sessionBufferSize = 64
)

// streamEvents is the SSE endpoint for live chat updates. One call is one
// stream session: it owns exactly one bus subscription and one heartbeat
// ticker, and both are released together when the session ends — whether by
// client disconnect, server shutdown, or a failed write.
func (s *Server) streamEvents(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "id")

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "Streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	fmt.Fprintf(w, ": connected to chat %s\n\n", chatID)
	flusher.Flush()

	// The bus invokes this callback on the publisher's goroutine; hand the
	// event to the session's writer loop instead of touching the wire here.
	events := make(chan bus.ChatEvent, sessionBufferSize)
	unsubscribe := s.bus.Subscribe(chatID, func(evt bus.ChatEvent) {
		select {
		case events <- evt:
		default:
			s.logger.Warn("dropped event for slow stream session", "chat_id", chatID)
		}
	})
	defer unsubscribe()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	s.logger.Info("stream session opened", "chat_id", chatID)
	defer s.logger.Info("stream session closed", "chat_id", chatID)

	for {
		select {
		case <-r.Context().Done():
			return
		case <-s.closing:
			return
		case evt := <-events:
			data, err := json.Marshal(evt.Data)
			if err != nil {
				s.logger.Error("failed to serialize chat event", "chat_id", chatID, "error", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Type, data); err != nil {
				return
			}
			flusher.Flush()
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": heartbeat\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
