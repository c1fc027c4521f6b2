package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ragline/ragline/internal/bus"
	"github.com/ragline/ragline/internal/chat"
	"github.com/ragline/ragline/internal/document"
)

type Server struct {
	router *chi.Mux
	http   *http.Server
	chat   *chat.Service
	docs   *document.Service
	bus    *bus.Bus
	logger *slog.Logger

	// closing is closed on shutdown so long-lived SSE sessions terminate
	// instead of holding Shutdown open.
	closing chan struct{}
}

func NewServer(port int, chatSvc *chat.Service, docSvc *document.Service, b *bus.Bus, logger *slog.Logger) *Server {
	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	s := &Server{
		router:  router,
		chat:    chatSvc,
		docs:    docSvc,
		bus:     b,
		logger:  logger,
		closing: make(chan struct{}),
	}
	s.http = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: router,
	}

	router.Get("/health", s.health)

	router.Route("/chats", func(r chi.Router) {
		r.Post("/", s.createChat)
		r.Get("/", s.listChats)
		r.Get("/{id}", s.getChat)
		r.Delete("/{id}", s.deleteChat)
		r.Post("/{id}/messages", s.createMessage)
		r.Post("/{id}/messages/{messageID}/callback", s.handleCallback)
		r.Get("/{id}/events", s.streamEvents)
	})

	router.Route("/documents", func(r chi.Router) {
		r.Post("/", s.uploadDocument)
		r.Post("/url", s.ingestDocumentURL)
		r.Get("/", s.listDocuments)
		r.Delete("/{id}", s.deleteDocument)
	})

	return s
}

func (s *Server) Start() error {
	s.logger.Info("API server starting", "addr", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop terminates open SSE sessions, then drains in-flight requests.
func (s *Server) Stop(ctx context.Context) error {
	close(s.closing)
	return s.http.Shutdown(ctx)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
