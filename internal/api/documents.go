package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ragline/ragline/internal/store"
)

// maxUploadSize caps document uploads at 32 MiB.
const maxUploadSize = 32 << 20

type documentResponse struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	Type       string    `json:"type"`
	Status     string    `json:"status"`
	ChunkCount int       `json:"chunkCount"`
	CreatedAt  time.Time `json:"createdAt"`
}

type ingestURLRequest struct {
	URL string `json:"url"`
}

func toDocumentResponse(d store.Document) documentResponse {
	return documentResponse{
		ID:         d.ID,
		Filename:   d.Filename,
		Type:       d.Type,
		Status:     d.Status,
		ChunkCount: d.ChunkCount,
		CreatedAt:  d.CreatedAt,
	}
}

func (s *Server) uploadDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file provided")
		return
	}
	defer file.Close()

	doc, err := s.docs.IngestFile(r.Context(), header.Filename, header.Header.Get("Content-Type"), file)
	if err != nil {
		s.logger.Error("document ingestion failed", "filename", header.Filename, "error", err)
		writeError(w, http.StatusBadRequest, "Document ingestion failed")
		return
	}
	writeJSON(w, http.StatusCreated, toDocumentResponse(*doc))
}

func (s *Server) ingestDocumentURL(w http.ResponseWriter, r *http.Request) {
	var req ingestURLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		writeError(w, http.StatusBadRequest, "Invalid payload")
		return
	}

	doc, err := s.docs.IngestURL(r.Context(), req.URL)
	if err != nil {
		s.logger.Error("url ingestion failed", "url", req.URL, "error", err)
		writeError(w, http.StatusBadRequest, "URL ingestion failed")
		return
	}
	writeJSON(w, http.StatusCreated, toDocumentResponse(*doc))
}

func (s *Server) listDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.docs.List(r.Context())
	if err != nil {
		s.logger.Error("failed to list documents", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to list documents")
		return
	}
	out := make([]documentResponse, 0, len(docs))
	for _, d := range docs {
		out = append(out, toDocumentResponse(d))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) deleteDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	err := s.docs.Delete(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Document not found")
		return
	}
	if err != nil {
		s.logger.Error("failed to delete document", "document_id", id, "error", err)
		writeError(w, http.StatusBadRequest, "Failed to delete document")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
