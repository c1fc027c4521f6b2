package document

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/ragline/ragline/internal/store"
	"github.com/ragline/ragline/internal/worker"
)

// Store is the persistence collaborator. Implemented by *store.Store.
type Store interface {
	CreateDocument(ctx context.Context, doc store.Document) (*store.Document, error)
	ListDocuments(ctx context.Context) ([]store.Document, error)
	DeleteDocument(ctx context.Context, id string) error
}

// Ingestor forwards documents to the worker's ingestion pipeline.
// Implemented by *worker.Client.
type Ingestor interface {
	IngestFile(ctx context.Context, filename, contentType string, r io.Reader) (*worker.IngestResult, error)
	IngestURL(ctx context.Context, url string) (*worker.IngestResult, error)
	DeleteDocument(ctx context.Context, id string) error
}

// Service proxies document ingestion to the worker and records the result.
// The worker owns the document ids and the chunked index; this service only
// tracks what was ingested.
type Service struct {
	store  Store
	worker Ingestor
	logger *slog.Logger
}

func NewService(s Store, w Ingestor, logger *slog.Logger) *Service {
	return &Service{store: s, worker: w, logger: logger}
}

// IngestFile uploads a file to the worker and records the ingested document.
func (s *Service) IngestFile(ctx context.Context, filename, contentType string, r io.Reader) (*store.Document, error) {
	result, err := s.worker.IngestFile(ctx, filename, contentType, r)
	if err != nil {
		return nil, fmt.Errorf("ingest file: %w", err)
	}

	return s.store.CreateDocument(ctx, store.Document{
		ID:         result.DocumentID,
		Filename:   result.Filename,
		Type:       documentType(filename),
		Status:     result.Status,
		ChunkCount: result.ChunkCount,
	})
}

// IngestURL asks the worker to fetch and ingest a document from a URL.
func (s *Service) IngestURL(ctx context.Context, url string) (*store.Document, error) {
	result, err := s.worker.IngestURL(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("ingest url: %w", err)
	}

	return s.store.CreateDocument(ctx, store.Document{
		ID:         result.DocumentID,
		Filename:   url,
		Type:       "web",
		Status:     result.Status,
		ChunkCount: result.ChunkCount,
	})
}

func (s *Service) List(ctx context.Context) ([]store.Document, error) {
	return s.store.ListDocuments(ctx)
}

// Delete removes the document from the worker's index and from the store.
// The worker-side delete is best-effort: a stale index entry is preferable to
// a document the user cannot remove.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.worker.DeleteDocument(ctx, id); err != nil {
		s.logger.Error("failed to delete document from worker", "document_id", id, "error", err)
	}
	return s.store.DeleteDocument(ctx, id)
}

func documentType(filename string) string {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(filename), "."))
	switch ext {
	case "pdf":
		return "pdf"
	case "md", "markdown":
		return "markdown"
	case "html", "htm":
		return "html"
	default:
		return "text"
	}
}
