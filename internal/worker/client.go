package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"
)

// Client talks to the external worker over HTTP. The worker accepts a chat
// trigger and reports the result later through the callback URL; document
// ingestion is synchronous.
type Client struct {
	baseURL  string
	provider string
	model    string
	client   *http.Client
	logger   *slog.Logger
}

func NewClient(baseURL, provider, model string, logger *slog.Logger) *Client {
	return &Client{
		baseURL:  baseURL,
		provider: provider,
		model:    model,
		client:   &http.Client{Timeout: 30 * time.Second},
		logger:   logger,
	}
}

type triggerRequest struct {
	ChatID      string         `json:"chat_id"`
	Message     string         `json:"message"`
	CallbackURL string         `json:"callback_url"`
	Provider    string         `json:"provider,omitempty"`
	Model       string         `json:"model,omitempty"`
	Metadata    map[string]any `json:"metadata"`
}

// TriggerChat submits a processing request for one user message. The worker
// answers asynchronously via callbackURL; this call only reports whether the
// request was accepted. Any non-200 status or transport failure is reported
// as false — there is no retry, the caller decides what to surface.
func (c *Client) TriggerChat(ctx context.Context, chatID, message, callbackURL string) bool {
	body, err := json.Marshal(triggerRequest{
		ChatID:      chatID,
		Message:     message,
		CallbackURL: callbackURL,
		Provider:    c.provider,
		Model:       c.model,
		Metadata:    map[string]any{},
	})
	if err != nil {
		c.logger.Error("marshal trigger request", "chat_id", chatID, "error", err)
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/trigger", bytes.NewReader(body))
	if err != nil {
		c.logger.Error("build trigger request", "chat_id", chatID, "error", err)
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Error("worker trigger failed", "chat_id", chatID, "error", err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		c.logger.Error("worker rejected trigger",
			"chat_id", chatID,
			"status", resp.StatusCode,
			"body", string(respBody),
		)
		return false
	}
	return true
}

// IngestResult is the worker's response to a document ingestion request.
type IngestResult struct {
	DocumentID string `json:"document_id"`
	Filename   string `json:"filename"`
	ChunkCount int    `json:"chunk_count"`
	Status     string `json:"status"`
}

// IngestFile uploads a file to the worker's ingestion pipeline.
func (c *Client) IngestFile(ctx context.Context, filename, contentType string, r io.Reader) (*IngestResult, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("copy file: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/documents/ingest", &buf)
	if err != nil {
		return nil, fmt.Errorf("build ingest request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	return c.doIngest(req)
}

// IngestURL asks the worker to fetch and ingest a document from a URL.
func (c *Client) IngestURL(ctx context.Context, url string) (*IngestResult, error) {
	body, err := json.Marshal(map[string]string{"url": url})
	if err != nil {
		return nil, fmt.Errorf("marshal ingest request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/documents/ingest-url", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build ingest request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.doIngest(req)
}

func (c *Client) doIngest(req *http.Request) (*IngestResult, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("worker ingest failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read ingest response: %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("worker ingest error %d: %s", resp.StatusCode, string(respBody))
	}

	var result IngestResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("unmarshal ingest response: %w", err)
	}
	return &result, nil
}

// DeleteDocument removes a document from the worker's index.
func (c *Client) DeleteDocument(ctx context.Context, id string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/documents/"+id, nil)
	if err != nil {
		return fmt.Errorf("build delete request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("worker delete failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("worker delete error %d", resp.StatusCode)
	}
	return nil
}
