package api

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ragline/ragline/internal/bus"
)

func waitForSubscribers(t *testing.T, b *bus.Bus, chatID string, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if b.SubscriberCount(chatID) == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected %d subscribers for %s, got %d", want, chatID, b.SubscriberCount(chatID))
}

func readFrame(t *testing.T, r *bufio.Reader) []string {
	t.Helper()
	var lines []string
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("failed to read stream: %v", err)
		}
		line = strings.TrimRight(line, "\n")
		if line == "" {
			return lines
		}
		lines = append(lines, line)
	}
}

func TestStreamEvents_DeliversPublishedEvents(t *testing.T) {
	env := newTestServer(t)
	ts := httptest.NewServer(env.srv.router)
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/chats/chat-1/events", nil)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("failed to open stream: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("expected text/event-stream, got %q", ct)
	}
	if cc := resp.Header.Get("Cache-Control"); cc != "no-cache" {
		t.Errorf("expected no-cache, got %q", cc)
	}

	reader := bufio.NewReader(resp.Body)

	frame := readFrame(t, reader)
	if len(frame) != 1 || frame[0] != ": connected to chat chat-1" {
		t.Fatalf("expected connection comment frame, got %v", frame)
	}

	waitForSubscribers(t, env.bus, "chat-1", 1)

	env.bus.PublishMessage("chat-1", bus.Message{ID: "m1", Content: "hi", Role: "ASSISTANT"})

	frame = readFrame(t, reader)
	if len(frame) != 2 {
		t.Fatalf("expected event+data lines, got %v", frame)
	}
	if frame[0] != "event: message" {
		t.Errorf("expected event: message, got %q", frame[0])
	}
	var msg bus.Message
	if err := json.Unmarshal([]byte(strings.TrimPrefix(frame[1], "data: ")), &msg); err != nil {
		t.Fatalf("failed to decode event data: %v", err)
	}
	if msg.ID != "m1" || msg.Content != "hi" || msg.Role != "ASSISTANT" {
		t.Errorf("unexpected event payload %+v", msg)
	}

	env.bus.PublishError("chat-1", "boom")

	frame = readFrame(t, reader)
	if len(frame) != 2 || frame[0] != "event: error" {
		t.Fatalf("expected error frame, got %v", frame)
	}
	var errData bus.ErrorData
	if err := json.Unmarshal([]byte(strings.TrimPrefix(frame[1], "data: ")), &errData); err != nil {
		t.Fatalf("failed to decode error data: %v", err)
	}
	if errData.Message != "boom" {
		t.Errorf("expected error message boom, got %q", errData.Message)
	}
}

func TestStreamEvents_ClientDisconnectReleasesSubscription(t *testing.T) {
	env := newTestServer(t)
	ts := httptest.NewServer(env.srv.router)
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/chats/chat-1/events", nil)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("failed to open stream: %v", err)
	}
	defer resp.Body.Close()

	waitForSubscribers(t, env.bus, "chat-1", 1)

	cancel()

	waitForSubscribers(t, env.bus, "chat-1", 0)

	// Publishing after disconnect must not fail or resurrect the topic.
	env.bus.PublishMessage("chat-1", bus.Message{ID: "m2"})
	if n := env.bus.SubscriberCount("chat-1"); n != 0 {
		t.Errorf("expected 0 subscribers, got %d", n)
	}
}

func TestStreamEvents_ServerShutdownReleasesSubscription(t *testing.T) {
	env := newTestServer(t)
	ts := httptest.NewServer(env.srv.router)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/chats/chat-1/events")
	if err != nil {
		t.Fatalf("failed to open stream: %v", err)
	}
	defer resp.Body.Close()

	waitForSubscribers(t, env.bus, "chat-1", 1)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := env.srv.Stop(shutdownCtx); err != nil {
		t.Fatalf("unexpected shutdown error: %v", err)
	}

	waitForSubscribers(t, env.bus, "chat-1", 0)
}

func TestStreamEvents_TwoSubscribersSameChat(t *testing.T) {
	env := newTestServer(t)
	ts := httptest.NewServer(env.srv.router)
	defer ts.Close()

	open := func() (*bufio.Reader, func()) {
		ctx, cancel := context.WithCancel(context.Background())
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/chats/chat-1/events", nil)
		if err != nil {
			t.Fatalf("failed to build request: %v", err)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("failed to open stream: %v", err)
		}
		reader := bufio.NewReader(resp.Body)
		readFrame(t, reader) // connection comment
		return reader, func() {
			cancel()
			resp.Body.Close()
		}
	}

	readerA, closeA := open()
	defer closeA()
	readerB, closeB := open()
	defer closeB()

	waitForSubscribers(t, env.bus, "chat-1", 2)

	env.bus.PublishMessage("chat-1", bus.Message{ID: "m1", Content: "first"})
	env.bus.PublishMessage("chat-1", bus.Message{ID: "m2", Content: "second"})

	for _, reader := range []*bufio.Reader{readerA, readerB} {
		for _, wantID := range []string{"m1", "m2"} {
			frame := readFrame(t, reader)
			var msg bus.Message
			if err := json.Unmarshal([]byte(strings.TrimPrefix(frame[1], "data: ")), &msg); err != nil {
				t.Fatalf("failed to decode event data: %v", err)
			}
			if msg.ID != wantID {
				t.Errorf("expected event %s, got %s", wantID, msg.ID)
			}
		}
	}
}
