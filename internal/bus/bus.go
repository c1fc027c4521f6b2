package bus

import (
	"log/slog"
	"sync"
)

// EventType tags a ChatEvent for SSE delivery.
type EventType string

const (
	EventMessage EventType = "message"
	EventError   EventType = "error"
)

// Message is the wire shape of a message event payload.
type Message struct {
	ID      string `json:"id"`
	Content string `json:"content"`
	Role    string `json:"role"`
}

// ErrorData is the wire shape of an error event payload.
type ErrorData struct {
	Message string `json:"message"`
}

// ChatEvent is delivered to subscribers of a chat. Data is either a Message
// or an ErrorData depending on Type. Events are transient — they exist only
// between publish and delivery and are never persisted.
type ChatEvent struct {
	Type EventType
	Data any
}

// Callback receives events for a subscribed chat. It is invoked on the
// publisher's goroutine and may run concurrently with callbacks of other
// subscribers, so it must be safe for concurrent use and should not block.
type Callback func(ChatEvent)

// Bus is an in-memory pub/sub registry keyed by chat id. One instance is
// created at process start and shared by the callback handler (publisher)
// and the SSE sessions (subscribers).
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]map[uint64]Callback
	nextID      uint64
	logger      *slog.Logger
}

func New(logger *slog.Logger) *Bus {
	return &Bus{
		subscribers: make(map[string]map[uint64]Callback),
		logger:      logger,
	}
}

// Subscribe registers cb for events on chatID and returns an unsubscribe
// handle. The handle removes exactly this registration and drops the chat's
// registry entry once the last subscriber leaves. Calling it more than once
// is a no-op.
func (b *Bus) Subscribe(chatID string, cb Callback) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	if _, ok := b.subscribers[chatID]; !ok {
		b.subscribers[chatID] = make(map[uint64]Callback)
	}
	b.subscribers[chatID][id] = cb
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.unsubscribe(chatID, id)
		})
	}
}

func (b *Bus) unsubscribe(chatID string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.subscribers[chatID]
	if !ok {
		return
	}
	delete(subs, id)
	if len(subs) == 0 {
		delete(b.subscribers, chatID)
	}
}

// PublishMessage delivers a message event to all current subscribers of chatID.
func (b *Bus) PublishMessage(chatID string, msg Message) {
	b.publish(chatID, ChatEvent{Type: EventMessage, Data: msg})
}

// PublishError delivers an error event to all current subscribers of chatID.
func (b *Bus) PublishError(chatID string, errMsg string) {
	b.publish(chatID, ChatEvent{Type: EventError, Data: ErrorData{Message: errMsg}})
}

// publish snapshots the subscriber set under the read lock, then invokes
// callbacks outside it so a slow or failing subscriber cannot hold up
// registry mutations. With no subscribers the event is silently dropped.
func (b *Bus) publish(chatID string, event ChatEvent) {
	b.mu.RLock()
	subs, ok := b.subscribers[chatID]
	if !ok || len(subs) == 0 {
		b.mu.RUnlock()
		return
	}
	targets := make([]Callback, 0, len(subs))
	for _, cb := range subs {
		targets = append(targets, cb)
	}
	b.mu.RUnlock()

	for _, cb := range targets {
		b.invoke(chatID, cb, event)
	}
}

// invoke isolates a single callback: a panic is recovered and logged so the
// remaining subscribers of the same publish still receive the event.
func (b *Bus) invoke(chatID string, cb Callback, event ChatEvent) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("chat event callback panicked", "chat_id", chatID, "panic", r)
		}
	}()
	cb(event)
}

// SubscriberCount reports the number of subscribers for a chat.
func (b *Bus) SubscriberCount(chatID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[chatID])
}
