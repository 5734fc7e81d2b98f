// Package bus provides the in-process event bus connecting the dispatch
// pipeline to event consumers (WebSocket clients, admin tooling).
package bus

import (
	"log/slog"
	"sync"
)

// Event names broadcast by the gateway.
const (
	EventBatchDispatched = "batch.dispatched"
	EventAgentUpdated    = "agent.updated"
	EventShutdown        = "shutdown"
)

// Event represents a server-side event to broadcast to subscribers.
type Event struct {
	Name    string      `json:"name"`
	Payload interface{} `json:"payload,omitempty"`
}

// BatchDispatchedPayload describes one completed flush cycle.
type BatchDispatchedPayload struct {
	BatchKey  string `json:"batch_key"`
	AgentID   string `json:"agent_id"`
	Messages  int    `json:"messages"`
	Failed    int    `json:"failed"`
	ElapsedMS int64  `json:"elapsed_ms"`
}

// EventHandler handles a broadcast event.
type EventHandler func(Event)

// EventPublisher abstracts event broadcast + subscription.
// Used by the gateway server and the dispatcher to decouple from the
// concrete MessageBus.
type EventPublisher interface {
	Subscribe(id string, handler EventHandler)
	Unsubscribe(id string)
	Broadcast(event Event)
}

// MessageBus is the in-process EventPublisher implementation.
// Safe for concurrent use.
type MessageBus struct {
	mu       sync.RWMutex
	handlers map[string]EventHandler
}

// New creates an empty MessageBus.
func New() *MessageBus {
	return &MessageBus{handlers: make(map[string]EventHandler)}
}

// Subscribe registers a handler under the given id, replacing any previous
// handler with the same id.
func (b *MessageBus) Subscribe(id string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[id] = handler
}

// Unsubscribe removes the handler registered under id, if any.
func (b *MessageBus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.handlers, id)
}

// Broadcast delivers the event to every subscriber. Handlers run inline;
// a panicking handler is recovered and logged so one bad subscriber cannot
// take down the dispatch path.
func (b *MessageBus) Broadcast(event Event) {
	b.mu.RLock()
	handlers := make([]EventHandler, 0, len(b.handlers))
	for _, h := range b.handlers {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("event handler panic", "event", event.Name, "panic", r)
				}
			}()
			h(event)
		}()
	}
}
