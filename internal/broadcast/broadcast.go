// Package broadcast provides a per-server fan-out hub: one producer (the
// child's stdout reader) and any number of consumers (one per open SSE
// connection).
package broadcast

import (
	"encoding/json"
	"sync"

	"github.com/imyashkale/mcpbridge/internal/logger"
)

// EventType identifies what a hub event carries.
type EventType string

const (
	// TypeMessage carries one JSON-RPC object read from the child's stdout
	TypeMessage EventType = "message"
	// TypeExit reports the child's exit code and terminating signal
	TypeExit EventType = "exit"
	// TypeError reports an asynchronous process failure such as a spawn error
	TypeError EventType = "error"
)

// Event is a single item delivered to every subscriber of a hub.
type Event struct {
	Type   EventType
	Data   json.RawMessage
	Code   int
	Signal string
	Err    string
}

// subscriberBuffer bounds how far a slow consumer may fall behind before
// it is pruned.
const subscriberBuffer = 64

// Hub fans events out to a dynamic set of subscribers. Delivery order for
// each subscriber matches publish order. A subscriber whose buffer is full
// is pruned so it cannot block the others.
type Hub struct {
	name string

	mu     sync.Mutex
	subs   map[chan Event]struct{}
	closed bool
}

// NewHub creates an empty hub owned by the named server.
func NewHub(name string) *Hub {
	return &Hub{
		name: name,
		subs: make(map[chan Event]struct{}),
	}
}

// Subscribe registers a new consumer. The returned cancel function
// deregisters it; calling cancel more than once is safe. The channel is
// closed when the consumer is deregistered or the hub is closed.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		close(ch)
		return ch, func() {}
	}
	h.subs[ch] = struct{}{}

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if _, ok := h.subs[ch]; ok {
			delete(h.subs, ch)
			close(ch)
		}
	}
	return ch, cancel
}

// Publish delivers an event to every current subscriber. A subscriber that
// cannot accept the event is removed and its channel closed.
func (h *Hub) Publish(event Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}

	for ch := range h.subs {
		select {
		case ch <- event:
		default:
			logger.WithField("server", h.name).Warn("Pruning slow event subscriber")
			delete(h.subs, ch)
			close(ch)
		}
	}
}

// Close deregisters every subscriber and closes their channels. Further
// Publish and Subscribe calls become no-ops.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for ch := range h.subs {
		delete(h.subs, ch)
		close(ch)
	}
}

// SubscriberCount returns the number of registered subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
