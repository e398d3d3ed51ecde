// Package eventbus implements the hub's internal publish/subscribe glue
// (spec §4.7): a single in-process, string-topic bus used only between
// hub components (listeners, router, MCP supervisor) — never across peer
// connections. Delivery is synchronous in the publisher's goroutine;
// subscribers must not block.
//
// Grounded on arkeep-io-arkeep/server/internal/websocket/hub.go's
// topic-map design, generalized from "broadcast to subscribed websocket
// clients" (a fixed consumer shape) to "call any in-process subscriber
// function," since this bus's consumers are Go closures, not wire
// connections.
package eventbus

import "sync"

// Event is the payload delivered to a topic's subscribers. Kind is the
// event name (e.g. "peer.connected", "task.updated"); Data is event-
// specific and each subscriber is expected to know the shape for the
// topics it subscribes to.
type Event struct {
	Kind string
	Data any
}

// Handler receives one published Event. It must not block — delivery runs
// synchronously in the publisher's goroutine (spec §4.7: "no durability,
// no backpressure guarantee").
type Handler func(Event)

// Bus is the hub's internal pub/sub broker.
type Bus struct {
	mu   sync.RWMutex
	subs map[string][]Handler
}

// New creates an empty Bus.
func New() *Bus {
	return &Bus{subs: make(map[string][]Handler)}
}

// Subscribe registers handler to be called synchronously for every event
// published on topic. Returns an unsubscribe function.
func (b *Bus) Subscribe(topic string, handler Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.subs[topic] = append(b.subs[topic], handler)
	idx := len(b.subs[topic]) - 1

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		handlers := b.subs[topic]
		if idx < len(handlers) {
			handlers[idx] = nil
		}
	}
}

// Publish delivers event to every handler subscribed to topic, in
// registration order, on the calling goroutine.
func (b *Bus) Publish(topic string, event Event) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.subs[topic]))
	copy(handlers, b.subs[topic])
	b.mu.RUnlock()

	for _, h := range handlers {
		if h != nil {
			h(event)
		}
	}
}
