package adminapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/orchestratorhub/hub/internal/eventbus"
)

// streamedTopics are the event bus topics an operator watching the hub live
// cares about: peer lifecycle and task lifecycle. This list is the bus's
// first and only real subscriber — every registry already publishes these
// (spec §4.7), but nothing previously consumed them.
var streamedTopics = []string{
	"peer.connected",
	"peer.registered",
	"peer.disconnected",
	"task.created",
	"task.updated",
}

// streamEvents serves a Server-Sent-Events feed of the hub's internal event
// bus, generalizing the teacher's Hub.Subscribe-per-websocket-client pattern
// from "push to a connected peer" to "push to a connected admin operator."
func streamEvents(bus *eventbus.Bus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			errJSON(w, http.StatusInternalServerError, "streaming not supported", "internal")
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		// Buffered so a synchronous Publish call never blocks on a slow
		// admin client; a full buffer drops the event rather than stalling
		// the publisher (spec §4.7: "no durability, no backpressure
		// guarantee").
		events := make(chan eventbus.Event, 32)
		unsubs := make([]func(), 0, len(streamedTopics))
		for _, topic := range streamedTopics {
			unsubs = append(unsubs, bus.Subscribe(topic, func(e eventbus.Event) {
				select {
				case events <- e:
				default:
				}
			}))
		}
		defer func() {
			for _, unsub := range unsubs {
				unsub()
			}
		}()

		for {
			select {
			case <-r.Context().Done():
				return
			case e := <-events:
				b, err := json.Marshal(e)
				if err != nil {
					continue
				}
				fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Kind, b)
				flusher.Flush()
			}
		}
	}
}
