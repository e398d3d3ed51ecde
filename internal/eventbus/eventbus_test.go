package eventbus

import (
	"sync"
	"testing"
)

func TestPublishDeliversToAllSubscribers(t *testing.T) {
	b := New()
	var mu sync.Mutex
	var got []string

	b.Subscribe("task.updated", func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, "first:"+e.Kind)
	})
	b.Subscribe("task.updated", func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, "second:"+e.Kind)
	})

	b.Publish("task.updated", Event{Kind: "task.updated", Data: "x"})

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 2 {
		t.Fatalf("expected 2 deliveries, got %d", len(got))
	}
	if got[0] != "first:task.updated" || got[1] != "second:task.updated" {
		t.Fatalf("expected registration-order delivery, got %v", got)
	}
}

func TestPublishIgnoresOtherTopics(t *testing.T) {
	b := New()
	called := false
	b.Subscribe("peer.connected", func(Event) { called = true })

	b.Publish("peer.disconnected", Event{Kind: "peer.disconnected"})

	if called {
		t.Fatal("expected no delivery for a non-matching topic")
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := New()
	count := 0
	unsubscribe := b.Subscribe("task.updated", func(Event) { count++ })

	b.Publish("task.updated", Event{Kind: "task.updated"})
	unsubscribe()
	b.Publish("task.updated", Event{Kind: "task.updated"})

	if count != 1 {
		t.Fatalf("expected exactly 1 delivery before unsubscribe, got %d", count)
	}
}

func TestPublishWithNoSubscribersDoesNotPanic(t *testing.T) {
	b := New()
	b.Publish("nothing.subscribed", Event{Kind: "nothing.subscribed"})
}
