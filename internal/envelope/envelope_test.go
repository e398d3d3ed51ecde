package envelope

import (
	"encoding/json"
	"testing"
	"time"
)

func TestNewStampsIDAndTimestamp(t *testing.T) {
	env, err := New(TypePing, map[string]string{"timestamp": "now"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if env.ID == "" {
		t.Fatal("expected a minted id")
	}
	if env.Timestamp.IsZero() {
		t.Fatal("expected a non-zero timestamp")
	}
	if env.Type != TypePing {
		t.Fatalf("expected type %q, got %q", TypePing, env.Type)
	}
}

func TestReplyEchoesRequestID(t *testing.T) {
	reply, err := Reply(TypePong, "original-id", nil)
	if err != nil {
		t.Fatalf("Reply: %v", err)
	}
	if reply.RequestID != "original-id" {
		t.Fatalf("expected requestId original-id, got %s", reply.RequestID)
	}
}

func TestDecodeRoundTrip(t *testing.T) {
	type payload struct {
		TaskID string `json:"taskId"`
	}
	env, err := New(TypeTaskCreated, payload{TaskID: "t1"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var out payload
	if err := env.Decode(&out); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if out.TaskID != "t1" {
		t.Fatalf("expected taskId t1, got %s", out.TaskID)
	}
}

func TestDecodeEmptyContentIsNoop(t *testing.T) {
	env := Envelope{ID: "x", Type: TypePing}
	var out struct{ Foo string }
	if err := env.Decode(&out); err != nil {
		t.Fatalf("expected no error decoding empty content, got %v", err)
	}
}

func TestEnsureStampedFillsOnlyMissingFields(t *testing.T) {
	fixedTime := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	env := Envelope{ID: "already-set", Type: TypePong, Timestamp: fixedTime}
	stamped := EnsureStamped(env)
	if stamped.ID != "already-set" {
		t.Fatalf("expected EnsureStamped to leave an existing id alone, got %s", stamped.ID)
	}
	if !stamped.Timestamp.Equal(fixedTime) {
		t.Fatalf("expected EnsureStamped to leave an existing timestamp alone, got %v", stamped.Timestamp)
	}

	empty := Envelope{Type: TypePong}
	stampedEmpty := EnsureStamped(empty)
	if stampedEmpty.ID == "" {
		t.Fatal("expected EnsureStamped to mint a missing id")
	}
	if stampedEmpty.Timestamp.IsZero() {
		t.Fatal("expected EnsureStamped to mint a missing timestamp")
	}
}

func TestEnvelopeJSONRoundTrip(t *testing.T) {
	env, err := New(TypeTaskResult, map[string]any{"taskId": "t1", "result": map[string]any{"ok": true}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	env.RequestID = "req-1"

	raw, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded Envelope
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.ID != env.ID || decoded.Type != env.Type || decoded.RequestID != env.RequestID {
		t.Fatalf("round trip mismatch: got %+v, want %+v", decoded, env)
	}
}
