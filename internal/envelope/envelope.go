// Package envelope defines the hub's wire frame and the small set of
// message-type constants every peer listener and router handler shares.
//
// Every frame that crosses a peer connection — or is published internally
// between listener, router, and MCP supervisor — is an Envelope. A reply's
// RequestID equals the ID of the frame it answers; IDs are unique within
// one hub run.
package envelope

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Envelope is the hub's message frame: id, type, content, optional
// requestId, timestamp. See spec §3.
type Envelope struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Content   json.RawMessage `json:"content,omitempty"`
	RequestID string          `json:"requestId,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// New builds an Envelope with a freshly minted ID and the current time,
// marshaling content into the Content field.
func New(msgType string, content any) (Envelope, error) {
	raw, err := marshalContent(content)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		ID:        uuid.NewString(),
		Type:      msgType,
		Content:   raw,
		Timestamp: time.Now().UTC(),
	}, nil
}

// Reply builds an Envelope answering `requestID`, following the Envelope
// invariant that a reply's RequestID equals the original frame's ID.
func Reply(msgType, requestID string, content any) (Envelope, error) {
	env, err := New(msgType, content)
	if err != nil {
		return Envelope{}, err
	}
	env.RequestID = requestID
	return env, nil
}

func marshalContent(content any) (json.RawMessage, error) {
	if content == nil {
		return nil, nil
	}
	if raw, ok := content.(json.RawMessage); ok {
		return raw, nil
	}
	b, err := json.Marshal(content)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Decode unmarshals Content into v. Pass a pointer, as with json.Unmarshal.
func (e Envelope) Decode(v any) error {
	if len(e.Content) == 0 {
		return nil
	}
	return json.Unmarshal(e.Content, v)
}

// EnsureStamped fills in ID and Timestamp if absent, as required of every
// outbound frame per spec §4.1.
func EnsureStamped(e Envelope) Envelope {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	return e
}
