// Package huberrors implements the hub's error taxonomy (spec §7): a small
// set of sentinel errors, each carrying a wire Code for serialization into
// an `error` envelope's content.
package huberrors

import "errors"

// Code is the machine-readable tag carried in an `error` envelope's
// content, mirroring the teacher's HTTP error-code strings
// (arkeep-io-arkeep/server/internal/api/response.go) but mapped onto
// spec §7's taxonomy instead of HTTP status codes.
type Code string

const (
	CodeInvalidMessage         Code = "invalid_message"
	CodeUnknownIdentity        Code = "unknown_identity"
	CodeNotFound               Code = "not_found"
	CodeIllegalTransition      Code = "illegal_transition"
	CodeUnavailablePeer        Code = "unavailable_peer"
	CodeTimeout                Code = "timeout"
	CodeUnsupportedMessageType Code = "unsupported_message_type"
	CodeShutdown               Code = "shutdown"
)

// Sentinel errors returned by registries, the task registry, the
// correlator, and the router. Callers should use errors.Is for comparison.
var (
	ErrInvalidMessage         = errors.New("hub: invalid message")
	ErrUnknownConnection      = errors.New("hub: unknown connection")
	ErrUnknownIdentity        = errors.New("hub: unknown identity")
	ErrNotFound               = errors.New("hub: not found")
	ErrIllegalTransition      = errors.New("hub: illegal status transition")
	ErrUnavailablePeer        = errors.New("hub: peer unavailable")
	ErrTimeout                = errors.New("hub: request timed out")
	ErrUnsupportedMessageType = errors.New("hub: unsupported message type")
	ErrShutdown               = errors.New("hub: shutting down")
)

// CodeFor maps a sentinel error to its wire Code. Unrecognized errors map
// to CodeInvalidMessage, the most general category.
func CodeFor(err error) Code {
	switch {
	case errors.Is(err, ErrUnknownConnection), errors.Is(err, ErrUnknownIdentity):
		return CodeUnknownIdentity
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrIllegalTransition):
		return CodeIllegalTransition
	case errors.Is(err, ErrUnavailablePeer):
		return CodeUnavailablePeer
	case errors.Is(err, ErrTimeout):
		return CodeTimeout
	case errors.Is(err, ErrUnsupportedMessageType):
		return CodeUnsupportedMessageType
	case errors.Is(err, ErrShutdown):
		return CodeShutdown
	default:
		return CodeInvalidMessage
	}
}

// Payload is the content of an `error` envelope (spec §7: "error frames
// include a human-readable error, optional details, and the request id
// when available").
type Payload struct {
	Error   string `json:"error"`
	Code    Code   `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// NewPayload builds an error Payload from err, tagging it with the wire
// Code derived from the sentinel it wraps (or CodeInvalidMessage if
// unrecognized).
func NewPayload(err error, details any) Payload {
	return Payload{
		Error:   err.Error(),
		Code:    CodeFor(err),
		Details: details,
	}
}
