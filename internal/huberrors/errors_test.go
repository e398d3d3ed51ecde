package huberrors

import (
	"errors"
	"testing"
)

func TestCodeForMapsSentinels(t *testing.T) {
	cases := []struct {
		err  error
		want Code
	}{
		{ErrUnknownConnection, CodeUnknownIdentity},
		{ErrUnknownIdentity, CodeUnknownIdentity},
		{ErrNotFound, CodeNotFound},
		{ErrIllegalTransition, CodeIllegalTransition},
		{ErrUnavailablePeer, CodeUnavailablePeer},
		{ErrTimeout, CodeTimeout},
		{ErrUnsupportedMessageType, CodeUnsupportedMessageType},
		{ErrShutdown, CodeShutdown},
		{ErrInvalidMessage, CodeInvalidMessage},
		{errors.New("some unrelated error"), CodeInvalidMessage},
	}

	for _, tc := range cases {
		if got := CodeFor(tc.err); got != tc.want {
			t.Errorf("CodeFor(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestCodeForWrappedError(t *testing.T) {
	wrapped := errors.Join(errors.New("context"), ErrNotFound)
	if got := CodeFor(wrapped); got != CodeNotFound {
		t.Fatalf("expected wrapped ErrNotFound to map to CodeNotFound, got %q", got)
	}
}

func TestNewPayloadCarriesCodeAndDetails(t *testing.T) {
	p := NewPayload(ErrTimeout, map[string]string{"taskId": "t1"})
	if p.Code != CodeTimeout {
		t.Fatalf("expected code %q, got %q", CodeTimeout, p.Code)
	}
	if p.Error == "" {
		t.Fatal("expected a non-empty error message")
	}
	details, ok := p.Details.(map[string]string)
	if !ok || details["taskId"] != "t1" {
		t.Fatalf("expected details to round-trip, got %#v", p.Details)
	}
}
