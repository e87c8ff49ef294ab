package domain

import "fmt"

// MediaPermissionError means the camera/microphone was denied or absent.
// Fatal for the current attempt; Reason is surfaced verbatim to the UI.
type MediaPermissionError struct {
	Reason string
	Err    error
}

func (e MediaPermissionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("media permission: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("media permission: %s", e.Reason)
}

func (e MediaPermissionError) Unwrap() error { return e.Err }

// TransportError means the signaling channel was lost or unreachable while
// a session was desired. Transient: one retry gets scheduled.
type TransportError struct {
	Reason string
	Err    error
}

func (e TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("signaling transport: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("signaling transport: %s", e.Reason)
}

func (e TransportError) Unwrap() error { return e.Err }

// NegotiationError means the peer connection reported a hard failure.
// Fatal: no automatic retry.
type NegotiationError struct {
	Reason string
	Err    error
}

func (e NegotiationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("negotiation: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("negotiation: %s", e.Reason)
}

func (e NegotiationError) Unwrap() error { return e.Err }
