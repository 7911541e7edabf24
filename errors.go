package xqueue

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNoTransportConfigured = errors.New("xqueue: no transport configured")
	ErrNotConnected          = errors.New("xqueue: not connected")
	ErrAlreadyConnected      = errors.New("xqueue: already connected")
	ErrClosed                = errors.New("xqueue: closed")
	ErrProduceInFlight       = errors.New("xqueue: a produce request is already in flight")
	ErrEmptyID               = errors.New("xqueue: message id must not be empty")
	ErrEmptyPayload          = errors.New("xqueue: message payload must have at least one frame")
	ErrMissingPeer           = errors.New("xqueue: message has no peer handle")
	ErrIDImmutable           = errors.New("xqueue: message id is already set")
	ErrPeerUnreachable       = errors.New("xqueue: peer unreachable")

	// ErrNoMessage is returned by a non-blocking Consume when nothing is
	// pending. It is an expected outcome, not a failure.
	ErrNoMessage = errors.New("xqueue: no message available")

	// Match targets for the protocol error types below.
	ErrAckTimeout    = errors.New("xqueue: ack timeout")
	ErrWrongAck      = errors.New("xqueue: ack for wrong message")
	ErrRemoteFailure = errors.New("xqueue: remote peer failed to handle message")
	ErrProtocol      = errors.New("xqueue: protocol error")
)

var (
	ErrObserverPoolShutdownTimeout = errors.New("xqueue: observer pool shutdown timeout")
	ErrDefaultClientNotInitialized = errors.New("xqueue: default client not initialized")
)

type ErrUnknownTransport struct{ name string }

func (e ErrUnknownTransport) Error() string { return fmt.Sprintf("xqueue: unknown transport: %s", e.name) }

// AckTimeoutError reports that no accept ack arrived within the produce timeout.
type AckTimeoutError struct {
	ID      string
	Timeout time.Duration
}

func (e *AckTimeoutError) Error() string {
	return fmt.Sprintf("xqueue: ack timeout for %q after %s", e.ID, e.Timeout)
}

func (e *AckTimeoutError) Is(target error) bool { return target == ErrAckTimeout }

// WrongAckError reports an accept ack echoing an id other than the one sent.
type WrongAckError struct {
	Expected string
	Got      string
}

func (e *WrongAckError) Error() string {
	return fmt.Sprintf("xqueue: got ack for %q, expected %q", e.Got, e.Expected)
}

func (e *WrongAckError) Is(target error) bool { return target == ErrWrongAck }

// RemoteFailureError carries the non-OK status reported by the broker.
type RemoteFailureError struct {
	ID     string
	Status string
}

func (e *RemoteFailureError) Error() string {
	return fmt.Sprintf("xqueue: remote peer failed to handle %q: %s", e.ID, e.Status)
}

func (e *RemoteFailureError) Is(target error) bool { return target == ErrRemoteFailure }

// ProtocolError reports a malformed frame sequence or report line.
type ProtocolError struct {
	Reason string
	Line   string
}

func (e *ProtocolError) Error() string {
	if e.Line != "" {
		return fmt.Sprintf("xqueue: protocol error: %s: %q", e.Reason, e.Line)
	}
	return "xqueue: protocol error: " + e.Reason
}

func (e *ProtocolError) Is(target error) bool { return target == ErrProtocol }
