package xqueue

import (
	"context"
	"time"
)

// Pattern selects the socket semantics of a Channel.
type Pattern string

const (
	// PatternDealer sends frames unchanged to one connected peer (round-robin
	// when several are connected) and receives frames unchanged.
	PatternDealer Pattern = "dealer"
	// PatternRouter is peer-addressable: every received message is prefixed
	// with an opaque handle naming the connection it arrived on, and the first
	// frame of every sent message selects the destination connection.
	PatternRouter Pattern = "router"
	// PatternRequest is a synchronous request channel. An empty delimiter
	// envelope is added on send and stripped on receive.
	PatternRequest Pattern = "req"
)

// Channel is one connected socket-like endpoint carrying ordered multi-frame
// messages. A Channel has a single owner; callers must not issue overlapping
// operations on it.
type Channel interface {
	// Send delivers frames as one message, preserving order and boundaries.
	Send(ctx context.Context, frames [][]byte) error
	// Recv blocks until a message arrives or ctx is done.
	Recv(ctx context.Context) ([][]byte, error)
	// Poll waits up to timeout for a message to become readable. A zero
	// timeout checks without blocking. A true result guarantees the next
	// Recv returns without waiting.
	Poll(ctx context.Context, timeout time.Duration) (bool, error)
	// Close releases the connection.
	Close() error
}

// Transport is the Strategy interface for the messaging backend.
type Transport interface {
	// Dial opens an outbound channel of the given pattern to address.
	Dial(ctx context.Context, pattern Pattern, address string) (Channel, error)
	// Close releases resources shared by all channels.
	Close(ctx context.Context) error
}

// Listener is implemented by transports that can also host the binding side
// of a channel, as a broker does.
type Listener interface {
	Listen(ctx context.Context, pattern Pattern, address string) (Channel, error)
}
