package xqueue

import (
	"strconv"
	"time"
)

// Message is one unit of work in flight.
//
// Producers construct it with an id and payload. Consumers receive it rebuilt
// from wire frames, including the peer handle needed to route the completion
// ack back to the connection that delivered it.
type Message struct {
	id         string
	peer       []byte
	sentTime   int64
	ackTimeout int64
	payload    [][]byte
}

// NewMessage returns a message with the given id and payload frames.
func NewMessage(id string, frames ...[]byte) *Message {
	m := &Message{id: id}
	m.SetPayload(frames...)
	return m
}

// ID returns the caller-assigned identifier.
func (m *Message) ID() string { return m.id }

// SetID assigns the identifier. Once set it can not be changed.
func (m *Message) SetID(id string) error {
	if m.id != "" && m.id != id {
		return ErrIDImmutable
	}
	m.id = id
	return nil
}

// Peer returns the opaque routing handle captured on receipt. It is nil for
// messages built by a producer and must not be interpreted.
func (m *Message) Peer() []byte { return m.peer }

// SentTime is the dispatch timestamp in microseconds since the Unix epoch.
func (m *Message) SentTime() int64 { return m.sentTime }

func (m *Message) SetSentTime(us int64) { m.sentTime = us }

// AckTimeout is the assignment lifetime in microseconds. Zero means the
// assignment never expires.
func (m *Message) AckTimeout() int64 { return m.ackTimeout }

func (m *Message) SetAckTimeout(us int64) { m.ackTimeout = us }

// Payload returns the ordered payload frames.
func (m *Message) Payload() [][]byte { return m.payload }

// SetPayload replaces the payload with copies of frames, preserving order.
func (m *Message) SetPayload(frames ...[]byte) {
	m.payload = cloneFrames(frames)
}

// SetPayloadString is a shorthand for text payloads.
func (m *Message) SetPayloadString(parts ...string) {
	frames := make([][]byte, len(parts))
	for i, p := range parts {
		frames[i] = []byte(p)
	}
	m.payload = frames
}

// Deadline returns the instant after which the assignment is expired, or the
// zero time when no ack timeout applies.
func (m *Message) Deadline() time.Time {
	if m.ackTimeout <= 0 {
		return time.Time{}
	}
	return time.UnixMicro(m.sentTime + m.ackTimeout)
}

// Expired reports whether the assignment is stale at now. See IsExpired.
func (m *Message) Expired(now time.Time) bool { return IsExpired(m, now) }

// IsExpired reports whether msg's assignment window has elapsed at now.
// A message is expired iff now - sentTime is strictly greater than ackTimeout,
// so a message observed exactly at its deadline is still live. Messages with a
// non-positive ack timeout never expire.
func IsExpired(msg *Message, now time.Time) bool {
	if msg == nil || msg.ackTimeout <= 0 {
		return false
	}
	elapsed := now.UnixMicro() - msg.sentTime
	return elapsed > msg.ackTimeout
}

func (m *Message) String() string {
	return "xqueue.Message{id=" + strconv.Quote(m.id) + ", frames=" + strconv.Itoa(len(m.payload)) + "}"
}

func cloneFrames(frames [][]byte) [][]byte {
	if frames == nil {
		return nil
	}
	out := make([][]byte, len(frames))
	for i, f := range frames {
		c := make([]byte, len(f))
		copy(c, f)
		out[i] = c
	}
	return out
}
