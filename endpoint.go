package xqueue

import (
	"context"
	"fmt"
	"sync"
)

const (
	roleProducer = "producer"
	roleConsumer = "consumer"
	roleMonitor  = "monitor"
)

type endpointState int

const (
	stateUnconnected endpointState = iota
	stateConnected
	stateClosed
)

// endpoint is the Unconnected -> Connected -> Closed state machine shared by
// every role. There is no reconnect; a closed endpoint stays closed.
type endpoint struct {
	client  *Client
	role    string
	pattern Pattern

	mu      sync.Mutex
	state   endpointState
	address string
	ch      Channel
}

// Connect dials address. It may be called once.
func (e *endpoint) Connect(ctx context.Context, address string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case stateConnected:
		return ErrAlreadyConnected
	case stateClosed:
		return ErrClosed
	}
	if e.client.closed.Load() {
		return ErrClosed
	}

	ch, err := e.client.transport.Dial(ctx, e.pattern, address)
	if err != nil {
		e.client.metrics.errors.Add(1)
		return fmt.Errorf("xqueue: %s connect %s: %w", e.role, address, err)
	}
	e.ch = ch
	e.address = address
	e.state = stateConnected
	e.client.logger.Debug().Msg("xqueue: " + e.role + " connected to " + address)
	return nil
}

// Address returns the address passed to Connect.
func (e *endpoint) Address() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.address
}

// Close releases the channel. Closing twice returns ErrClosed.
func (e *endpoint) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case stateClosed:
		return ErrClosed
	case stateUnconnected:
		e.state = stateClosed
		e.client.forget(e)
		return nil
	}
	e.state = stateClosed
	e.client.forget(e)
	return e.ch.Close()
}

func (e *endpoint) channel() (Channel, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch e.state {
	case stateUnconnected:
		return nil, ErrNotConnected
	case stateClosed:
		return nil, ErrClosed
	}
	return e.ch, nil
}

func (e *endpoint) event(t EventType, id string) Event {
	return Event{Type: t, Role: e.role, Address: e.address, MessageID: id}
}
