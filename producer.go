package xqueue

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/trickstertwo/xlog"
)

// Producer hands units of work to the broker and waits, bounded by a timeout,
// for the broker's accept ack.
//
// Replies are correlated by position, so only one request may be outstanding
// at a time. A second Produce issued while one is in flight fails with
// ErrProduceInFlight instead of corrupting the correlation.
type Producer struct {
	*endpoint
	timeout  time.Duration
	inFlight atomic.Bool
}

// Produce sends msg using the client's produce timeout.
func (p *Producer) Produce(ctx context.Context, msg *Message) error {
	return p.ProduceTimeout(ctx, msg, p.timeout)
}

// ProduceTimeout sends msg and waits up to timeout for the accept ack.
// It never retries; a retry is a fresh call, and whether the broker treats the
// repeated id idempotently is the broker's contract.
func (p *Producer) ProduceTimeout(ctx context.Context, msg *Message, timeout time.Duration) error {
	if msg == nil || msg.id == "" {
		return ErrEmptyID
	}
	if len(msg.payload) == 0 {
		return ErrEmptyPayload
	}
	ch, err := p.channel()
	if err != nil {
		return err
	}
	if !p.inFlight.CompareAndSwap(false, true) {
		return ErrProduceInFlight
	}
	defer p.inFlight.Store(false)

	c := p.client
	if err := p.drainStale(ctx, ch); err != nil {
		return err
	}

	start := c.clock.Now()
	c.notify(p.event(ProduceStart, msg.id))

	err = p.roundTrip(ctx, ch, msg, timeout)

	d := c.clock.Now().Sub(start)
	ev := p.event(ProduceDone, msg.id)
	ev.Duration, ev.Err = d, err
	c.notify(ev)

	switch {
	case err == nil:
		c.metrics.accepted.Add(1)
		c.recordRoundTrip(d.Nanoseconds())
	case errors.Is(err, ErrAckTimeout):
		c.metrics.ackTimeouts.Add(1)
		c.metrics.errors.Add(1)
	case errors.Is(err, ErrRemoteFailure):
		c.metrics.remoteFailures.Add(1)
		c.metrics.errors.Add(1)
	default:
		c.metrics.errors.Add(1)
	}
	return err
}

func (p *Producer) roundTrip(ctx context.Context, ch Channel, msg *Message, timeout time.Duration) error {
	if err := ch.Send(ctx, encodeProduce(msg)); err != nil {
		return err
	}
	p.client.metrics.produced.Add(1)

	ready, err := ch.Poll(ctx, timeout)
	if err != nil {
		return err
	}
	if !ready {
		return &AckTimeoutError{ID: msg.id, Timeout: timeout}
	}

	reply, err := ch.Recv(ctx)
	if err != nil {
		return err
	}
	id, status, err := decodeAccept(reply)
	if err != nil {
		return err
	}
	if id != msg.id {
		return &WrongAckError{Expected: msg.id, Got: id}
	}
	if status != StatusOK {
		return &RemoteFailureError{ID: msg.id, Status: status}
	}
	return nil
}

// drainStale discards accept acks that arrived after an earlier call timed
// out, so they can not be read as the reply to the next request.
func (p *Producer) drainStale(ctx context.Context, ch Channel) error {
	for {
		ready, err := ch.Poll(ctx, 0)
		if err != nil || !ready {
			return err
		}
		frames, err := ch.Recv(ctx)
		if err != nil {
			return err
		}
		id, status, _ := decodeAccept(frames)
		p.client.logger.With(
			xlog.Str("message_id", id),
			xlog.Str("status", status),
		).Debug().Msg("xqueue: discarded late accept ack")
	}
}
