package xqueue

import (
	"context"
	"errors"

	"github.com/trickstertwo/xlog"
)

// Consumer receives assignments from the broker and acknowledges completed
// work back to the connection each assignment arrived on.
//
// Receiving and completing are separate steps: Consume never acknowledges.
type Consumer struct {
	*endpoint
	filterExpired bool
}

// SetFilterExpired toggles silent dropping of expired assignments. It is on by
// default.
func (c *Consumer) SetFilterExpired(on bool) { c.filterExpired = on }

// FilterExpired reports whether expired assignments are dropped.
func (c *Consumer) FilterExpired() bool { return c.filterExpired }

// Consume reads one assignment. With block set it waits until one arrives or
// ctx is done; otherwise it returns ErrNoMessage when nothing is pending.
// While filtering is enabled, expired assignments are discarded without an
// ack and the read is retried.
func (c *Consumer) Consume(ctx context.Context, block bool) (*Message, error) {
	ch, err := c.channel()
	if err != nil {
		return nil, err
	}
	cl := c.client

	for {
		if !block {
			ready, err := ch.Poll(ctx, 0)
			if err != nil {
				return nil, err
			}
			if !ready {
				return nil, ErrNoMessage
			}
		}

		frames, err := ch.Recv(ctx)
		if err != nil {
			return nil, err
		}
		msg, err := decodeDelivery(frames)
		if err != nil {
			cl.metrics.errors.Add(1)
			ev := c.event(Error, "")
			ev.Err = err
			cl.notify(ev)
			return nil, err
		}

		if c.filterExpired && IsExpired(msg, cl.clock.Now()) {
			cl.metrics.expired.Add(1)
			cl.notify(c.event(Expired, msg.id))
			cl.logger.With(xlog.Str("message_id", msg.id)).Debug().Msg("xqueue: dropped expired assignment")
			continue
		}

		cl.metrics.consumed.Add(1)
		cl.notify(c.event(Consumed, msg.id))
		return msg, nil
	}
}

// Ack sends the completion notice [peer, "", id] for msg. No reply is awaited.
// Acking the same message twice re-sends the same frames.
func (c *Consumer) Ack(ctx context.Context, msg *Message) error {
	if msg == nil || msg.id == "" {
		return ErrEmptyID
	}
	if len(msg.peer) == 0 {
		return ErrMissingPeer
	}
	ch, err := c.channel()
	if err != nil {
		return err
	}
	if err := ch.Send(ctx, encodeCompletion(msg)); err != nil {
		c.client.metrics.errors.Add(1)
		return err
	}
	c.client.metrics.completed.Add(1)
	c.client.notify(c.event(Completed, msg.id))
	return nil
}

// Run consumes assignments until ctx is done, passing each to handler wrapped
// in panic recovery and the client's middlewares. Work that succeeds is
// acknowledged; work that fails is left for the broker to reassign.
func (c *Consumer) Run(ctx context.Context, handler Handler) error {
	if handler == nil {
		return errors.New("xqueue: nil handler")
	}
	cl := c.client
	h := Chain(RecoveryMiddleware()(handler), cl.middlewares...)
	hctx := InjectAll(ctx, cl.codec, cl.logger, cl.clock)

	for {
		msg, err := c.Consume(ctx, true)
		switch {
		case err == nil:
		case ctx.Err() != nil:
			return nil
		case errors.Is(err, ErrProtocol):
			cl.logger.Warn().Err(err).Msg("xqueue: skipping malformed assignment")
			continue
		default:
			return err
		}

		if err := h(withAssignment(hctx, msg), msg); err != nil {
			cl.metrics.handlerFailures.Add(1)
			ev := c.event(Failed, msg.id)
			ev.Err = err
			cl.notify(ev)
			continue
		}

		// An assignment received as ctx ends is still completed.
		if err := c.ackWithTimeout(context.WithoutCancel(ctx), msg); err != nil {
			cl.logger.With(xlog.Str("message_id", msg.id)).Warn().Err(err).Msg("xqueue: completion ack failed")
		}
	}
}

func (c *Consumer) ackWithTimeout(ctx context.Context, msg *Message) error {
	actx := ctx
	cancel := func() {}
	if c.client.ackTimeout > 0 {
		actx, cancel = context.WithTimeout(ctx, c.client.ackTimeout)
	}
	defer cancel()
	return c.Ack(actx, msg)
}
