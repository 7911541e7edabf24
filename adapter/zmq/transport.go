package zmq

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-zeromq/zmq4"
	"github.com/google/uuid"

	"github.com/trickstertwo/xqueue"
	"github.com/trickstertwo/xqueue/internal/inbox"
)

const TransportName = "zmq"

func init() {
	if err := xqueue.RegisterTransport(TransportName, func(cfg map[string]any) (xqueue.Transport, error) {
		return NewTransport(ConfigFromMap(cfg))
	}); err != nil {
		panic(fmt.Errorf("xqueue: failed to register transport %q: %w", TransportName, err))
	}
}

// Transport implements xqueue.Transport and xqueue.Listener with ZeroMQ.
type Transport struct {
	cfg Config

	mu       sync.Mutex
	channels map[*channel]struct{}
	closed   atomic.Bool

	metrics *transportMetrics
}

type transportMetrics struct {
	sent       atomic.Uint64
	received   atomic.Uint64
	sendErrors atomic.Uint64
}

var (
	_ xqueue.Transport = (*Transport)(nil)
	_ xqueue.Listener  = (*Transport)(nil)
)

func NewTransport(cfg Config) (*Transport, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Transport{
		cfg:      cfg,
		channels: make(map[*channel]struct{}),
		metrics:  &transportMetrics{},
	}, nil
}

func (t *Transport) Dial(ctx context.Context, pattern xqueue.Pattern, address string) (xqueue.Channel, error) {
	return t.open(ctx, pattern, address, false)
}

func (t *Transport) Listen(ctx context.Context, pattern xqueue.Pattern, address string) (xqueue.Channel, error) {
	return t.open(ctx, pattern, address, true)
}

func (t *Transport) open(_ context.Context, pattern xqueue.Pattern, address string, bind bool) (xqueue.Channel, error) {
	if t.closed.Load() {
		return nil, xqueue.ErrClosed
	}
	sock, err := t.newSocket(pattern)
	if err != nil {
		return nil, err
	}

	if bind {
		err = sock.Listen(address)
	} else {
		err = sock.Dial(address)
	}
	if err != nil {
		_ = sock.Close()
		return nil, fmt.Errorf("zmq: %s %s %s: %w", verb(bind), pattern, address, err)
	}

	ch := &channel{
		t:        t,
		sock:     sock,
		in:       inbox.New(t.cfg.BufferSize),
		envelope: pattern == xqueue.PatternRequest,
	}
	t.mu.Lock()
	t.channels[ch] = struct{}{}
	t.mu.Unlock()

	go ch.readLoop(context.Background())
	return ch, nil
}

func (t *Transport) newSocket(pattern xqueue.Pattern) (zmq4.Socket, error) {
	opts := []zmq4.Option{
		zmq4.WithID(zmq4.SocketIdentity(uuid.NewString())),
		zmq4.WithDialerRetry(t.cfg.DialRetry),
	}
	ctx := context.Background()
	switch pattern {
	case xqueue.PatternDealer:
		return zmq4.NewDealer(ctx, opts...), nil
	case xqueue.PatternRouter:
		return zmq4.NewRouter(ctx, opts...), nil
	case xqueue.PatternRequest:
		// zmq4's REQ reader fails until the first send has picked a peer, so
		// request channels ride a DEALER and carry the envelope themselves.
		return zmq4.NewDealer(ctx, opts...), nil
	default:
		return nil, fmt.Errorf("zmq: unsupported pattern %q", pattern)
	}
}

// Close closes every socket opened through t.
func (t *Transport) Close(_ context.Context) error {
	if t.closed.Swap(true) {
		return nil
	}
	t.mu.Lock()
	chans := make([]*channel, 0, len(t.channels))
	for ch := range t.channels {
		chans = append(chans, ch)
	}
	t.mu.Unlock()

	var errs []error
	for _, ch := range chans {
		if err := ch.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Stats returns transport telemetry.
type Stats struct {
	Sent       uint64
	Received   uint64
	SendErrors uint64
}

func (t *Transport) Stats() Stats {
	return Stats{
		Sent:       t.metrics.sent.Load(),
		Received:   t.metrics.received.Load(),
		SendErrors: t.metrics.sendErrors.Load(),
	}
}

func (t *Transport) forget(ch *channel) {
	t.mu.Lock()
	delete(t.channels, ch)
	t.mu.Unlock()
}

func verb(bind bool) string {
	if bind {
		return "listen"
	}
	return "dial"
}

// channel adapts a zmq4.Socket to xqueue.Channel. The socket's blocking Recv
// runs on a reader goroutine that feeds the inbox. With envelope set the
// channel adds the empty delimiter on send and strips it on receive.
type channel struct {
	t        *Transport
	sock     zmq4.Socket
	in       *inbox.Inbox
	envelope bool
	closed   atomic.Bool
}

func (c *channel) Send(ctx context.Context, frames [][]byte) error {
	if c.closed.Load() {
		return xqueue.ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.envelope {
		frames = append([][]byte{{}}, frames...)
	}
	if err := c.sock.SendMulti(zmq4.NewMsgFrom(frames...)); err != nil {
		c.t.metrics.sendErrors.Add(1)
		return fmt.Errorf("zmq: send: %w", err)
	}
	c.t.metrics.sent.Add(1)
	return nil
}

func (c *channel) Recv(ctx context.Context) ([][]byte, error) {
	return c.in.Recv(ctx)
}

func (c *channel) Poll(ctx context.Context, timeout time.Duration) (bool, error) {
	return c.in.Poll(ctx, timeout)
}

func (c *channel) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	c.in.Close()
	c.t.forget(c)
	return c.sock.Close()
}

func (c *channel) readLoop(ctx context.Context) {
	for {
		msg, err := c.sock.Recv()
		if err != nil {
			if c.closed.Load() {
				return
			}
			c.in.Feed(ctx, inbox.Result{Err: fmt.Errorf("zmq: recv: %w", err)})
			return
		}
		frames := msg.Frames
		if c.envelope {
			var ok bool
			if frames, ok = stripEnvelope(frames); !ok {
				continue
			}
		}
		if !c.in.Feed(ctx, inbox.Result{Frames: frames}) {
			return
		}
		c.t.metrics.received.Add(1)
	}
}

// stripEnvelope removes the empty delimiter a router reply starts with.
// Replies without one are dropped.
func stripEnvelope(frames [][]byte) ([][]byte, bool) {
	if len(frames) == 0 || len(frames[0]) != 0 {
		return nil, false
	}
	return frames[1:], true
}
