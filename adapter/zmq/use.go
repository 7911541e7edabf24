package zmq

import (
	"fmt"
	"time"

	"github.com/trickstertwo/xlog"

	"github.com/trickstertwo/xqueue"
)

// Use builds a Client over ZeroMQ, installs it as the default Client and
// returns it.
//
// Example:
//
//	client := zmq.Use(zmq.Defaults(), zmq.WithLogger(logger))
//	p := client.NewProducer()
//	_ = p.Connect(ctx, "tcp://127.0.0.1:5555")
func Use(cfg Config, opts ...Option) *xqueue.Client {
	b := xqueue.NewBuilder().
		WithTransport(TransportName, cfg.toMap())

	for _, o := range opts {
		if o != nil {
			o(b)
		}
	}
	c, err := b.Build()
	if err != nil {
		panic(fmt.Errorf("zmq.Use: %w", err))
	}

	xqueue.SetDefault(c)
	return c
}

// Option configures the xqueue.Client construction when calling Use.
type Option func(*xqueue.Builder)

// WithLogger injects a custom xlog logger.
func WithLogger(l *xlog.Logger) Option {
	return func(b *xqueue.Builder) { b.WithLogger(l) }
}

// WithClock injects a custom clock.
func WithClock(c xqueue.Clock) Option {
	return func(b *xqueue.Builder) { b.WithClock(c) }
}

// WithMiddleware adds handler middlewares.
func WithMiddleware(mw ...xqueue.Middleware) Option {
	return func(b *xqueue.Builder) { b.WithMiddleware(mw...) }
}

// WithProduceTimeout sets the accept ack timeout.
func WithProduceTimeout(d time.Duration) Option {
	return func(b *xqueue.Builder) { b.WithProduceTimeout(d) }
}

// WithObserver attaches observers for lifecycle events.
func WithObserver(obs ...xqueue.Observer) Option {
	return func(b *xqueue.Builder) { b.WithObserver(obs...) }
}
