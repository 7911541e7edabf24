package memory

import (
	"fmt"
	"time"

	"github.com/trickstertwo/xlog"

	"github.com/trickstertwo/xqueue"
)

// Use builds a Client on the in-memory transport and sets it as the default.
// Mirrors redisstream.Use and zmq.Use: explicit construction with global install.
//
// Example:
//
//	client := memory.Use(memory.Config{Hub: "tests"},
//	    memory.WithLogger(logger),
//	    memory.WithProduceTimeout(50*time.Millisecond),
//	)
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
		panic(fmt.Errorf("memory.Use: %w", err))
	}
	xqueue.SetDefault(c)
	return c
}

// Option configures the xqueue.Client when calling Use.
type Option func(*xqueue.Builder)

// WithLogger injects a custom xlog logger.
func WithLogger(l *xlog.Logger) Option {
	return func(b *xqueue.Builder) { b.WithLogger(l) }
}

// WithClock injects a custom clock.
func WithClock(c xqueue.Clock) Option {
	return func(b *xqueue.Builder) { b.WithClock(c) }
}

// WithCodec selects a codec by name (default: "json").
func WithCodec(name string) Option {
	return func(b *xqueue.Builder) { b.WithCodec(name) }
}

// WithMiddleware adds handler middlewares for Consumer.Run.
func WithMiddleware(mw ...xqueue.Middleware) Option {
	return func(b *xqueue.Builder) { b.WithMiddleware(mw...) }
}

// WithProduceTimeout sets the accept ack timeout (default: 5ms).
func WithProduceTimeout(d time.Duration) Option {
	return func(b *xqueue.Builder) { b.WithProduceTimeout(d) }
}

// WithAckTimeout bounds completion acks sent by Consumer.Run (default: 5s).
func WithAckTimeout(d time.Duration) Option {
	return func(b *xqueue.Builder) { b.WithAckTimeout(d) }
}

// WithObserver attaches observers for lifecycle events.
func WithObserver(obs ...xqueue.Observer) Option {
	return func(b *xqueue.Builder) { b.WithObserver(obs...) }
}

// WithObserverPool configures async observer pool for non-blocking notifications.
func WithObserverPool(workers, bufferSize int) Option {
	return func(b *xqueue.Builder) { b.WithObserverPool(workers, bufferSize) }
}
