package redisstream

import (
	"time"

	"github.com/trickstertwo/xlog"

	"github.com/trickstertwo/xqueue"
)

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

// WithCodec selects a codec by name (default: json).
func WithCodec(name string) Option {
	return func(b *xqueue.Builder) { b.WithCodec(name) }
}

// WithMiddleware adds handler middlewares.
func WithMiddleware(mw ...xqueue.Middleware) Option {
	return func(b *xqueue.Builder) { b.WithMiddleware(mw...) }
}

// WithProduceTimeout sets the accept ack timeout. Round trips through Redis
// rarely fit the 5ms default.
func WithProduceTimeout(d time.Duration) Option {
	return func(b *xqueue.Builder) { b.WithProduceTimeout(d) }
}

// WithAckTimeout bounds completion acks.
func WithAckTimeout(d time.Duration) Option {
	return func(b *xqueue.Builder) { b.WithAckTimeout(d) }
}

// WithObserver attaches observers for lifecycle events.
func WithObserver(obs ...xqueue.Observer) Option {
	return func(b *xqueue.Builder) { b.WithObserver(obs...) }
}
