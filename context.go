package xqueue

import (
	"context"

	"github.com/trickstertwo/xlog"
)

// handlerEnv is what Consumer.Run makes available to handlers and middleware.
// It travels as a single context value; every inject copies it.
type handlerEnv struct {
	codec  Codec
	logger *xlog.Logger
	clock  Clock
}

type handlerEnvKey struct{}

func envFrom(ctx context.Context) handlerEnv {
	env, _ := ctx.Value(handlerEnvKey{}).(handlerEnv)
	return env
}

func withEnv(ctx context.Context, set func(*handlerEnv)) context.Context {
	env := envFrom(ctx)
	set(&env)
	return context.WithValue(ctx, handlerEnvKey{}, env)
}

func injectCodec(ctx context.Context, c Codec) context.Context {
	if c == nil {
		return ctx
	}
	return withEnv(ctx, func(e *handlerEnv) { e.codec = c })
}

func injectClock(ctx context.Context, c Clock) context.Context {
	if c == nil {
		return ctx
	}
	return withEnv(ctx, func(e *handlerEnv) { e.clock = c })
}

// withAssignment scopes the handler logger to one message.
func withAssignment(ctx context.Context, msg *Message) context.Context {
	env := envFrom(ctx)
	if env.logger == nil {
		return ctx
	}
	return withEnv(ctx, func(e *handlerEnv) {
		e.logger = env.logger.With(xlog.Str("message_id", msg.id))
	})
}

// InjectAll stores the codec, logger and clock a handler may ask for. Nil
// arguments leave what ctx already carries.
func InjectAll(ctx context.Context, codec Codec, logger *xlog.Logger, clock Clock) context.Context {
	return withEnv(ctx, func(e *handlerEnv) {
		if codec != nil {
			e.codec = codec
		}
		if logger != nil {
			e.logger = logger
		}
		if clock != nil {
			e.clock = clock
		}
	})
}

// CodecFromContext returns the client codec inside a Run handler.
func CodecFromContext(ctx context.Context) (Codec, bool) {
	c := envFrom(ctx).codec
	return c, c != nil
}

// LoggerFromContext returns the client logger inside a Run handler, already
// tagged with the assignment's message id.
func LoggerFromContext(ctx context.Context) (*xlog.Logger, bool) {
	l := envFrom(ctx).logger
	return l, l != nil
}

// ClockFromContext returns the client clock. Expiry middleware uses it.
func ClockFromContext(ctx context.Context) (Clock, bool) {
	c := envFrom(ctx).clock
	return c, c != nil
}
