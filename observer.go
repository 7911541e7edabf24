package xqueue

import (
	"github.com/trickstertwo/xlog"
)

// ObserverFunc is an Adapter that lets a plain function satisfy Observer.
type ObserverFunc func(e Event)

func (f ObserverFunc) OnEvent(e Event) { f(e) }

// LoggingObserver is an Adapter that emits client events via xlog.
type LoggingObserver struct {
	Logger *xlog.Logger
}

func (o LoggingObserver) OnEvent(e Event) {
	if o.Logger == nil {
		return
	}
	ev := o.Logger.With(
		xlog.Str("type", string(e.Type)),
		xlog.Str("role", e.Role),
		xlog.Str("address", e.Address),
		xlog.Str("message_id", e.MessageID),
	)
	switch e.Type {
	case Error, Failed:
		ev.Warn().Err(e.Err).Msg("xqueue event")
	case ProduceDone:
		if e.Err != nil {
			ev.Warn().Err(e.Err).Msg("xqueue event")
			return
		}
		ev.With(xlog.Dur("duration", e.Duration)).Debug().Msg("xqueue event")
	default:
		ev.Debug().Msg("xqueue event")
	}
}
