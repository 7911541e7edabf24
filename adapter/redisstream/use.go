package redisstream

import (
	"fmt"

	"github.com/trickstertwo/xqueue"
)

// Adapter: Redis Streams Transport (Strategy + Adapter patterns)

const TransportName = "redis-streams"

func init() {
	if err := xqueue.RegisterTransport(TransportName, func(cfg map[string]any) (xqueue.Transport, error) {
		return NewTransport(ConfigFromMap(cfg))
	}); err != nil {
		panic(fmt.Errorf("xqueue: failed to register transport %q: %w", TransportName, err))
	}
}

// Use builds a Client over Redis Streams, installs it as the default Client
// and returns it.
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
		panic(fmt.Errorf("redisstream.Use: %w", err))
	}

	xqueue.SetDefault(c)
	return c
}
