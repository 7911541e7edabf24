package xqueue

import (
	"context"
	"time"

	"github.com/trickstertwo/xclock"
	"github.com/trickstertwo/xlog"
)

// DefaultProduceTimeout bounds the wait for a broker accept ack.
const DefaultProduceTimeout = 5000 * time.Microsecond

// Builder constructs Client instances (Builder pattern).
type Builder struct {
	transportName string
	transportCfg  map[string]any
	transportInst Transport

	codecName string
	codecInst Codec

	middlewares []Middleware
	observers   []Observer
	logger      *xlog.Logger
	clock       Clock

	produceTimeout time.Duration
	ackTimeout     time.Duration
	filterExpired  bool

	poolWorkers int
	poolBuffer  int
}

// NewBuilder returns a new builder with sensible defaults.
func NewBuilder() *Builder {
	return &Builder{
		codecName:      "json",
		produceTimeout: DefaultProduceTimeout,
		ackTimeout:     5 * time.Second,
		filterExpired:  true,
		poolWorkers:    2,
		poolBuffer:     1024,
	}
}

// WithTransport selects a registered transport by name.
func (b *Builder) WithTransport(name string, cfg map[string]any) *Builder {
	b.transportName = name
	b.transportCfg = cfg
	return b
}

// WithTransportInstance accepts a ready Transport instance.
func (b *Builder) WithTransportInstance(t Transport) *Builder {
	b.transportInst = t
	return b
}

func (b *Builder) WithCodec(name string) *Builder {
	b.codecName = name
	return b
}

func (b *Builder) WithCodecInstance(c Codec) *Builder {
	b.codecInst = c
	return b
}

// WithMiddleware adds handler middlewares used by Consumer.Run.
func (b *Builder) WithMiddleware(mw ...Middleware) *Builder {
	b.middlewares = append(b.middlewares, mw...)
	return b
}

func (b *Builder) WithObserver(obs ...Observer) *Builder {
	for _, o := range obs {
		if o != nil {
			b.observers = append(b.observers, o)
		}
	}
	return b
}

func (b *Builder) WithLogger(l *xlog.Logger) *Builder {
	b.logger = l
	return b
}

func (b *Builder) WithClock(c Clock) *Builder {
	b.clock = c
	return b
}

// WithProduceTimeout sets the default accept ack timeout for producers.
func (b *Builder) WithProduceTimeout(d time.Duration) *Builder {
	if d > 0 {
		b.produceTimeout = d
	}
	return b
}

// WithAckTimeout bounds the completion ack sent by Consumer.Run.
func (b *Builder) WithAckTimeout(d time.Duration) *Builder {
	if d > 0 {
		b.ackTimeout = d
	}
	return b
}

// WithFilterExpired sets the initial expiry filtering of new consumers.
func (b *Builder) WithFilterExpired(on bool) *Builder {
	b.filterExpired = on
	return b
}

// WithObserverPool configures the async observer pool.
func (b *Builder) WithObserverPool(workers, bufferSize int) *Builder {
	b.poolWorkers = workers
	b.poolBuffer = bufferSize
	return b
}

func (b *Builder) Build() (*Client, error) {
	var tr Transport
	var err error

	switch {
	case b.transportInst != nil:
		tr = b.transportInst
	case b.transportName != "":
		tr, err = NewTransport(b.transportName, b.transportCfg)
		if err != nil {
			return nil, err
		}
	default:
		return nil, ErrNoTransportConfigured
	}

	cd := b.codecInst
	if cd == nil {
		cd, err = NewCodec(b.codecName)
		if err != nil {
			return nil, err
		}
	}

	var clk Clock = xclock.Default()
	if b.clock != nil {
		clk = b.clock
	}
	lg := b.logger
	if lg == nil {
		lg = xlog.Default()
	}

	c := &Client{
		transport:      tr,
		codec:          cd,
		clock:          clk,
		logger:         lg,
		middlewares:    b.middlewares,
		produceTimeout: b.produceTimeout,
		ackTimeout:     b.ackTimeout,
		filterExpired:  b.filterExpired,
		observerPool:   NewObserverPool(context.Background(), b.poolWorkers, b.poolBuffer),
		metrics:        &clientMetrics{},
	}

	hasLoggingObserver := false
	for _, o := range b.observers {
		if _, ok := o.(LoggingObserver); ok {
			hasLoggingObserver = true
			break
		}
	}
	if !hasLoggingObserver {
		c.AddObserver(LoggingObserver{Logger: lg})
	}
	for _, o := range b.observers {
		c.AddObserver(o)
	}

	return c, nil
}

// New constructs a Client via Builder and returns a close func for convenience.
func New(init func(b *Builder)) (*Client, func() error, error) {
	b := NewBuilder()
	if init != nil {
		init(b)
	}
	c, err := b.Build()
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() error { return c.Close(context.Background()) }
	return c, closeFn, nil
}
