package xqueue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/trickstertwo/xlog"
)

var _ HealthChecker = (*Client)(nil)

// Client owns a Transport and the ambient dependencies shared by the
// producers, consumers and monitors it creates.
type Client struct {
	transport      Transport
	codec          Codec
	clock          Clock
	logger         *xlog.Logger
	middlewares    []Middleware
	produceTimeout time.Duration
	ackTimeout     time.Duration
	filterExpired  bool

	observerPool *ObserverPool
	observersMu  sync.RWMutex
	observers    []Observer

	endpointsMu sync.Mutex
	endpoints   map[*endpoint]struct{}

	metrics   *clientMetrics
	closed    atomic.Bool
	closeOnce sync.Once
}

type clientMetrics struct {
	produced        atomic.Uint64
	accepted        atomic.Uint64
	ackTimeouts     atomic.Uint64
	remoteFailures  atomic.Uint64
	consumed        atomic.Uint64
	expired         atomic.Uint64
	completed       atomic.Uint64
	handlerFailures atomic.Uint64
	errors          atomic.Uint64
	roundTripNs     atomic.Int64
}

func (c *Client) Transport() Transport { return c.transport }
func (c *Client) Codec() Codec         { return c.codec }
func (c *Client) Clock() Clock         { return c.clock }
func (c *Client) Logger() *xlog.Logger { return c.logger }

// NewProducer returns an unconnected Producer.
func (c *Client) NewProducer() *Producer {
	return &Producer{
		endpoint: c.newEndpoint(roleProducer, PatternDealer),
		timeout:  c.produceTimeout,
	}
}

// NewConsumer returns an unconnected Consumer.
func (c *Client) NewConsumer() *Consumer {
	cs := &Consumer{endpoint: c.newEndpoint(roleConsumer, PatternRouter)}
	cs.filterExpired = c.filterExpired
	return cs
}

// NewMonitor returns an unconnected Monitor.
func (c *Client) NewMonitor() *Monitor {
	return &Monitor{endpoint: c.newEndpoint(roleMonitor, PatternRequest)}
}

func (c *Client) newEndpoint(role string, p Pattern) *endpoint {
	e := &endpoint{client: c, role: role, pattern: p}
	c.endpointsMu.Lock()
	if c.endpoints == nil {
		c.endpoints = make(map[*endpoint]struct{})
	}
	c.endpoints[e] = struct{}{}
	c.endpointsMu.Unlock()
	return e
}

// forget stops tracking a closed endpoint.
func (c *Client) forget(e *endpoint) {
	c.endpointsMu.Lock()
	delete(c.endpoints, e)
	c.endpointsMu.Unlock()
}

func (c *Client) openEndpoints() int {
	c.endpointsMu.Lock()
	defer c.endpointsMu.Unlock()
	return len(c.endpoints)
}

// Metrics returns current client counters.
func (c *Client) Metrics() Metrics {
	return Metrics{
		Produced:        c.metrics.produced.Load(),
		Accepted:        c.metrics.accepted.Load(),
		AckTimeouts:     c.metrics.ackTimeouts.Load(),
		RemoteFailures:  c.metrics.remoteFailures.Load(),
		Consumed:        c.metrics.consumed.Load(),
		ExpiredDropped:  c.metrics.expired.Load(),
		Completed:       c.metrics.completed.Load(),
		HandlerFailures: c.metrics.handlerFailures.Load(),
		Errors:          c.metrics.errors.Load(),
		EventsDropped:   c.observerPool.Stats().Dropped,
		AvgRoundTripMs:  float64(c.metrics.roundTripNs.Load()) / 1e6,
	}
}

// Health reports "degraded" when more than 5% of operations failed.
func (c *Client) Health(ctx context.Context) HealthStatus {
	if c.closed.Load() {
		return HealthStatus{
			Status:    "unhealthy",
			Timestamp: c.clock.Now(),
			Message:   "client is closed",
		}
	}

	m := c.Metrics()
	status := "healthy"
	if ops := m.Produced + m.Consumed; ops > 0 && m.Errors > 0 {
		if float64(m.Errors)/float64(ops) > 0.05 {
			status = "degraded"
		}
	}
	return HealthStatus{
		Status:    status,
		Metrics:   m,
		Timestamp: c.clock.Now(),
	}
}

// Close closes every channel opened through this client, drains the observer
// pool and closes the transport. It is idempotent.
func (c *Client) Close(ctx context.Context) error {
	var closeErr error

	c.closeOnce.Do(func() {
		c.closed.Store(true)

		c.endpointsMu.Lock()
		eps := c.endpoints
		c.endpoints = nil
		c.endpointsMu.Unlock()
		for e := range eps {
			if err := e.Close(); err != nil && !errors.Is(err, ErrClosed) {
				closeErr = err
			}
		}

		if err := c.observerPool.Close(5 * time.Second); err != nil {
			c.logger.Warn().Err(err).Msg("xqueue: observer pool shutdown timeout")
			closeErr = err
		}

		if err := c.transport.Close(ctx); err != nil {
			c.logger.Error().Err(err).Msg("xqueue: transport close failed")
			closeErr = err
		}
	})

	return closeErr
}

// AddObserver registers an observer (thread-safe).
func (c *Client) AddObserver(obs Observer) {
	if obs == nil {
		return
	}
	c.observersMu.Lock()
	c.observers = append(c.observers, obs)
	c.observersMu.Unlock()
}

// RemoveObserver removes an observer.
func (c *Client) RemoveObserver(obs Observer) {
	if obs == nil {
		return
	}
	c.observersMu.Lock()
	defer c.observersMu.Unlock()

	for i, o := range c.observers {
		if o == obs {
			c.observers = append(c.observers[:i], c.observers[i+1:]...)
			break
		}
	}
}

func (c *Client) notify(e Event) {
	if c.closed.Load() {
		return
	}
	c.observersMu.RLock()
	if len(c.observers) == 0 {
		c.observersMu.RUnlock()
		return
	}
	observers := make([]Observer, len(c.observers))
	copy(observers, c.observers)
	c.observersMu.RUnlock()

	c.observerPool.Notify(e, observers)
}

// recordRoundTrip keeps an exponential moving average of accept ack latency.
func (c *Client) recordRoundTrip(ns int64) {
	const alpha = 0.2
	current := c.metrics.roundTripNs.Load()
	if current == 0 {
		c.metrics.roundTripNs.Store(ns)
		return
	}
	c.metrics.roundTripNs.Store(int64(float64(ns)*alpha + float64(current)*(1-alpha)))
}
