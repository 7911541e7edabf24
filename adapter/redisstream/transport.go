package redisstream

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/trickstertwo/xqueue"
	"github.com/trickstertwo/xqueue/internal/inbox"
)

// Transport implements xqueue.Transport and xqueue.Listener on Redis Streams.
type Transport struct {
	cfg    Config
	client *redis.Client

	mu       sync.Mutex
	channels map[*channel]struct{}

	closeOnce sync.Once
	closed    atomic.Bool

	metrics *transportMetrics
}

// transportMetrics tracks performance telemetry
type transportMetrics struct {
	sent        atomic.Uint64
	received    atomic.Uint64
	sendErrors  atomic.Uint64
	readErrors  atomic.Uint64
	unroutable  atomic.Uint64
	connections atomic.Uint64
}

var (
	_ xqueue.Transport = (*Transport)(nil)
	_ xqueue.Listener  = (*Transport)(nil)
)

func NewTransport(cfg Config) (*Transport, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts := &redis.Options{
		Addr:         cfg.Addr,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		MaxRetries:   3,
		PoolSize:     10,
		MinIdleConns: 2,
	}

	if cfg.TLS {
		opts.TLSConfig = &tls.Config{
			MinVersion:    tls.VersionTLS12,
			ServerName:    cfg.TLSServerName,
			Renegotiation: tls.RenegotiateNever,
		}
	}

	client := redis.NewClient(opts)
	if err := ping(client); err != nil {
		_ = client.Close()
		return nil, err
	}

	return &Transport{
		cfg:      cfg,
		client:   client,
		channels: make(map[*channel]struct{}),
		metrics:  &transportMetrics{},
	}, nil
}

// Listen binds the inbox stream of address. Entries left over from a previous
// listener are discarded.
func (t *Transport) Listen(ctx context.Context, pattern xqueue.Pattern, address string) (xqueue.Channel, error) {
	if t.closed.Load() {
		return nil, xqueue.ErrClosed
	}
	key := t.listenerKey(address)
	if err := t.client.Del(ctx, key).Err(); err != nil {
		return nil, fmt.Errorf("redisstream: reset %s: %w", key, err)
	}
	ch := t.newChannel(pattern, address, key, true)
	t.start(ch)
	return ch, nil
}

// Dial opens a private inbox and registers it as a peer of address.
func (t *Transport) Dial(ctx context.Context, pattern xqueue.Pattern, address string) (xqueue.Channel, error) {
	if t.closed.Load() {
		return nil, xqueue.ErrClosed
	}
	key := t.listenerKey(address) + ":" + uuid.NewString()
	if err := t.client.SAdd(ctx, t.peersKey(address), key).Err(); err != nil {
		return nil, fmt.Errorf("redisstream: register peer: %w", err)
	}
	ch := t.newChannel(pattern, address, key, false)
	t.start(ch)
	t.metrics.connections.Add(1)
	return ch, nil
}

// Close closes every channel opened through t, then the Redis client.
func (t *Transport) Close(_ context.Context) error {
	var err error
	t.closeOnce.Do(func() {
		t.closed.Store(true)

		t.mu.Lock()
		chans := make([]*channel, 0, len(t.channels))
		for ch := range t.channels {
			chans = append(chans, ch)
		}
		t.mu.Unlock()

		for _, ch := range chans {
			_ = ch.Close()
		}
		err = t.client.Close()
	})
	return err
}

// Stats returns transport telemetry.
type Stats struct {
	Sent        uint64
	Received    uint64
	SendErrors  uint64
	ReadErrors  uint64
	Unroutable  uint64
	Connections uint64
}

func (t *Transport) Stats() Stats {
	return Stats{
		Sent:        t.metrics.sent.Load(),
		Received:    t.metrics.received.Load(),
		SendErrors:  t.metrics.sendErrors.Load(),
		ReadErrors:  t.metrics.readErrors.Load(),
		Unroutable:  t.metrics.unroutable.Load(),
		Connections: t.metrics.connections.Load(),
	}
}

func (t *Transport) listenerKey(address string) string {
	return t.cfg.Prefix + ":" + address
}

func (t *Transport) peersKey(address string) string {
	return t.listenerKey(address) + ":" + peersSuffix
}

func (t *Transport) newChannel(pattern xqueue.Pattern, address, key string, listener bool) *channel {
	ctx, cancel := context.WithCancel(context.Background())
	return &channel{
		t:        t,
		pattern:  pattern,
		address:  address,
		key:      key,
		listener: listener,
		in:       inbox.New(t.cfg.BufferSize),
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (t *Transport) start(ch *channel) {
	t.mu.Lock()
	t.channels[ch] = struct{}{}
	t.mu.Unlock()
	go ch.readLoop()
}

func (t *Transport) forget(ch *channel) {
	t.mu.Lock()
	delete(t.channels, ch)
	t.mu.Unlock()
}

// Helper functions

func ping(c *redis.Client) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	res, err := c.Ping(ctx).Result()
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return fmt.Errorf("redis ping timeout: %w", err)
		}
		return err
	}

	if strings.ToUpper(res) != "PONG" {
		return fmt.Errorf("unexpected redis ping result: %s", res)
	}

	return nil
}
