package memory

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/trickstertwo/xqueue"
	"github.com/trickstertwo/xqueue/internal/inbox"
)

const TransportName = "memory"

func init() {
	if err := xqueue.RegisterTransport(TransportName, func(cfg map[string]any) (xqueue.Transport, error) {
		return NewTransport(ConfigFromMap(cfg)), nil
	}); err != nil {
		panic(fmt.Errorf("xqueue/memory: failed to register transport: %w", err))
	}
}

// Config controls memory transport behavior.
type Config struct {
	// BufferSize is the per-channel inbox capacity (default: 1024).
	BufferSize int
	// Hub names the in-process namespace addresses live in. Transports built
	// with the same hub reach each other's listeners (default: "default").
	Hub string
}

func ConfigFromMap(cfg map[string]any) Config {
	getInt := func(k string, d int) int {
		switch v := cfg[k].(type) {
		case int:
			return v
		case int64:
			return int(v)
		case float64:
			return int(v)
		default:
			return d
		}
	}
	hub, _ := cfg["hub"].(string)
	if hub == "" {
		hub = "default"
	}
	return Config{
		BufferSize: max(1, getInt("buffer_size", 1024)),
		Hub:        hub,
	}
}

func (c Config) toMap() map[string]any {
	return map[string]any{
		"buffer_size": c.BufferSize,
		"hub":         c.Hub,
	}
}

var (
	hubsMu sync.Mutex
	hubs   = map[string]*hub{}
)

// hub is the address space shared by transports with the same hub name.
type hub struct {
	mu        sync.Mutex
	listeners map[string]*socket
}

func hubFor(name string) *hub {
	hubsMu.Lock()
	defer hubsMu.Unlock()
	h, ok := hubs[name]
	if !ok {
		h = &hub{listeners: make(map[string]*socket)}
		hubs[name] = h
	}
	return h
}

// Transport implements xqueue.Transport and xqueue.Listener with in-process
// channels. It mirrors the dealer/router/req semantics of a socket library
// closely enough to run the full protocol without a network (dev/testing).
type Transport struct {
	cfg Config
	hub *hub

	mu      sync.Mutex
	sockets map[*socket]struct{}
	closed  atomic.Bool

	metrics *transportMetrics
}

type transportMetrics struct {
	sent        atomic.Uint64
	delivered   atomic.Uint64
	unroutable  atomic.Uint64
	connections atomic.Uint64
}

var (
	_ xqueue.Transport = (*Transport)(nil)
	_ xqueue.Listener  = (*Transport)(nil)
)

// NewTransport creates a new in-memory transport.
func NewTransport(cfg Config) *Transport {
	if cfg.BufferSize < 1 {
		cfg.BufferSize = 1024
	}
	if cfg.Hub == "" {
		cfg.Hub = "default"
	}
	return &Transport{
		cfg:     cfg,
		hub:     hubFor(cfg.Hub),
		sockets: make(map[*socket]struct{}),
		metrics: &transportMetrics{},
	}
}

// Listen binds a channel of the given pattern at address.
func (t *Transport) Listen(_ context.Context, pattern xqueue.Pattern, address string) (xqueue.Channel, error) {
	if t.closed.Load() {
		return nil, xqueue.ErrClosed
	}
	s := t.newSocket(pattern, address)

	t.hub.mu.Lock()
	defer t.hub.mu.Unlock()
	if _, busy := t.hub.listeners[address]; busy {
		return nil, fmt.Errorf("memory: address %q already in use", address)
	}
	s.listener = true
	t.hub.listeners[address] = s
	t.track(s)
	return s, nil
}

// Dial connects a channel of the given pattern to the listener at address.
func (t *Transport) Dial(_ context.Context, pattern xqueue.Pattern, address string) (xqueue.Channel, error) {
	if t.closed.Load() {
		return nil, xqueue.ErrClosed
	}
	t.hub.mu.Lock()
	l, ok := t.hub.listeners[address]
	t.hub.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("memory: no listener at %q", address)
	}

	s := t.newSocket(pattern, address)
	s.link(l)
	l.link(s)
	t.track(s)
	t.metrics.connections.Add(1)
	return s, nil
}

// Close closes every channel opened through t.
func (t *Transport) Close(_ context.Context) error {
	if t.closed.Swap(true) {
		return nil
	}
	t.mu.Lock()
	socks := make([]*socket, 0, len(t.sockets))
	for s := range t.sockets {
		socks = append(socks, s)
	}
	t.sockets = map[*socket]struct{}{}
	t.mu.Unlock()

	for _, s := range socks {
		_ = s.Close()
	}
	return nil
}

// Stats returns transport telemetry.
type Stats struct {
	Sent        uint64
	Delivered   uint64
	Unroutable  uint64
	Connections uint64
}

func (t *Transport) Stats() Stats {
	return Stats{
		Sent:        t.metrics.sent.Load(),
		Delivered:   t.metrics.delivered.Load(),
		Unroutable:  t.metrics.unroutable.Load(),
		Connections: t.metrics.connections.Load(),
	}
}

func (t *Transport) newSocket(pattern xqueue.Pattern, address string) *socket {
	return &socket{
		tr:       t,
		pattern:  pattern,
		address:  address,
		identity: []byte(uuid.NewString()),
		in:       inbox.New(t.cfg.BufferSize),
	}
}

func (t *Transport) track(s *socket) {
	t.mu.Lock()
	t.sockets[s] = struct{}{}
	t.mu.Unlock()
}

func (t *Transport) untrack(s *socket) {
	t.mu.Lock()
	delete(t.sockets, s)
	t.mu.Unlock()
}

// socket is one end of an in-process connection set. Send and Recv may be
// used from two different goroutines.
type socket struct {
	tr       *Transport
	pattern  xqueue.Pattern
	address  string
	identity []byte
	listener bool
	in       *inbox.Inbox

	mu     sync.Mutex
	peers  []*socket
	rr     int
	closed atomic.Bool
}

func (s *socket) link(p *socket) {
	s.mu.Lock()
	s.peers = append(s.peers, p)
	s.mu.Unlock()
}

func (s *socket) unlink(p *socket) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, q := range s.peers {
		if q == p {
			s.peers = append(s.peers[:i], s.peers[i+1:]...)
			if s.rr > i {
				s.rr--
			}
			return
		}
	}
}

func (s *socket) peerByIdentity(id []byte) *socket {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.peers {
		if bytes.Equal(p.identity, id) {
			return p
		}
	}
	return nil
}

func (s *socket) nextPeer() *socket {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.peers) == 0 {
		return nil
	}
	if s.rr >= len(s.peers) {
		s.rr = 0
	}
	p := s.peers[s.rr]
	s.rr++
	return p
}

func (s *socket) Send(ctx context.Context, frames [][]byte) error {
	if s.closed.Load() {
		return xqueue.ErrClosed
	}
	frames = copyFrames(frames)

	var target *socket
	switch s.pattern {
	case xqueue.PatternRouter:
		if len(frames) == 0 {
			return errors.New("memory: router send needs a routing frame")
		}
		target = s.peerByIdentity(frames[0])
		frames = frames[1:]
	case xqueue.PatternRequest:
		target = s.nextPeer()
		frames = append([][]byte{{}}, frames...)
	default:
		target = s.nextPeer()
	}
	if target == nil {
		s.tr.metrics.unroutable.Add(1)
		return xqueue.ErrPeerUnreachable
	}
	s.tr.metrics.sent.Add(1)
	return target.deliver(ctx, s, frames)
}

// deliver applies the receiving pattern's envelope rules and queues frames.
func (s *socket) deliver(ctx context.Context, from *socket, frames [][]byte) error {
	if s.closed.Load() {
		return xqueue.ErrPeerUnreachable
	}
	switch s.pattern {
	case xqueue.PatternRouter:
		frames = append([][]byte{append([]byte(nil), from.identity...)}, frames...)
	case xqueue.PatternRequest:
		if len(frames) > 0 && len(frames[0]) == 0 {
			frames = frames[1:]
		}
	}
	if !s.in.Feed(ctx, inbox.Result{Frames: frames}) {
		if err := ctx.Err(); err != nil {
			return err
		}
		return xqueue.ErrPeerUnreachable
	}
	s.tr.metrics.delivered.Add(1)
	return nil
}

func (s *socket) Recv(ctx context.Context) ([][]byte, error) {
	return s.in.Recv(ctx)
}

func (s *socket) Poll(ctx context.Context, timeout time.Duration) (bool, error) {
	return s.in.Poll(ctx, timeout)
}

func (s *socket) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.in.Close()

	s.mu.Lock()
	peers := s.peers
	s.peers = nil
	s.mu.Unlock()
	for _, p := range peers {
		p.unlink(s)
	}

	if s.listener {
		s.tr.hub.mu.Lock()
		if s.tr.hub.listeners[s.address] == s {
			delete(s.tr.hub.listeners, s.address)
		}
		s.tr.hub.mu.Unlock()
	}
	s.tr.untrack(s)
	return nil
}

func copyFrames(frames [][]byte) [][]byte {
	out := make([][]byte, len(frames))
	for i, f := range frames {
		c := make([]byte, len(f))
		copy(c, f)
		out[i] = c
	}
	return out
}
