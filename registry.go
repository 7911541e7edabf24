package xqueue

import (
	"fmt"
	"sort"
	"sync"
)

// TransportFactory constructs transports from a config blob.
type TransportFactory func(cfg map[string]any) (Transport, error)

// CodecFactory constructs codecs via Factory pattern.
type CodecFactory func() Codec

// registry maps names to factories. Registering a name again replaces it.
type registry[F any] struct {
	kind string
	mu   sync.RWMutex
	m    map[string]F
}

func newRegistry[F any](kind string) *registry[F] {
	return &registry[F]{kind: kind, m: make(map[string]F)}
}

func (r *registry[F]) register(name string, f F, isNil bool) error {
	if name == "" {
		return fmt.Errorf("xqueue: %s name must not be empty", r.kind)
	}
	if isNil {
		return fmt.Errorf("xqueue: %s factory for %q must not be nil", r.kind, name)
	}
	r.mu.Lock()
	r.m[name] = f
	r.mu.Unlock()
	return nil
}

func (r *registry[F]) lookup(name string) (F, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.m[name]
	return f, ok
}

func (r *registry[F]) names() []string {
	r.mu.RLock()
	out := make([]string, 0, len(r.m))
	for n := range r.m {
		out = append(out, n)
	}
	r.mu.RUnlock()
	sort.Strings(out)
	return out
}

var (
	transports = newRegistry[TransportFactory]("transport")
	codecs     = func() *registry[CodecFactory] {
		r := newRegistry[CodecFactory]("codec")
		r.m["json"] = func() Codec { return JSONCodec{} }
		return r
	}()
)

// RegisterTransport makes a transport adapter available to Builder.WithTransport.
// Adapters call it from init.
func RegisterTransport(name string, factory TransportFactory) error {
	return transports.register(name, factory, factory == nil)
}

// NewTransport constructs the transport registered as name.
func NewTransport(name string, cfg map[string]any) (Transport, error) {
	f, ok := transports.lookup(name)
	if !ok {
		return nil, ErrUnknownTransport{name: name}
	}
	return f(cfg)
}

// Transports lists registered transport names in sorted order.
func Transports() []string { return transports.names() }

// RegisterCodec registers a codec factory by name.
func RegisterCodec(name string, factory CodecFactory) error {
	return codecs.register(name, factory, factory == nil)
}

// NewCodec constructs a codec by name.
func NewCodec(name string) (Codec, error) {
	f, ok := codecs.lookup(name)
	if !ok {
		return nil, fmt.Errorf("xqueue: codec %q not registered", name)
	}
	return f(), nil
}
