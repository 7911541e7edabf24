// Package xqueuetest provides an in-process broker that speaks the xqueue wire
// protocol over any xqueue.Listener. It exists to exercise clients end to end;
// it keeps everything in memory and makes no durability promises.
package xqueuetest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/trickstertwo/xclock"
	"github.com/trickstertwo/xlog"

	"github.com/trickstertwo/xqueue"
)

// Config configures a Broker.
type Config struct {
	// ProducerAddr is where producers connect (router).
	ProducerAddr string
	// ConsumerAddr is where consumers connect (dealer).
	ConsumerAddr string
	// MonitorAddr is where monitors connect (router). Optional.
	MonitorAddr string

	// AckTimeout is stamped on every assignment. Zero means never expires.
	AckTimeout time.Duration
	// Accept decides the accept status for a produced id and whether to reply
	// at all. Default: "OK" and reply.
	Accept func(id string) (status string, reply bool)
	// RedeliverExpired puts assignments whose deadline passed back in the queue.
	RedeliverExpired bool
	// Tick is the dispatch and expiry scan interval (default: 2ms).
	Tick time.Duration

	Clock  xqueue.Clock
	Logger *xlog.Logger
}

// Broker is a minimal work-queue broker.
type Broker struct {
	cfg    Config
	logger *xlog.Logger

	front, back, mon xqueue.Channel

	mu        sync.Mutex
	queue     []*xqueue.Message
	inFlight  map[string]*xqueue.Message
	accepted  []string
	completed []string
	expired   int64
	syncs     int64

	wake   chan struct{}
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// Start binds the broker's channels on l and starts serving.
func Start(ctx context.Context, l xqueue.Listener, cfg Config) (*Broker, error) {
	if cfg.ProducerAddr == "" || cfg.ConsumerAddr == "" {
		return nil, errors.New("xqueuetest: producer and consumer addresses are required")
	}
	if cfg.Accept == nil {
		cfg.Accept = func(string) (string, bool) { return xqueue.StatusOK, true }
	}
	if cfg.Tick <= 0 {
		cfg.Tick = 2 * time.Millisecond
	}
	if cfg.Clock == nil {
		cfg.Clock = xclock.Default()
	}
	if cfg.Logger == nil {
		cfg.Logger = xlog.Default()
	}

	b := &Broker{
		cfg:      cfg,
		logger:   cfg.Logger.With(xlog.Str("component", "xqueuetest")),
		inFlight: make(map[string]*xqueue.Message),
		wake:     make(chan struct{}, 1),
	}

	var err error
	if b.front, err = l.Listen(ctx, xqueue.PatternRouter, cfg.ProducerAddr); err != nil {
		return nil, fmt.Errorf("xqueuetest: producer side: %w", err)
	}
	if b.back, err = l.Listen(ctx, xqueue.PatternDealer, cfg.ConsumerAddr); err != nil {
		_ = b.front.Close()
		return nil, fmt.Errorf("xqueuetest: consumer side: %w", err)
	}
	if cfg.MonitorAddr != "" {
		if b.mon, err = l.Listen(ctx, xqueue.PatternRouter, cfg.MonitorAddr); err != nil {
			_ = b.front.Close()
			_ = b.back.Close()
			return nil, fmt.Errorf("xqueuetest: monitor side: %w", err)
		}
	}

	runCtx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel

	b.serve(runCtx, b.acceptLoop)
	b.serve(runCtx, b.completionLoop)
	b.serve(runCtx, b.dispatchLoop)
	if b.mon != nil {
		b.serve(runCtx, b.monitorLoop)
	}
	return b, nil
}

func (b *Broker) serve(ctx context.Context, fn func(context.Context)) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		fn(ctx)
	}()
}

// Close stops serving and closes the broker's channels.
func (b *Broker) Close() error {
	var err error
	b.once.Do(func() {
		b.cancel()
		errs := []error{b.front.Close(), b.back.Close()}
		if b.mon != nil {
			errs = append(errs, b.mon.Close())
		}
		b.wg.Wait()
		err = errors.Join(errs...)
	})
	return err
}

// Accepted returns the ids accepted so far, in order.
func (b *Broker) Accepted() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.accepted...)
}

// Completed returns the ids whose completion notice arrived, in order.
func (b *Broker) Completed() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.completed...)
}

// Stats returns the counters the broker reports to monitors.
func (b *Broker) Stats() xqueue.BrokerStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return xqueue.BrokerStats{
		Messages:         int64(len(b.queue)),
		MessagesInFlight: int64(len(b.inFlight)),
		DBSize:           int64(len(b.queue)),
		InFlightDBSize:   int64(len(b.inFlight)),
		Syncs:            b.syncs,
		ExpiredMessages:  b.expired,
	}
}

// acceptLoop handles producer requests [identity, id, "", payload...].
func (b *Broker) acceptLoop(ctx context.Context) {
	for {
		frames, err := b.front.Recv(ctx)
		if err != nil {
			return
		}
		if len(frames) < 4 || len(frames[2]) != 0 {
			b.logger.Warn().Msg("xqueuetest: dropping malformed produce request")
			continue
		}
		peer, id := frames[0], string(frames[1])

		status, reply := b.cfg.Accept(id)
		if status == xqueue.StatusOK {
			b.enqueue(xqueue.NewMessage(id, frames[3:]...))
		}
		if !reply {
			continue
		}
		out := append([][]byte{peer}, xqueue.EncodeAccept(id, status)...)
		if err := b.front.Send(ctx, out); err != nil && ctx.Err() == nil {
			b.logger.Warn().Err(err).Msg("xqueuetest: accept reply failed")
		}
	}
}

// enqueue stores msg unless an assignment with the same id is already known.
func (b *Broker) enqueue(msg *xqueue.Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.inFlight[msg.ID()]; ok {
		return
	}
	for _, q := range b.queue {
		if q.ID() == msg.ID() {
			return
		}
	}
	b.queue = append(b.queue, msg)
	b.accepted = append(b.accepted, msg.ID())

	select {
	case b.wake <- struct{}{}:
	default:
	}
}

// dispatchLoop hands queued work to consumers and reclaims expired work.
func (b *Broker) dispatchLoop(ctx context.Context) {
	ticker := time.NewTicker(b.cfg.Tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-b.wake:
		}
		if b.cfg.RedeliverExpired {
			b.reclaim()
		}
		b.dispatch(ctx)
	}
}

func (b *Broker) dispatch(ctx context.Context) {
	for {
		b.mu.Lock()
		if len(b.queue) == 0 {
			b.mu.Unlock()
			return
		}
		msg := b.queue[0]
		b.mu.Unlock()

		msg.SetSentTime(b.cfg.Clock.Now().UnixMicro())
		msg.SetAckTimeout(b.cfg.AckTimeout.Microseconds())
		if err := b.back.Send(ctx, xqueue.EncodeDelivery(msg)); err != nil {
			// No consumer yet; retried next tick.
			return
		}

		b.mu.Lock()
		b.queue = b.queue[1:]
		b.inFlight[msg.ID()] = msg
		b.mu.Unlock()
	}
}

func (b *Broker) reclaim() {
	now := b.cfg.Clock.Now()
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, msg := range b.inFlight {
		if xqueue.IsExpired(msg, now) {
			delete(b.inFlight, id)
			b.queue = append(b.queue, msg)
			b.expired++
		}
	}
}

// completionLoop handles consumer notices ["", id].
func (b *Broker) completionLoop(ctx context.Context) {
	for {
		frames, err := b.back.Recv(ctx)
		if err != nil {
			return
		}
		id, err := xqueue.DecodeCompletion(frames)
		if err != nil {
			b.logger.Warn().Err(err).Msg("xqueuetest: dropping malformed completion")
			continue
		}
		b.mu.Lock()
		delete(b.inFlight, id)
		b.completed = append(b.completed, id)
		b.syncs++
		b.mu.Unlock()
	}
}

// monitorLoop answers [identity, "", "MONITOR"] with a stats report.
func (b *Broker) monitorLoop(ctx context.Context) {
	for {
		frames, err := b.mon.Recv(ctx)
		if err != nil {
			return
		}
		if len(frames) < 3 || !bytes.Equal(frames[len(frames)-1], []byte(xqueue.MonitorCommand)) {
			b.logger.Warn().Msg("xqueuetest: unknown monitor command")
			continue
		}
		report := xqueue.FormatStats(b.Stats().Entries()...)
		out := [][]byte{frames[0], {}, []byte(report)}
		if err := b.mon.Send(ctx, out); err != nil && ctx.Err() == nil {
			b.logger.Warn().Err(err).Msg("xqueuetest: monitor reply failed")
		}
	}
}
