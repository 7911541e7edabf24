package xqueue

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// notification is one event bound to the observers registered when it fired.
type notification struct {
	event     Event
	observers []Observer
}

// ObserverPool delivers events to observers on a fixed set of goroutines so
// that a slow observer never stalls Produce, Consume or Ack. When the buffer
// is full the event is counted as dropped instead of blocking the caller.
type ObserverPool struct {
	queue   chan notification
	workers int

	stop context.CancelFunc
	ctx  context.Context
	wg   sync.WaitGroup

	closed    atomic.Bool
	dropped   atomic.Uint64
	processed atomic.Uint64
}

// NewObserverPool starts workers goroutines (default 4) reading from a buffer
// of bufferSize events (default 1000).
func NewObserverPool(ctx context.Context, workers, bufferSize int) *ObserverPool {
	if workers < 1 {
		workers = 4
	}
	if bufferSize < 1 {
		bufferSize = 1000
	}

	op := &ObserverPool{
		queue:   make(chan notification, bufferSize),
		workers: workers,
	}
	op.ctx, op.stop = context.WithCancel(ctx)

	op.wg.Add(workers)
	for range workers {
		go op.run()
	}
	return op
}

// Notify hands e to the pool. The observers slice is copied.
func (op *ObserverPool) Notify(e Event, observers []Observer) {
	if len(observers) == 0 || op.closed.Load() {
		return
	}
	n := notification{event: e, observers: append([]Observer(nil), observers...)}
	select {
	case op.queue <- n:
	default:
		op.dropped.Add(1)
	}
}

func (op *ObserverPool) run() {
	defer op.wg.Done()
	for {
		select {
		case n := <-op.queue:
			op.deliver(n)
		case <-op.ctx.Done():
			op.drain()
			return
		}
	}
}

// drain delivers whatever was queued before shutdown.
func (op *ObserverPool) drain() {
	for {
		select {
		case n := <-op.queue:
			op.deliver(n)
		default:
			return
		}
	}
}

func (op *ObserverPool) deliver(n notification) {
	for _, obs := range n.observers {
		if obs != nil {
			safeNotify(obs, n.event)
		}
	}
	op.processed.Add(1)
}

// safeNotify keeps an observer panic from killing the worker.
func safeNotify(obs Observer, e Event) {
	defer func() { _ = recover() }()
	obs.OnEvent(e)
}

// Close stops accepting events and waits up to timeout for the workers to
// flush the buffer. Later calls return nil.
func (op *ObserverPool) Close(timeout time.Duration) error {
	if op.closed.Swap(true) {
		return nil
	}
	op.stop()

	flushed := make(chan struct{})
	go func() {
		op.wg.Wait()
		close(flushed)
	}()

	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-flushed:
		return nil
	case <-t.C:
		return ErrObserverPoolShutdownTimeout
	}
}

// Stats returns a snapshot of the pool counters.
func (op *ObserverPool) Stats() PoolStats {
	return PoolStats{
		Dropped:      op.dropped.Load(),
		Processed:    op.processed.Load(),
		ActiveEvents: len(op.queue),
		Workers:      op.workers,
		BufferSize:   cap(op.queue),
	}
}
