// Package inbox buffers frames produced by a transport's background reader
// and implements the blocking receive and readiness wait of xqueue.Channel on
// top of them.
package inbox

import (
	"context"
	"sync"
	"time"

	"github.com/trickstertwo/xqueue"
)

// Result is one received message, or the terminal error of the reader.
type Result struct {
	Frames [][]byte
	Err    error
}

// Inbox is safe for one feeding goroutine and one receiving owner.
type Inbox struct {
	ch      chan Result
	done    chan struct{}
	once    sync.Once
	pending *Result
	sticky  error
}

func New(size int) *Inbox {
	if size < 1 {
		size = 1
	}
	return &Inbox{
		ch:   make(chan Result, size),
		done: make(chan struct{}),
	}
}

// Feed queues r, blocking while the inbox is full. It returns false once the
// inbox is closed or ctx is done.
func (in *Inbox) Feed(ctx context.Context, r Result) bool {
	select {
	case <-in.done:
		return false
	default:
	}
	select {
	case in.ch <- r:
		return true
	case <-in.done:
		return false
	case <-ctx.Done():
		return false
	}
}

// Recv returns the next message, waiting until one arrives, ctx is done or the
// inbox is closed.
func (in *Inbox) Recv(ctx context.Context) ([][]byte, error) {
	if r := in.take(); r != nil {
		return in.result(*r)
	}
	if in.sticky != nil {
		return nil, in.sticky
	}
	select {
	case r := <-in.ch:
		return in.result(r)
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-in.done:
		return nil, xqueue.ErrClosed
	}
}

// Poll waits up to timeout for a message. Zero checks without blocking.
func (in *Inbox) Poll(ctx context.Context, timeout time.Duration) (bool, error) {
	if in.pending != nil || in.sticky != nil {
		return true, nil
	}
	if timeout <= 0 {
		select {
		case r := <-in.ch:
			in.pending = &r
			return true, nil
		case <-in.done:
			return false, xqueue.ErrClosed
		default:
			return false, nil
		}
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case r := <-in.ch:
		in.pending = &r
		return true, nil
	case <-timer.C:
		return false, nil
	case <-ctx.Done():
		return false, ctx.Err()
	case <-in.done:
		return false, xqueue.ErrClosed
	}
}

// Close wakes blocked receivers and rejects further feeds.
func (in *Inbox) Close() {
	in.once.Do(func() { close(in.done) })
}

// Done is closed by Close.
func (in *Inbox) Done() <-chan struct{} { return in.done }

func (in *Inbox) take() *Result {
	r := in.pending
	in.pending = nil
	return r
}

func (in *Inbox) result(r Result) ([][]byte, error) {
	if r.Err != nil {
		in.sticky = r.Err
		return nil, r.Err
	}
	return r.Frames, nil
}
