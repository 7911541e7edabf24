package xqueue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeChannel is a scripted Channel. Replies queued with push are returned by
// Recv in order; onSend may queue a reply in response to a request.
type fakeChannel struct {
	mu      sync.Mutex
	sent    [][][]byte
	replies [][][]byte
	onSend  func(fc *fakeChannel, frames [][]byte)
	sendErr error
	closed  bool
}

func (f *fakeChannel) push(frames ...[]byte) {
	f.mu.Lock()
	f.replies = append(f.replies, frames)
	f.mu.Unlock()
}

func (f *fakeChannel) setOnSend(fn func(fc *fakeChannel, frames [][]byte)) {
	f.mu.Lock()
	f.onSend = fn
	f.mu.Unlock()
}

func (f *fakeChannel) sentFrames() [][][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][][]byte(nil), f.sent...)
}

func (f *fakeChannel) Send(_ context.Context, frames [][]byte) error {
	f.mu.Lock()
	if f.sendErr != nil {
		err := f.sendErr
		f.mu.Unlock()
		return err
	}
	f.sent = append(f.sent, cloneFrames(frames))
	cb := f.onSend
	f.mu.Unlock()

	if cb != nil {
		cb(f, frames)
	}
	return nil
}

func (f *fakeChannel) pending() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.replies) > 0
}

func (f *fakeChannel) Recv(ctx context.Context) ([][]byte, error) {
	for {
		f.mu.Lock()
		if len(f.replies) > 0 {
			r := f.replies[0]
			f.replies = f.replies[1:]
			f.mu.Unlock()
			return r, nil
		}
		f.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Millisecond):
		}
	}
}

func (f *fakeChannel) Poll(ctx context.Context, timeout time.Duration) (bool, error) {
	deadline := time.Now().Add(timeout)
	for {
		if f.pending() {
			return true, nil
		}
		if !time.Now().Before(deadline) {
			return false, nil
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(time.Millisecond):
		}
	}
}

func (f *fakeChannel) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

// fakeTransport hands out one fakeChannel per Dial.
type fakeTransport struct {
	mu       sync.Mutex
	channels []*fakeChannel
	patterns []Pattern
	dialErr  error
	closed   bool
}

func (t *fakeTransport) Dial(_ context.Context, p Pattern, _ string) (Channel, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.dialErr != nil {
		return nil, t.dialErr
	}
	ch := &fakeChannel{}
	t.channels = append(t.channels, ch)
	t.patterns = append(t.patterns, p)
	return ch, nil
}

func (t *fakeTransport) Close(context.Context) error {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	return nil
}

func (t *fakeTransport) last() *fakeChannel {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.channels[len(t.channels)-1]
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func newTestClient(t *testing.T, tr Transport, opts ...func(*Builder)) *Client {
	t.Helper()
	b := NewBuilder().WithTransportInstance(tr)
	for _, o := range opts {
		o(b)
	}
	c, err := b.Build()
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close(context.Background()) })
	return c
}

func strFrames(parts ...string) [][]byte {
	out := make([][]byte, len(parts))
	for i, p := range parts {
		out[i] = []byte(p)
	}
	return out
}
