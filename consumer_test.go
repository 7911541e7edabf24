package xqueue

import (
	"context"
	"errors"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var consumerNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func connectedConsumer(t *testing.T, opts ...func(*Builder)) (*Consumer, *fakeChannel, *Client) {
	t.Helper()
	tr := &fakeTransport{}
	opts = append([]func(*Builder){func(b *Builder) { b.WithClock(fixedClock{consumerNow}) }}, opts...)
	c := newTestClient(t, tr, opts...)
	cs := c.NewConsumer()
	require.NoError(t, cs.Connect(context.Background(), "inproc://back"))
	require.Equal(t, []Pattern{PatternRouter}, tr.patterns)
	return cs, tr.last(), c
}

// delivery builds the frames a consumer receives, with sentTime relative to
// consumerNow.
func delivery(id string, age, ackTimeout time.Duration, payload ...string) [][]byte {
	sent := consumerNow.Add(-age).UnixMicro()
	out := strFrames("broker-peer", id,
		strconv.FormatInt(sent, 10),
		strconv.FormatInt(ackTimeout.Microseconds(), 10),
		"")
	return append(out, strFrames(payload...)...)
}

func TestConsumer_Consume(t *testing.T) {
	cs, ch, c := connectedConsumer(t)
	ch.push(delivery("job-1", time.Millisecond, time.Second, "a", "b")...)

	msg, err := cs.Consume(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, "job-1", msg.ID())
	assert.Equal(t, []byte("broker-peer"), msg.Peer())
	assert.Equal(t, strFrames("a", "b"), msg.Payload())
	assert.Equal(t, time.Second.Microseconds(), msg.AckTimeout())
	assert.Equal(t, uint64(1), c.Metrics().Consumed)
}

func TestConsumer_DropsExpired(t *testing.T) {
	cs, ch, c := connectedConsumer(t)
	require.True(t, cs.FilterExpired())

	ch.push(delivery("stale", 10*time.Millisecond, 5*time.Millisecond, "x")...)
	ch.push(delivery("fresh", time.Millisecond, 5*time.Millisecond, "y")...)

	msg, err := cs.Consume(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, "fresh", msg.ID())
	assert.Equal(t, uint64(1), c.Metrics().ExpiredDropped)
	assert.Empty(t, ch.sentFrames(), "expired work is never acked")
}

func TestConsumer_ExpiredDeliveredWhenFilterOff(t *testing.T) {
	cs, ch, _ := connectedConsumer(t)
	cs.SetFilterExpired(false)

	ch.push(delivery("stale", time.Hour, time.Millisecond, "x")...)
	msg, err := cs.Consume(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, "stale", msg.ID())
	assert.True(t, msg.Expired(consumerNow))
}

func TestConsumer_ExactDeadlineIsLive(t *testing.T) {
	cs, ch, _ := connectedConsumer(t)
	ch.push(delivery("edge", 5*time.Millisecond, 5*time.Millisecond, "x")...)

	msg, err := cs.Consume(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, "edge", msg.ID())
}

func TestConsumer_ZeroTimingNeverExpires(t *testing.T) {
	cs, ch, _ := connectedConsumer(t)
	ch.push(strFrames("peer", "job-1", "0", "0", "", "do work")...)

	msg, err := cs.Consume(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, "job-1", msg.ID())
}

func TestConsumer_NonBlockingEmpty(t *testing.T) {
	cs, _, _ := connectedConsumer(t)

	msg, err := cs.Consume(context.Background(), false)
	assert.Nil(t, msg)
	require.ErrorIs(t, err, ErrNoMessage)
}

func TestConsumer_NonBlockingOnlyExpired(t *testing.T) {
	cs, ch, _ := connectedConsumer(t)
	ch.push(delivery("stale", time.Second, time.Millisecond, "x")...)

	_, err := cs.Consume(context.Background(), false)
	require.ErrorIs(t, err, ErrNoMessage)
}

func TestConsumer_BlockingHonoursContext(t *testing.T) {
	cs, _, _ := connectedConsumer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := cs.Consume(ctx, true)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestConsumer_MalformedDelivery(t *testing.T) {
	cs, ch, _ := connectedConsumer(t)
	ch.push(strFrames("peer", "job-1", "x")...)

	_, err := cs.Consume(context.Background(), true)
	require.ErrorIs(t, err, ErrProtocol)
}

func TestConsumer_Ack(t *testing.T) {
	cs, ch, c := connectedConsumer(t)
	ch.push(delivery("job-1", 0, time.Second, "x")...)

	msg, err := cs.Consume(context.Background(), true)
	require.NoError(t, err)

	require.NoError(t, cs.Ack(context.Background(), msg))
	require.NoError(t, cs.Ack(context.Background(), msg))

	want := strFrames("broker-peer", "", "job-1")
	assert.Equal(t, [][][]byte{want, want}, ch.sentFrames())
	assert.Equal(t, uint64(2), c.Metrics().Completed)
}

func TestConsumer_AckNeedsPeer(t *testing.T) {
	cs, _, _ := connectedConsumer(t)
	require.ErrorIs(t, cs.Ack(context.Background(), NewMessage("job-1", []byte("x"))), ErrMissingPeer)
	require.ErrorIs(t, cs.Ack(context.Background(), NewMessage("")), ErrEmptyID)
}

func TestConsumer_RunAcksSuccessfulWork(t *testing.T) {
	cs, ch, c := connectedConsumer(t)
	ch.push(delivery("ok", 0, 0, "x")...)
	ch.push(delivery("bad", 0, 0, "y")...)
	ch.push(delivery("panics", 0, 0, "z")...)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var handled atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- cs.Run(ctx, func(ctx context.Context, msg *Message) error {
			handled.Add(1)
			_, ok := LoggerFromContext(ctx)
			assert.True(t, ok)
			switch msg.ID() {
			case "bad":
				return errors.New("failed")
			case "panics":
				panic("boom")
			}
			return nil
		})
	}()

	require.Eventually(t, func() bool { return handled.Load() == 3 }, 2*time.Second, time.Millisecond)
	require.Eventually(t, func() bool { return c.Metrics().HandlerFailures == 2 }, 2*time.Second, time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, [][][]byte{strFrames("broker-peer", "", "ok")}, ch.sentFrames())
}

func TestConsumer_RunFinishesAssignmentReceivedAtShutdown(t *testing.T) {
	cs, ch, _ := connectedConsumer(t)
	ch.push(delivery("job-1", 0, 0, "x")...)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var handled []string
	err := cs.Run(ctx, func(_ context.Context, msg *Message) error {
		handled = append(handled, msg.ID())
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"job-1"}, handled)
	assert.Equal(t, [][][]byte{strFrames("broker-peer", "", "job-1")}, ch.sentFrames())
}

func TestConsumer_RunSkipsMalformed(t *testing.T) {
	cs, ch, _ := connectedConsumer(t)
	ch.push(strFrames("garbage")...)
	ch.push(delivery("job-1", 0, 0, "x")...)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	seen := make(chan string, 1)
	go func() {
		_ = cs.Run(ctx, func(_ context.Context, msg *Message) error {
			seen <- msg.ID()
			return nil
		})
	}()

	select {
	case id := <-seen:
		assert.Equal(t, "job-1", id)
	case <-time.After(2 * time.Second):
		t.Fatal("handler not called")
	}
}
