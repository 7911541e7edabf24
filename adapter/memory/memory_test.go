package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trickstertwo/xqueue"
)

func newHub(t *testing.T) *Transport {
	t.Helper()
	tr := NewTransport(Config{Hub: uuid.NewString(), BufferSize: 16})
	t.Cleanup(func() { _ = tr.Close(context.Background()) })
	return tr
}

func recv(t *testing.T, ch xqueue.Channel) [][]byte {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	f, err := ch.Recv(ctx)
	require.NoError(t, err)
	return f
}

func b(parts ...string) [][]byte {
	out := make([][]byte, len(parts))
	for i, p := range parts {
		out[i] = []byte(p)
	}
	return out
}

func TestDialWithoutListener(t *testing.T) {
	tr := newHub(t)
	_, err := tr.Dial(context.Background(), xqueue.PatternDealer, "nowhere")
	require.Error(t, err)
}

func TestListenTwice(t *testing.T) {
	tr := newHub(t)
	ctx := context.Background()
	_, err := tr.Listen(ctx, xqueue.PatternRouter, "a")
	require.NoError(t, err)
	_, err = tr.Listen(ctx, xqueue.PatternRouter, "a")
	require.Error(t, err)
}

func TestDealerToRouterAndBack(t *testing.T) {
	tr := newHub(t)
	ctx := context.Background()

	router, err := tr.Listen(ctx, xqueue.PatternRouter, "front")
	require.NoError(t, err)
	dealer, err := tr.Dial(ctx, xqueue.PatternDealer, "front")
	require.NoError(t, err)

	require.NoError(t, dealer.Send(ctx, b("job-1", "", "payload")))
	got := recv(t, router)
	require.Len(t, got, 4)
	assert.NotEmpty(t, got[0], "router sees the sender identity")
	assert.Equal(t, b("job-1", "", "payload"), got[1:])

	require.NoError(t, router.Send(ctx, append([][]byte{got[0]}, b("", "job-1", "OK")...)))
	assert.Equal(t, b("", "job-1", "OK"), recv(t, dealer))
}

func TestRouterUnknownPeer(t *testing.T) {
	tr := newHub(t)
	ctx := context.Background()
	router, err := tr.Listen(ctx, xqueue.PatternRouter, "front")
	require.NoError(t, err)

	err = router.Send(ctx, b("ghost", "", "x"))
	require.ErrorIs(t, err, xqueue.ErrPeerUnreachable)
	assert.Equal(t, uint64(1), tr.Stats().Unroutable)
}

func TestRequestEnvelope(t *testing.T) {
	tr := newHub(t)
	ctx := context.Background()

	router, err := tr.Listen(ctx, xqueue.PatternRouter, "mon")
	require.NoError(t, err)
	req, err := tr.Dial(ctx, xqueue.PatternRequest, "mon")
	require.NoError(t, err)

	require.NoError(t, req.Send(ctx, b("MONITOR")))
	got := recv(t, router)
	require.Len(t, got, 3)
	assert.Equal(t, b("", "MONITOR"), got[1:])

	require.NoError(t, router.Send(ctx, [][]byte{got[0], {}, []byte("a: 1\n")}))
	assert.Equal(t, b("a: 1\n"), recv(t, req))
}

func TestListeningDealerRoundRobin(t *testing.T) {
	tr := newHub(t)
	ctx := context.Background()

	dealer, err := tr.Listen(ctx, xqueue.PatternDealer, "back")
	require.NoError(t, err)
	r1, err := tr.Dial(ctx, xqueue.PatternRouter, "back")
	require.NoError(t, err)
	r2, err := tr.Dial(ctx, xqueue.PatternRouter, "back")
	require.NoError(t, err)

	require.NoError(t, dealer.Send(ctx, b("one")))
	require.NoError(t, dealer.Send(ctx, b("two")))

	g1, g2 := recv(t, r1), recv(t, r2)
	assert.Equal(t, []byte("one"), g1[1])
	assert.Equal(t, []byte("two"), g2[1])
	assert.Equal(t, g1[0], g2[0], "both see the same broker identity")

	// The consumer side routes its reply back through the captured identity.
	require.NoError(t, r1.Send(ctx, [][]byte{g1[0], {}, []byte("one")}))
	assert.Equal(t, b("", "one"), recv(t, dealer))
}

func TestPollAndClose(t *testing.T) {
	tr := newHub(t)
	ctx := context.Background()

	router, err := tr.Listen(ctx, xqueue.PatternRouter, "front")
	require.NoError(t, err)
	dealer, err := tr.Dial(ctx, xqueue.PatternDealer, "front")
	require.NoError(t, err)

	ready, err := router.Poll(ctx, 0)
	require.NoError(t, err)
	assert.False(t, ready)

	start := time.Now()
	ready, err = router.Poll(ctx, 10*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, ready)
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)

	require.NoError(t, dealer.Send(ctx, b("x")))
	ready, err = router.Poll(ctx, time.Second)
	require.NoError(t, err)
	assert.True(t, ready)
	assert.Len(t, recv(t, router), 2)

	require.NoError(t, dealer.Close())
	require.NoError(t, dealer.Close())
	require.ErrorIs(t, dealer.Send(ctx, b("x")), xqueue.ErrClosed)

	require.NoError(t, router.Close())
	_, err = router.Recv(ctx)
	require.ErrorIs(t, err, xqueue.ErrClosed)
}

func TestConfigFromMap(t *testing.T) {
	cfg := ConfigFromMap(map[string]any{"buffer_size": 64, "hub": "h"})
	assert.Equal(t, Config{BufferSize: 64, Hub: "h"}, cfg)

	cfg = ConfigFromMap(nil)
	assert.Equal(t, Config{BufferSize: 1024, Hub: "default"}, cfg)
	assert.Equal(t, cfg, ConfigFromMap(cfg.toMap()))
}

func TestUseInstallsDefault(t *testing.T) {
	c := Use(Config{Hub: uuid.NewString()}, WithProduceTimeout(time.Second))
	defer func() { _ = c.Close(context.Background()) }()

	got, ok := xqueue.Default()
	require.True(t, ok)
	assert.Same(t, c, got)
}
