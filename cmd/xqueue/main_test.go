package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trickstertwo/xqueue/adapter/memory"
	"github.com/trickstertwo/xqueue/xqueuetest"
)

// writeConfig points the CLI at a private in-memory hub.
func writeConfig(t *testing.T, hub string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "xqueue.yaml")
	data := fmt.Sprintf(`transport:
  name: memory
  options:
    hub: %s
producer:
  address: cli.front
  timeout: 2s
consumer:
  address: cli.back
  filter_expired: true
  ack_timeout: 1s
monitor:
  address: cli.monitor
log:
  level: error
`, hub)
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))
	return path
}

func startBroker(t *testing.T, hub string) *xqueuetest.Broker {
	t.Helper()
	ctx := context.Background()
	l := memory.NewTransport(memory.Config{Hub: hub})
	b, err := xqueuetest.Start(ctx, l, xqueuetest.Config{
		ProducerAddr: "cli.front",
		ConsumerAddr: "cli.back",
		MonitorAddr:  "cli.monitor",
		AckTimeout:   time.Minute,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = b.Close()
		_ = l.Close(ctx)
	})
	return b
}

func run(ctx context.Context, args ...string) (string, error) {
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

func TestProduceConsumeMonitor(t *testing.T) {
	hub := uuid.NewString()
	cfg := writeConfig(t, hub)
	b := startBroker(t, hub)
	ctx := context.Background()

	out, err := run(ctx, "--config", cfg, "produce", "--id", "job-1", "resize", "img.png")
	require.NoError(t, err)
	assert.Equal(t, "accepted job-1\n", out)

	out, err = run(ctx, "--config", cfg, "consume", "--count", "1")
	require.NoError(t, err)
	assert.Equal(t, "job-1 resize | img.png\n", out)

	require.Eventually(t, func() bool {
		return len(b.Completed()) == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"job-1"}, b.Completed())

	out, err = run(ctx, "--config", cfg, "monitor")
	require.NoError(t, err)
	assert.Contains(t, out, "messages: 0\n")
	assert.Contains(t, out, "messages_in_flight: 0\n")
}

func TestProduceGeneratesIDs(t *testing.T) {
	hub := uuid.NewString()
	cfg := writeConfig(t, hub)
	b := startBroker(t, hub)

	out, err := run(context.Background(), "--config", cfg, "produce", "-n", "3", "work")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	for _, l := range lines {
		id := strings.TrimPrefix(l, "accepted ")
		_, err := uuid.Parse(id)
		assert.NoError(t, err, l)
	}
	assert.Len(t, b.Accepted(), 3)
}

func TestProduceRejectsIDWithCount(t *testing.T) {
	cfg := writeConfig(t, uuid.NewString())
	_, err := run(context.Background(), "--config", cfg, "produce", "--id", "x", "-n", "2", "work")
	require.Error(t, err)
}

func TestProduceNeedsPayload(t *testing.T) {
	cfg := writeConfig(t, uuid.NewString())
	_, err := run(context.Background(), "--config", cfg, "produce")
	require.Error(t, err)
}

func TestProduceWithoutBroker(t *testing.T) {
	cfg := writeConfig(t, uuid.NewString())
	_, err := run(context.Background(), "--config", cfg, "produce", "work")
	require.Error(t, err)
}

func TestConsumeNonBlockingEmpty(t *testing.T) {
	hub := uuid.NewString()
	cfg := writeConfig(t, hub)
	startBroker(t, hub)

	out, err := run(context.Background(), "--config", cfg, "consume", "--non-blocking")
	require.NoError(t, err)
	assert.Equal(t, "no message\n", out)
}

func TestUnknownTransportFlag(t *testing.T) {
	cfg := writeConfig(t, uuid.NewString())
	_, err := run(context.Background(), "--config", cfg, "--transport", "carrier-pigeon", "monitor")
	require.Error(t, err)
}

func TestBrokerCommand(t *testing.T) {
	hub := uuid.NewString()
	cfg := writeConfig(t, hub)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := run(ctx, "--config", cfg, "broker")
		done <- err
	}()

	require.Eventually(t, func() bool {
		_, err := run(context.Background(), "--config", cfg, "monitor")
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)

	out, err := run(context.Background(), "--config", cfg, "produce", "--id", "job-9", "work")
	require.NoError(t, err)
	assert.Equal(t, "accepted job-9\n", out)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("broker command did not stop")
	}
}
