package xqueue

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type resizeJob struct {
	Image string `json:"image"`
	Width int    `json:"width"`
}

func TestCodec_EncodeDecode(t *testing.T) {
	msg, err := EncodeMessage(JSONCodec{}, "job-1", resizeJob{Image: "a.png", Width: 64})
	require.NoError(t, err)
	assert.Equal(t, "job-1", msg.ID())
	require.Len(t, msg.Payload(), 1)

	got, err := Decode[resizeJob](injectCodec(context.Background(), JSONCodec{}), msg)
	require.NoError(t, err)
	assert.Equal(t, resizeJob{Image: "a.png", Width: 64}, got)

	// Without an injected codec Decode falls back to JSON.
	got, err = Decode[resizeJob](context.Background(), msg)
	require.NoError(t, err)
	assert.Equal(t, 64, got.Width)
}

func TestCodec_DecodeWithoutPayload(t *testing.T) {
	_, err := DecodeCodec[resizeJob](JSONCodec{}, NewMessage("job-1"))
	require.Error(t, err)
}

func TestRegistry(t *testing.T) {
	require.Error(t, RegisterTransport("", func(map[string]any) (Transport, error) { return nil, nil }))
	require.Error(t, RegisterTransport("x", nil))

	require.NoError(t, RegisterTransport("fake-registry", func(map[string]any) (Transport, error) {
		return &fakeTransport{}, nil
	}))
	assert.Contains(t, Transports(), "fake-registry")

	tr, err := NewTransport("fake-registry", nil)
	require.NoError(t, err)
	assert.IsType(t, &fakeTransport{}, tr)

	c, err := NewCodec("json")
	require.NoError(t, err)
	assert.Equal(t, "json", c.Name())
}
