package xqueue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/trickstertwo/xlog"
)

func TestHandlerEnv(t *testing.T) {
	ctx := context.Background()
	_, ok := CodecFromContext(ctx)
	assert.False(t, ok)
	_, ok = LoggerFromContext(ctx)
	assert.False(t, ok)

	clk := fixedClock{time.Unix(100, 0)}
	ctx = InjectAll(ctx, JSONCodec{}, xlog.Default(), clk)

	c, ok := CodecFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, "json", c.Name())
	got, ok := ClockFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, clk, got)

	// Overriding one dependency keeps the others; nil changes nothing.
	later := fixedClock{time.Unix(200, 0)}
	ctx = injectClock(InjectAll(ctx, nil, nil, nil), later)
	got, _ = ClockFromContext(ctx)
	assert.Equal(t, later, got)
	_, ok = CodecFromContext(ctx)
	assert.True(t, ok)
	_, ok = LoggerFromContext(ctx)
	assert.True(t, ok)
}

func TestWithAssignmentScopesLogger(t *testing.T) {
	base := xlog.Default()
	ctx := InjectAll(context.Background(), nil, base, nil)

	scoped, ok := LoggerFromContext(withAssignment(ctx, NewMessage("job-1", []byte("x"))))
	assert.True(t, ok)
	assert.NotNil(t, scoped)

	plain := context.Background()
	assert.Equal(t, plain, withAssignment(plain, NewMessage("job-1", []byte("x"))))
}
