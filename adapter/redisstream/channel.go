package redisstream

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/trickstertwo/xqueue"
	"github.com/trickstertwo/xqueue/internal/inbox"
)

// channel implements xqueue.Channel over one inbox stream.
type channel struct {
	t        *Transport
	pattern  xqueue.Pattern
	address  string
	key      string
	listener bool
	in       *inbox.Inbox

	ctx    context.Context
	cancel context.CancelFunc
	rr     atomic.Uint64
	closed atomic.Bool
}

func (c *channel) Send(ctx context.Context, frames [][]byte) error {
	if c.closed.Load() {
		return xqueue.ErrClosed
	}

	var target string
	var err error
	switch c.pattern {
	case xqueue.PatternRouter:
		if len(frames) == 0 {
			return errors.New("redisstream: router send needs a routing frame")
		}
		target = string(frames[0])
		frames = frames[1:]
		err = c.checkRoute(ctx, target)
	case xqueue.PatternRequest:
		target, err = c.nextPeer(ctx)
		frames = append([][]byte{{}}, frames...)
	default:
		target, err = c.nextPeer(ctx)
	}
	if err != nil {
		return err
	}

	args := &redis.XAddArgs{
		Stream: target,
		ID:     "*",
		Values: encodeEntry(c.key, frames),
	}
	if c.t.cfg.MaxLenApprox > 0 {
		args.MaxLen = c.t.cfg.MaxLenApprox
		args.Approx = true
	}
	if err := c.t.client.XAdd(ctx, args).Err(); err != nil {
		c.t.metrics.sendErrors.Add(1)
		return fmt.Errorf("redisstream: xadd %s: %w", target, err)
	}
	c.t.metrics.sent.Add(1)
	return nil
}

func (c *channel) Recv(ctx context.Context) ([][]byte, error) {
	return c.in.Recv(ctx)
}

func (c *channel) Poll(ctx context.Context, timeout time.Duration) (bool, error) {
	return c.in.Poll(ctx, timeout)
}

// Close stops the reader, deletes the inbox stream and unregisters a dialed
// channel from its listener's peer set.
func (c *channel) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	c.cancel()
	c.in.Close()
	c.t.forget(c)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	pipe := c.t.client.Pipeline()
	if !c.listener {
		pipe.SRem(ctx, c.t.peersKey(c.address), c.key)
	}
	pipe.Del(ctx, c.key)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.ErrClosed) {
		return fmt.Errorf("redisstream: close %s: %w", c.key, err)
	}
	return nil
}

// checkRoute verifies a router target is a live peer of this channel.
func (c *channel) checkRoute(ctx context.Context, target string) error {
	if !c.listener {
		if target == c.t.listenerKey(c.address) {
			return nil
		}
		c.t.metrics.unroutable.Add(1)
		return xqueue.ErrPeerUnreachable
	}
	ok, err := c.t.client.SIsMember(ctx, c.t.peersKey(c.address), target).Result()
	if err != nil {
		return fmt.Errorf("redisstream: lookup peer: %w", err)
	}
	if !ok {
		c.t.metrics.unroutable.Add(1)
		return xqueue.ErrPeerUnreachable
	}
	return nil
}

// nextPeer returns the listener for dialed channels and round-robins over the
// registered peers for listeners.
func (c *channel) nextPeer(ctx context.Context) (string, error) {
	if !c.listener {
		return c.t.listenerKey(c.address), nil
	}
	peers, err := c.t.client.SMembers(ctx, c.t.peersKey(c.address)).Result()
	if err != nil {
		return "", fmt.Errorf("redisstream: list peers: %w", err)
	}
	if len(peers) == 0 {
		c.t.metrics.unroutable.Add(1)
		return "", xqueue.ErrPeerUnreachable
	}
	slices.Sort(peers)
	n := c.rr.Add(1) - 1
	return peers[n%uint64(len(peers))], nil
}

// readLoop moves entries from the inbox stream into the channel's inbox,
// deleting them once read.
func (c *channel) readLoop() {
	last := startID
	backoff := time.Millisecond * 100
	maxBackoff := time.Second * 5

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		res, err := c.t.client.XRead(c.ctx, &redis.XReadArgs{
			Streams: []string{c.key, last},
			Count:   int64(c.t.cfg.BatchSize),
			Block:   c.t.cfg.Block,
		}).Result()
		if err != nil {
			if c.ctx.Err() != nil || errors.Is(err, redis.ErrClosed) {
				return
			}
			if errors.Is(err, redis.Nil) {
				backoff = time.Millisecond * 100
				continue
			}

			c.t.metrics.readErrors.Add(1)
			select {
			case <-time.After(backoff):
				backoff = min(backoff*2, maxBackoff)
			case <-c.ctx.Done():
				return
			}
			continue
		}
		backoff = time.Millisecond * 100

		for _, stream := range res {
			ids := make([]string, 0, len(stream.Messages))
			for _, m := range stream.Messages {
				last = m.ID
				ids = append(ids, m.ID)

				from, frames, err := decodeEntry(m.Values)
				if err != nil {
					c.t.metrics.readErrors.Add(1)
					continue
				}
				if !c.in.Feed(c.ctx, inbox.Result{Frames: c.inbound(from, frames)}) {
					return
				}
				c.t.metrics.received.Add(1)
			}
			if len(ids) > 0 {
				_ = c.t.client.XDel(c.ctx, c.key, ids...).Err()
			}
		}
	}
}

// inbound applies the receiving pattern's envelope rules.
func (c *channel) inbound(from string, frames [][]byte) [][]byte {
	switch c.pattern {
	case xqueue.PatternRouter:
		return append([][]byte{[]byte(from)}, frames...)
	case xqueue.PatternRequest:
		if len(frames) > 0 && len(frames[0]) == 0 {
			return frames[1:]
		}
	}
	return frames
}

func encodeEntry(from string, frames [][]byte) map[string]any {
	vals := make(map[string]any, 2+len(frames))
	vals[fieldFrom] = from
	vals[fieldCount] = len(frames)
	for i, f := range frames {
		// raw bytes, binary safe
		vals[fieldFrame+strconv.Itoa(i)] = f
	}
	return vals
}

func decodeEntry(vals map[string]any) (string, [][]byte, error) {
	from := asString(vals[fieldFrom])
	if from == "" {
		return "", nil, errors.New("redisstream: entry without sender")
	}
	n, ok := toInt64(vals[fieldCount])
	// Besides the frames an entry carries only the sender and the count.
	if !ok || n < 0 || n > int64(len(vals)-2) {
		return "", nil, fmt.Errorf("redisstream: bad frame count %v", vals[fieldCount])
	}
	frames := make([][]byte, n)
	for i := range frames {
		v, ok := vals[fieldFrame+strconv.Itoa(i)]
		if !ok {
			return "", nil, fmt.Errorf("redisstream: missing frame %d", i)
		}
		frames[i] = []byte(asString(v))
	}
	return from, frames, nil
}

// Helper functions for type conversion

func asString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case []byte:
		return string(s)
	default:
		return fmt.Sprintf("%v", s)
	}
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		return i, err == nil
	case []byte:
		return toInt64(string(n))
	}
	return 0, false
}
