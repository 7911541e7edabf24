package xqueue

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"
)

// ErrAssignmentExpired is returned by middleware that refuses to work on an
// assignment whose ack timeout has already elapsed.
var ErrAssignmentExpired = errors.New("xqueue: assignment expired")

// RetryConfig controls handler retries within one assignment.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts including the first execution.
	MaxAttempts int
	// Backoff computes the base wait before the next attempt.
	Backoff func(attempt int) time.Duration
	// RetryIf, when provided, returns true if the error should be retried.
	// If nil, all errors are retried (bounded by MaxAttempts).
	RetryIf func(err error) bool
	// Jitter adds up to [0, Jitter] random delay to the base backoff.
	Jitter time.Duration
}

// RetryMiddleware retries a failing handler while the assignment is still
// live. A retry whose backoff would end past the message deadline is not
// attempted, since the broker will hand the work out again anyway.
func RetryMiddleware(cfg RetryConfig) Middleware {
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	shouldRetry := cfg.RetryIf
	if shouldRetry == nil {
		shouldRetry = func(error) bool { return true }
	}
	return func(next Handler) Handler {
		return func(ctx context.Context, msg *Message) error {
			var lastErr error
			for i := 1; i <= attempts; i++ {
				lastErr = next(ctx, msg)
				if lastErr == nil {
					return nil
				}
				if ctx.Err() != nil || i == attempts || !shouldRetry(lastErr) {
					return lastErr
				}
				var wait time.Duration
				if cfg.Backoff != nil {
					wait = cfg.Backoff(i)
				}
				if cfg.Jitter > 0 {
					wait += time.Duration(rand.Int63n(int64(cfg.Jitter)))
				}
				if dl := msg.Deadline(); !dl.IsZero() && now(ctx).Add(wait).After(dl) {
					return lastErr
				}
				if wait > 0 {
					select {
					case <-ctx.Done():
						return lastErr
					case <-time.After(wait):
					}
				}
			}
			return lastErr
		}
	}
}

// TimeoutMiddleware bounds handler time by d and by the message deadline,
// whichever comes first. A non-positive d leaves only the deadline bound.
func TimeoutMiddleware(d time.Duration) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, msg *Message) error {
			limit := d
			if dl := msg.Deadline(); !dl.IsZero() {
				left := dl.Sub(now(ctx))
				if left <= 0 {
					return ErrAssignmentExpired
				}
				if limit <= 0 || left < limit {
					limit = left
				}
			}
			if limit <= 0 {
				return next(ctx, msg)
			}

			tctx, cancel := context.WithTimeout(ctx, limit)
			defer cancel()

			errCh := make(chan error, 1)
			go func() {
				defer func() {
					if r := recover(); r != nil {
						errCh <- fmt.Errorf("panic recovered: %v", r)
					}
				}()
				errCh <- next(tctx, msg)
			}()

			select {
			case <-tctx.Done():
				return tctx.Err()
			case err := <-errCh:
				return err
			}
		}
	}
}

// ExpiryGuardMiddleware skips the handler when the assignment expired while
// it was waiting, e.g. behind a slow predecessor in the same worker.
func ExpiryGuardMiddleware() Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, msg *Message) error {
			if IsExpired(msg, now(ctx)) {
				return ErrAssignmentExpired
			}
			return next(ctx, msg)
		}
	}
}

// RecoveryMiddleware converts handler panics into errors.
func RecoveryMiddleware() Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, msg *Message) (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("panic recovered: %v", r)
				}
			}()
			return next(ctx, msg)
		}
	}
}

// Chain composes middlewares around a handler in order.
func Chain(h Handler, mws ...Middleware) Handler {
	wrapped := h
	// Apply in reverse so that first middleware wraps last.
	for i := len(mws) - 1; i >= 0; i-- {
		if mws[i] == nil {
			continue
		}
		wrapped = mws[i](wrapped)
	}
	return wrapped
}

func now(ctx context.Context) time.Time {
	if c, ok := ClockFromContext(ctx); ok {
		return c.Now()
	}
	return time.Now()
}
