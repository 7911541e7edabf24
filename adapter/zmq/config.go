package zmq

import (
	"fmt"
	"time"
)

// Config for the ZeroMQ transport.
type Config struct {
	// DialRetry is the wait between reconnect attempts of dialed sockets.
	DialRetry time.Duration
	// BufferSize is the per-channel inbox capacity.
	BufferSize int
}

// Defaults returns a Config with production-safe defaults.
func Defaults() Config {
	return Config{
		DialRetry:  250 * time.Millisecond,
		BufferSize: 1024,
	}
}

// Validate checks Config for production readiness.
func (c Config) Validate() error {
	if c.DialRetry <= 0 {
		return fmt.Errorf("config: dial_retry must be > 0, got %v", c.DialRetry)
	}
	if c.BufferSize < 1 {
		return fmt.Errorf("config: buffer_size must be >= 1, got %d", c.BufferSize)
	}
	return nil
}

func (c Config) toMap() map[string]any {
	return map[string]any{
		"dial_retry":  c.DialRetry,
		"buffer_size": c.BufferSize,
	}
}

// ConfigFromMap safely converts generic map to Config with defaults.
func ConfigFromMap(m map[string]any) Config {
	c := Defaults()
	switch v := m["dial_retry"].(type) {
	case time.Duration:
		if v > 0 {
			c.DialRetry = v
		}
	case string:
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			c.DialRetry = d
		}
	}
	if v, ok := m["buffer_size"].(int); ok && v > 0 {
		c.BufferSize = v
	}
	return c
}
