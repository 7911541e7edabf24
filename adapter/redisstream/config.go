package redisstream

import (
	"fmt"
	"time"
)

// Config for the Redis Streams frame transport.
type Config struct {
	// Connection
	Addr          string
	Username      string
	Password      string
	DB            int
	TLS           bool
	TLSServerName string

	// Prefix namespaces every key the transport creates.
	Prefix string
	// Block is the XREAD BLOCK duration of each channel reader. It also bounds
	// how long a closing channel's reader may linger.
	Block time.Duration
	// BatchSize is the XREAD COUNT.
	BatchSize int
	// BufferSize is the per-channel inbox capacity.
	BufferSize int
	// MaxLenApprox trims inbox streams with MAXLEN ~ when > 0.
	MaxLenApprox int64
}

// Defaults returns a Config with production-safe defaults.
func Defaults() Config {
	return Config{
		Addr:       "127.0.0.1:6379",
		Prefix:     "xqueue",
		Block:      500 * time.Millisecond,
		BatchSize:  128,
		BufferSize: 1024,
	}
}

// Validate checks Config for production readiness.
func (c Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("config: addr required")
	}
	if c.Prefix == "" {
		return fmt.Errorf("config: prefix required")
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("config: batch_size must be >= 1, got %d", c.BatchSize)
	}
	if c.BufferSize < 1 {
		return fmt.Errorf("config: buffer_size must be >= 1, got %d", c.BufferSize)
	}
	if c.Block <= 0 {
		return fmt.Errorf("config: block must be > 0, got %v", c.Block)
	}
	return nil
}

// toMap converts Config to generic map for transport factory.
func (c Config) toMap() map[string]any {
	return map[string]any{
		"addr":            c.Addr,
		"username":        c.Username,
		"password":        c.Password,
		"db":              c.DB,
		"tls":             c.TLS,
		"tls_server_name": c.TLSServerName,
		"prefix":          c.Prefix,
		"block":           c.Block,
		"batch_size":      c.BatchSize,
		"buffer_size":     c.BufferSize,
		"max_len_approx":  c.MaxLenApprox,
	}
}

// ConfigFromMap safely converts generic map to Config with defaults.
func ConfigFromMap(m map[string]any) Config {
	c := Defaults()

	if v, ok := m["addr"].(string); ok && v != "" {
		c.Addr = v
	}
	if v, ok := m["username"].(string); ok {
		c.Username = v
	}
	if v, ok := m["password"].(string); ok {
		c.Password = v
	}
	if v, ok := m["db"].(int); ok {
		c.DB = v
	}
	if v, ok := m["tls"].(bool); ok {
		c.TLS = v
	}
	if v, ok := m["tls_server_name"].(string); ok {
		c.TLSServerName = v
	}
	if v, ok := m["prefix"].(string); ok && v != "" {
		c.Prefix = v
	}
	switch v := m["block"].(type) {
	case time.Duration:
		if v > 0 {
			c.Block = v
		}
	case string:
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			c.Block = d
		}
	}
	if v, ok := m["batch_size"].(int); ok && v > 0 {
		c.BatchSize = v
	}
	if v, ok := m["buffer_size"].(int); ok && v > 0 {
		c.BufferSize = v
	}
	if v, ok := m["max_len_approx"].(int64); ok && v > 0 {
		c.MaxLenApprox = v
	}

	return c
}
