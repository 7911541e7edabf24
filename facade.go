package xqueue

import (
	"sync"
)

var (
	defaultClient   *Client
	defaultClientMu sync.RWMutex
)

// Default returns the process-wide Client installed by SetDefault or an
// adapter's Use function.
func Default() (*Client, bool) {
	defaultClientMu.RLock()
	defer defaultClientMu.RUnlock()
	return defaultClient, defaultClient != nil
}

// SetDefault replaces the process-wide default Client.
func SetDefault(c *Client) {
	if c == nil {
		panic("xqueue: SetDefault called with nil Client")
	}
	defaultClientMu.Lock()
	defaultClient = c
	defaultClientMu.Unlock()
}

// NewProducer creates a producer on the default client.
func NewProducer() (*Producer, error) {
	c, ok := Default()
	if !ok {
		return nil, ErrDefaultClientNotInitialized
	}
	return c.NewProducer(), nil
}

// NewConsumer creates a consumer on the default client.
func NewConsumer() (*Consumer, error) {
	c, ok := Default()
	if !ok {
		return nil, ErrDefaultClientNotInitialized
	}
	return c.NewConsumer(), nil
}

// NewMonitor creates a monitor on the default client.
func NewMonitor() (*Monitor, error) {
	c, ok := Default()
	if !ok {
		return nil, ErrDefaultClientNotInitialized
	}
	return c.NewMonitor(), nil
}
