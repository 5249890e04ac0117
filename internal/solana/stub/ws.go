package stub

import (
	"context"
	"errors"
	"sync"

	"solana-signal-engine/internal/solana"
)

// WSClient implements solana.WSClient. Notifications written with Send are
// delivered to every subscription.
type WSClient struct {
	mu      sync.Mutex
	subs    []chan solana.LogNotification
	filters []solana.LogsFilter
	closed  bool

	// SubscribeErr, if set, is returned by SubscribeLogs.
	SubscribeErr error
}

var _ solana.WSClient = (*WSClient)(nil)

// NewWSClient creates a stub WebSocket client.
func NewWSClient() *WSClient {
	return &WSClient{}
}

// SubscribeLogs registers a subscription.
func (c *WSClient) SubscribeLogs(_ context.Context, filter solana.LogsFilter) (<-chan solana.LogNotification, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.SubscribeErr != nil {
		return nil, c.SubscribeErr
	}
	if c.closed {
		return nil, errors.New("stub: client closed")
	}
	ch := make(chan solana.LogNotification, 64)
	c.subs = append(c.subs, ch)
	c.filters = append(c.filters, filter)
	return ch, nil
}

// Send delivers n to every subscription.
func (c *WSClient) Send(n solana.LogNotification) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	for _, ch := range c.subs {
		ch <- n
	}
}

// Filters returns the filters passed to SubscribeLogs.
func (c *WSClient) Filters() []solana.LogsFilter {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]solana.LogsFilter(nil), c.filters...)
}

// Close closes every subscription channel.
func (c *WSClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	for _, ch := range c.subs {
		close(ch)
	}
	return nil
}
