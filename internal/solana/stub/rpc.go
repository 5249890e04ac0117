// Package stub provides in-memory Solana clients for tests.
package stub

import (
	"context"
	"sync"

	"solana-signal-engine/internal/solana"
)

// RPCClient implements solana.RPCClient over a map of transactions.
// Unknown signatures return nil, nil like a node that has not seen them.
type RPCClient struct {
	mu           sync.Mutex
	transactions map[string]*solana.Transaction
	calls        int

	// Err, if set, is returned by every call.
	Err error
}

var _ solana.RPCClient = (*RPCClient)(nil)

// NewRPCClient creates a new stub RPC client.
func NewRPCClient() *RPCClient {
	return &RPCClient{transactions: make(map[string]*solana.Transaction)}
}

// GetTransaction returns the stored transaction for signature.
func (c *RPCClient) GetTransaction(_ context.Context, signature string) (*solana.Transaction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.Err != nil {
		return nil, c.Err
	}
	return c.transactions[signature], nil
}

// AddTransaction stores tx under its signature.
func (c *RPCClient) AddTransaction(tx *solana.Transaction) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.transactions[tx.Signature] = tx
}

// Calls returns the number of GetTransaction calls.
func (c *RPCClient) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}
