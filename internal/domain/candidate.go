package domain

import "time"

// Candidate is a token+pool under consideration for entry.
// Keyed by Mint in the registry; at most one live entry per mint.
type Candidate struct {
	ID           string            // registration ID, assigned by the registry on first insert
	Mint         string            // token mint address (identity)
	Pool         string            // pool address, empty if unknown
	Source       Source            // NEW_POOL | FLOW | TRENDING
	Type         PoolType          // venue of the pool
	DiscoveredAt int64             // Unix timestamp in milliseconds
	Score        float64           // unbounded positive
	Metadata     map[string]string // free-form source attributes
}

// TTL returns the candidate's time-to-live derived from its source.
func (c *Candidate) TTL() time.Duration {
	return c.Source.TTL()
}

// ExpiresAt returns the expiry instant in milliseconds.
func (c *Candidate) ExpiresAt() int64 {
	return c.DiscoveredAt + c.TTL().Milliseconds()
}

// IsExpired reports whether nowMs is strictly past the expiry instant.
func (c *Candidate) IsExpired(nowMs int64) bool {
	return nowMs > c.ExpiresAt()
}

// Clone returns a deep copy so snapshots handed downstream never alias registry state.
func (c Candidate) Clone() Candidate {
	out := c
	if c.Metadata != nil {
		out.Metadata = make(map[string]string, len(c.Metadata))
		for k, v := range c.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}
