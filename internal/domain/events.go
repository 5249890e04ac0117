package domain

// DiscoveryEvent is a transient, source-specific payload that produces or
// merges into a Candidate. Events are consumed once and never stored.
type DiscoveryEvent interface {
	// TokenMint returns the token identity the event refers to.
	TokenMint() string
	// EventSource returns the discovery source of the event.
	EventSource() Source
}

// NewPoolEvent is emitted when a pool is initialized on-chain.
type NewPoolEvent struct {
	Mint        string   // token mint address
	Pool        string   // pool / bonding-curve address
	Type        PoolType // venue
	TxSignature string   // pool-init transaction signature
	Slot        int64    // Solana slot number
	Timestamp   int64    // Unix timestamp in milliseconds
}

func (e *NewPoolEvent) TokenMint() string   { return e.Mint }
func (e *NewPoolEvent) EventSource() Source { return SourceNewPool }

// FlowEvent is emitted when a token shows strong net buying.
type FlowEvent struct {
	Mint         string
	Pool         string
	Type         PoolType
	NetInflowUSD float64 // buy volume - sell volume over the flow window
	Volume24hUSD float64
	UniqueBuyers int
	Timestamp    int64 // Unix timestamp in milliseconds
}

func (e *FlowEvent) TokenMint() string   { return e.Mint }
func (e *FlowEvent) EventSource() Source { return SourceFlow }

// TrendingEvent is emitted for tokens on the provider's trending list.
type TrendingEvent struct {
	Mint         string
	Pool         string
	Type         PoolType
	Rank         int // 1-based
	Volume24hUSD float64
	LiquidityUSD float64
	Timestamp    int64 // Unix timestamp in milliseconds
}

func (e *TrendingEvent) TokenMint() string   { return e.Mint }
func (e *TrendingEvent) EventSource() Source { return SourceTrending }
