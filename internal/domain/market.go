package domain

// TokenOverview is a point-in-time market snapshot for a token.
type TokenOverview struct {
	Mint         string
	PriceUSD     float64
	LiquidityUSD float64
	MarketCapUSD float64
	Decimals     int
	Holders      int // distinct holder count
	Volume24hUSD float64
	UpdatedAt    int64 // Unix timestamp in milliseconds
}

// Timeframe is a candle aggregation interval.
type Timeframe string

const (
	Timeframe1m  Timeframe = "1m"
	Timeframe5m  Timeframe = "5m"
	Timeframe15m Timeframe = "15m"
	Timeframe1h  Timeframe = "1H"
)

// Milliseconds returns the timeframe length in milliseconds.
func (t Timeframe) Milliseconds() int64 {
	switch t {
	case Timeframe1m:
		return 60_000
	case Timeframe5m:
		return 300_000
	case Timeframe15m:
		return 900_000
	case Timeframe1h:
		return 3_600_000
	default:
		return 0
	}
}

// Candle is one OHLCV bar with a buy/sell volume split.
type Candle struct {
	OpenTime   int64 // Unix timestamp in milliseconds
	Open       float64
	High       float64
	Low        float64
	Close      float64
	Volume     float64 // total volume (USD)
	BuyVolume  float64 // buy-side volume (USD)
	SellVolume float64 // sell-side volume (USD)
}

// IsGreen reports whether the candle closed above its open.
func (c Candle) IsGreen() bool {
	return c.Close > c.Open
}

// Trade side constants
const (
	TradeSideBuy  = "buy"
	TradeSideSell = "sell"
)

// Trade is a single swap against the token's pools.
type Trade struct {
	Side      string  // "buy" | "sell"
	VolumeUSD float64 // trade notional
	Wallet    string  // trader wallet
	Timestamp int64   // Unix timestamp in milliseconds
}

// Holder is a token holder with its share of supply.
type Holder struct {
	Wallet  string
	Percent float64 // share of supply, 0-100
}

// LiquiditySample is pooled liquidity at a point in time.
type LiquiditySample struct {
	Mint         string
	TimestampMs  int64
	LiquidityUSD float64
}

// TrendingToken is one entry of a provider's trending list.
type TrendingToken struct {
	Mint         string
	Pool         string
	Venue        string
	Rank         int
	Volume24hUSD float64
	LiquidityUSD float64
}

// QuoteRequest asks for a swap quote between two mints.
type QuoteRequest struct {
	InputMint   string
	OutputMint  string
	Amount      uint64 // smallest units of InputMint
	SlippageBps int
}

// Quote is a swap quote.
type Quote struct {
	InputMint      string
	OutputMint     string
	InAmount       uint64
	OutAmount      uint64
	PriceImpactPct float64
}
