package domain

// Side of a position.
type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// Position is an open position owned by the execution collaborator.
// The strategy engine treats it as read-only input.
type Position struct {
	ID            string
	Mint          string
	Side          Side
	Size          float64 // current token units
	InitialSize   float64 // token units at entry, 0 if unknown
	AvgEntryPrice float64
	CostBasisSOL  float64 // SOL committed at entry, used for exposure limits
	HighWaterMark float64 // highest price seen since entry
	OpenedAt      int64   // Unix timestamp in milliseconds
	Sleeve        Sleeve
	TPLevelsHit   int // take-profit ladder rungs already executed
}

// PnLPct returns the unrealized pnl percentage at price.
// Returns 0 when the entry price is unknown.
func (p *Position) PnLPct(price float64) float64 {
	if p.AvgEntryPrice <= 0 {
		return 0
	}
	pnl := (price - p.AvgEntryPrice) / p.AvgEntryPrice * 100
	if p.Side == SideShort {
		return -pnl
	}
	return pnl
}

// BaseSize returns the size ladder fractions are computed against.
func (p *Position) BaseSize() float64 {
	if p.InitialSize > 0 {
		return p.InitialSize
	}
	return p.Size
}

// ClosedTrade records the realized outcome of a fully closed position.
type ClosedTrade struct {
	PositionID     string
	Mint           string
	Sleeve         Sleeve
	RealizedPnLSOL float64 // negative for a loss
	ClosedAt       int64   // Unix timestamp in milliseconds
}

// IsLoss reports whether the trade lost money.
func (t *ClosedTrade) IsLoss() bool {
	return t.RealizedPnLSOL < 0
}
