package domain

// Signal is the action a strategy evaluation recommends.
type Signal string

const (
	SignalNone Signal = "NONE"
	SignalBuy  Signal = "BUY"
	SignalSell Signal = "SELL" // partial exit
	SignalExit Signal = "EXIT" // full exit
)

// Sleeve is one of the independent strategy profiles.
type Sleeve string

const (
	SleeveScalps   Sleeve = "SCALPS"
	SleeveMomentum Sleeve = "MOMENTUM"
	SleeveSwing    Sleeve = "SWING"
)

// Sleeves lists every sleeve in dispatch order.
var Sleeves = []Sleeve{SleeveScalps, SleeveMomentum, SleeveSwing}

// String returns the string representation of Sleeve.
func (s Sleeve) String() string {
	return string(s)
}

// IsValid checks if the sleeve is a valid value.
func (s Sleeve) IsValid() bool {
	return s == SleeveScalps || s == SleeveMomentum || s == SleeveSwing
}

// StrategyResult is the output of one entry or exit evaluation.
type StrategyResult struct {
	Mint          string         `json:"mint"`
	Signal        Signal         `json:"signal"`
	Sleeve        Sleeve         `json:"sleeve"`
	Confidence    float64        `json:"confidence"`     // [0,100]
	SuggestedSize float64        `json:"suggested_size"` // SOL for entries, token units for exits
	Reason        string         `json:"reason"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	EvaluatedAt   int64          `json:"evaluated_at"` // Unix timestamp in milliseconds
}

// IsActionable reports whether the result asks the caller to trade.
func (r StrategyResult) IsActionable() bool {
	return r.Signal != SignalNone
}
