// Package strategy evaluates entries and exits for the three sleeves.
package strategy

import (
	"context"

	"solana-signal-engine/internal/domain"
	"solana-signal-engine/internal/provider"
)

// EntryInput is what a sleeve scores.
type EntryInput struct {
	Candidate domain.Candidate
	Overview  domain.TokenOverview
	NowMs     int64
	MD        provider.MarketData
}

// Score is the outcome of a sleeve's entry scoring.
type Score struct {
	Confidence float64
	Hits       []string       // sub-signals that fired
	Features   map[string]any // indicator values, for the result metadata
}

func (s *Score) add(name string, weight float64) {
	s.Confidence += weight
	s.Hits = append(s.Hits, name)
}

// ExitInput is what a sleeve's exit rules see.
type ExitInput struct {
	Position domain.Position
	Price    float64
	PnLPct   float64
	NowMs    int64
}

// ExitAction is a sleeve-specific exit recommendation.
type ExitAction struct {
	Signal     domain.Signal
	Size       float64
	Confidence float64
	Reason     string
}

// SleeveStrategy scores entries and applies exit rules for one sleeve.
type SleeveStrategy interface {
	Sleeve() domain.Sleeve
	// ScoreEntry fetches what it needs from in.MD and scores the candidate.
	ScoreEntry(ctx context.Context, in *EntryInput) (Score, error)
	// ExitRule returns the sleeve-specific exit that applies before the
	// take-profit ladder, if any.
	ExitRule(in *ExitInput) (ExitAction, bool)
	// LateExitRule runs after the ladder found nothing to sell.
	LateExitRule(in *ExitInput) (ExitAction, bool)
}

// NewSleeveStrategies builds the dispatch table keyed by sleeve.
func NewSleeveStrategies(cfg Config) map[domain.Sleeve]SleeveStrategy {
	return map[domain.Sleeve]SleeveStrategy{
		domain.SleeveScalps:   &Scalps{cfg: cfg.Sleeve(domain.SleeveScalps), minRatio: cfg.MinBuySellRatio},
		domain.SleeveMomentum: &Momentum{cfg: cfg.Sleeve(domain.SleeveMomentum)},
		domain.SleeveSwing:    &Swing{cfg: cfg.Sleeve(domain.SleeveSwing), minLiquidity: cfg.MinLiquidityUSD},
	}
}

// AssignSleeve picks the sleeve for a candidate at the given market cap:
// fresh pools under the Scalps ceiling go to Scalps, caps inside the
// Momentum band go to Momentum, strong flow goes to Swing, and everything
// else defaults to Scalps.
func AssignSleeve(c domain.Candidate, mcap float64, cfg Config) domain.Sleeve {
	scalps := cfg.Sleeves[domain.SleeveScalps]
	if c.Source == domain.SourceNewPool && mcap < scalps.MarketCap.MaxUSD {
		return domain.SleeveScalps
	}
	if mom, ok := cfg.Sleeves[domain.SleeveMomentum]; ok && mom.MarketCap.Contains(mcap) {
		return domain.SleeveMomentum
	}
	if c.Source == domain.SourceFlow && c.Score > cfg.SwingScoreThreshold {
		return domain.SleeveSwing
	}
	return domain.SleeveScalps
}

// SuggestedSize interpolates between the sleeve's size bounds by how far
// confidence sits above the buy threshold.
func SuggestedSize(confidence float64, sc SleeveConfig) float64 {
	t := 1.0
	if sc.BuyThreshold < 100 {
		t = (confidence - sc.BuyThreshold) / (100 - sc.BuyThreshold)
	}
	if t < 0 {
		t = 0
	}
	if t > 1 {
		t = 1
	}
	size := sc.PosSOLMin + t*(sc.PosSOLMax-sc.PosSOLMin)
	if size < sc.PosSOLMin {
		size = sc.PosSOLMin
	}
	if size > sc.PosSOLMax {
		size = sc.PosSOLMax
	}
	return size
}

// ladderSell returns the partial sell for the next unmet take-profit rung.
func ladderSell(in *ExitInput, ladder []float64) (ExitAction, bool) {
	rung := in.Position.TPLevelsHit
	if len(ladder) == 0 || rung < 0 || rung >= len(ladder) || in.PnLPct < ladder[rung] {
		return ExitAction{}, false
	}
	size := in.Position.BaseSize() / float64(len(ladder))
	if size > in.Position.Size {
		size = in.Position.Size
	}
	if size <= 0 {
		return ExitAction{}, false
	}
	return ExitAction{
		Signal:     domain.SignalSell,
		Size:       size,
		Confidence: 75,
		Reason:     takeProfitReason(rung+1, ladder[rung]),
	}, true
}
