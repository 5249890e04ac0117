package stub

import (
	"context"

	"solana-signal-engine/internal/domain"
	"solana-signal-engine/internal/provider"
)

// PositionRepository returns fixed figures.
type PositionRepository struct {
	Positions  []domain.Position
	Exposure   map[string]float64
	DailyPnL   float64
	Streak     int
	LastLossAt int64
	Err        error
}

var _ provider.PositionRepository = (*PositionRepository)(nil)

// OpenPositions returns configured positions filtered by sleeve.
func (r *PositionRepository) OpenPositions(_ context.Context, sleeve domain.Sleeve) ([]domain.Position, error) {
	if r.Err != nil {
		return nil, r.Err
	}
	var out []domain.Position
	for _, p := range r.Positions {
		if sleeve == "" || p.Sleeve == sleeve {
			out = append(out, p)
		}
	}
	return out, nil
}

// TokenExposure returns the configured exposure for mint.
func (r *PositionRepository) TokenExposure(_ context.Context, mint string) (float64, error) {
	if r.Err != nil {
		return 0, r.Err
	}
	return r.Exposure[mint], nil
}

// DailyRealizedPnL returns the configured daily pnl.
func (r *PositionRepository) DailyRealizedPnL(context.Context, int64) (float64, error) {
	if r.Err != nil {
		return 0, r.Err
	}
	return r.DailyPnL, nil
}

// LossStreak returns the configured streak.
func (r *PositionRepository) LossStreak(context.Context) (int, int64, error) {
	if r.Err != nil {
		return 0, 0, r.Err
	}
	return r.Streak, r.LastLossAt, nil
}
