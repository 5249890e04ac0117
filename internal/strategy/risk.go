package strategy

import (
	"context"
	"fmt"
	"time"

	"solana-signal-engine/internal/domain"
	"solana-signal-engine/internal/provider"
)

// RiskGate blocks new entries when portfolio limits are breached.
// Repository errors block entry.
type RiskGate struct {
	repo provider.PositionRepository
	cfg  Config
}

// NewRiskGate creates a risk gate over repo.
func NewRiskGate(repo provider.PositionRepository, cfg Config) *RiskGate {
	return &RiskGate{repo: repo, cfg: cfg}
}

// Allow returns "" when an entry for mint in sleeve is allowed, or the
// reason it is blocked.
func (g *RiskGate) Allow(ctx context.Context, mint string, sleeve domain.Sleeve, now time.Time) string {
	limits := g.cfg.Risk
	bankroll := g.cfg.BankrollSOL

	pnl, err := g.repo.DailyRealizedPnL(ctx, startOfDayUTC(now))
	if err != nil {
		return fmt.Sprintf("risk check unavailable: %v", err)
	}
	if dd := DrawdownPct(pnl, bankroll); dd >= limits.DailyDrawdownPct {
		return fmt.Sprintf("daily drawdown %.1f%% at limit %.1f%%", dd, limits.DailyDrawdownPct)
	}

	exposure, err := g.repo.TokenExposure(ctx, mint)
	if err != nil {
		return fmt.Sprintf("risk check unavailable: %v", err)
	}
	if pct := exposure / bankroll * 100; pct >= limits.MaxTokenExposurePct {
		return fmt.Sprintf("token exposure %.1f%% at limit %.1f%%", pct, limits.MaxTokenExposurePct)
	}

	streak, lastLossAt, err := g.repo.LossStreak(ctx)
	if err != nil {
		return fmt.Sprintf("risk check unavailable: %v", err)
	}
	if streak >= limits.LossStreakCount && now.UnixMilli()-lastLossAt < limits.LossStreakCooldown.Milliseconds() {
		return fmt.Sprintf("loss streak %d in cooldown", streak)
	}

	open, err := g.repo.OpenPositions(ctx, sleeve)
	if err != nil {
		return fmt.Sprintf("risk check unavailable: %v", err)
	}
	sc := g.cfg.Sleeves[sleeve]
	if len(open) >= sc.MaxConcurrent {
		return fmt.Sprintf("%s holds %d of %d positions", sleeve, len(open), sc.MaxConcurrent)
	}

	// the smallest allowed position must still fit in the sleeve's share
	var committed float64
	for _, p := range open {
		committed += p.CostBasisSOL
	}
	if capSOL := sc.AllocationPct / 100 * bankroll; committed+sc.PosSOLMin > capSOL {
		return fmt.Sprintf("%s allocation %.2f of %.2f SOL committed", sleeve, committed, capSOL)
	}
	return ""
}

// DrawdownPct converts realized daily pnl into a drawdown percentage of bankroll.
// Profitable days have zero drawdown.
func DrawdownPct(pnlSOL, bankrollSOL float64) float64 {
	if pnlSOL >= 0 || bankrollSOL <= 0 {
		return 0
	}
	return -pnlSOL / bankrollSOL * 100
}

func startOfDayUTC(t time.Time) int64 {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).UnixMilli()
}
