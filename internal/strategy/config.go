package strategy

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"solana-signal-engine/internal/domain"
)

// Default buy thresholds per sleeve.
const (
	DefaultScalpsBuyThreshold   = 60
	DefaultMomentumBuyThreshold = 70
	DefaultSwingBuyThreshold    = 75
)

// HardStopPct is the unrealized pnl at which every sleeve fully exits.
const HardStopPct = -100.0

// Band is an inclusive market-cap range in USD. MaxUSD 0 means unbounded.
type Band struct {
	MinUSD float64 `yaml:"min_usd" toml:"min_usd"`
	MaxUSD float64 `yaml:"max_usd" toml:"max_usd"`
}

// Contains reports whether mcap lies inside the band.
func (b Band) Contains(mcap float64) bool {
	if mcap < b.MinUSD {
		return false
	}
	return b.MaxUSD <= 0 || mcap <= b.MaxUSD
}

// SleeveConfig holds the limits of one sleeve.
type SleeveConfig struct {
	AllocationPct    float64   `yaml:"allocation_pct" toml:"allocation_pct"`
	PosSOLMin        float64   `yaml:"pos_sol_min" toml:"pos_sol_min"`
	PosSOLMax        float64   `yaml:"pos_sol_max" toml:"pos_sol_max"`
	MarketCap        Band      `yaml:"market_cap" toml:"market_cap"`
	TakeProfitLadder []float64 `yaml:"take_profit_ladder" toml:"take_profit_ladder"` // pnl % rungs, ascending
	MaxConcurrent    int       `yaml:"max_concurrent" toml:"max_concurrent"`

	BuyThreshold float64 `yaml:"buy_threshold" toml:"buy_threshold"`
	StopLossPct  float64 `yaml:"stop_loss_pct" toml:"stop_loss_pct"` // positive; 0 disables

	// Momentum
	TrailingPct float64 `yaml:"trailing_pct" toml:"trailing_pct"`

	// Scalps
	StallAfter    time.Duration `yaml:"stall_after" toml:"stall_after"`
	StallFloorPct float64       `yaml:"stall_floor_pct" toml:"stall_floor_pct"`
	EMAShort      int           `yaml:"ema_short" toml:"ema_short"`
	EMALong       int           `yaml:"ema_long" toml:"ema_long"`

	// Swing
	DecayAfter    time.Duration `yaml:"decay_after" toml:"decay_after"`
	DecayFloorPct float64       `yaml:"decay_floor_pct" toml:"decay_floor_pct"`
	DecayFraction float64       `yaml:"decay_fraction" toml:"decay_fraction"`
	SqueezeVolPct float64       `yaml:"squeeze_vol_pct" toml:"squeeze_vol_pct"`
}

// RiskLimits are the portfolio limits checked before entry.
type RiskLimits struct {
	DailyDrawdownPct    float64       `yaml:"daily_drawdown_pct" toml:"daily_drawdown_pct"`
	MaxTokenExposurePct float64       `yaml:"max_token_exposure_pct" toml:"max_token_exposure_pct"`
	LossStreakCount     int           `yaml:"loss_streak_count" toml:"loss_streak_count"`
	LossStreakCooldown  time.Duration `yaml:"loss_streak_cooldown" toml:"loss_streak_cooldown"`
}

// Config is the strategy engine configuration.
type Config struct {
	BankrollSOL         float64                        `yaml:"bankroll_sol" toml:"bankroll_sol"`
	SwingScoreThreshold float64                        `yaml:"swing_score_threshold" toml:"swing_score_threshold"`
	MinLiquidityUSD     float64                        `yaml:"-" toml:"-"` // mirrored from guard thresholds
	MinBuySellRatio     float64                        `yaml:"-" toml:"-"`
	Sleeves             map[domain.Sleeve]SleeveConfig `yaml:"sleeves" toml:"sleeves"`
	Risk                RiskLimits                     `yaml:"risk" toml:"risk"`
}

// Sleeve returns the configuration for s with optional fields defaulted.
func (c Config) Sleeve(s domain.Sleeve) SleeveConfig {
	sc := c.Sleeves[s]
	if sc.BuyThreshold <= 0 {
		switch s {
		case domain.SleeveScalps:
			sc.BuyThreshold = DefaultScalpsBuyThreshold
		case domain.SleeveMomentum:
			sc.BuyThreshold = DefaultMomentumBuyThreshold
		case domain.SleeveSwing:
			sc.BuyThreshold = DefaultSwingBuyThreshold
		}
	}
	if sc.EMAShort <= 0 {
		sc.EMAShort = 5
	}
	if sc.EMALong <= sc.EMAShort {
		sc.EMALong = 13
	}
	if sc.SqueezeVolPct <= 0 {
		sc.SqueezeVolPct = 2.0
	}
	return sc
}

// Validate reports every missing or invalid core parameter.
// Risk parameters are never defaulted.
func (c Config) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if c.BankrollSOL <= 0 {
		add("bankroll_sol must be > 0")
	}
	if c.SwingScoreThreshold <= 0 {
		add("swing_score_threshold must be > 0")
	}
	if c.MinLiquidityUSD <= 0 {
		add("min_liquidity_usd must be > 0")
	}
	if c.MinBuySellRatio <= 0 {
		add("min_buy_sell_ratio must be > 0")
	}

	var totalAlloc float64
	for _, s := range domain.Sleeves {
		sc, ok := c.Sleeves[s]
		if !ok {
			add("sleeve %s is not configured", s)
			continue
		}
		totalAlloc += sc.AllocationPct
		if sc.AllocationPct <= 0 || sc.AllocationPct > 100 {
			add("%s.allocation_pct must be in (0,100]", s)
		}
		if sc.PosSOLMin <= 0 || sc.PosSOLMax < sc.PosSOLMin {
			add("%s position size bounds must satisfy 0 < min <= max", s)
		} else if c.BankrollSOL > 0 && sc.AllocationPct > 0 && sc.AllocationPct/100*c.BankrollSOL < sc.PosSOLMin {
			add("%s.allocation_pct leaves less than pos_sol_min of bankroll", s)
		}
		if sc.MarketCap.MaxUSD > 0 && sc.MarketCap.MaxUSD < sc.MarketCap.MinUSD {
			add("%s.market_cap max below min", s)
		}
		if sc.MarketCap.MinUSD < 0 {
			add("%s.market_cap min must be >= 0", s)
		}
		if len(sc.TakeProfitLadder) == 0 {
			add("%s.take_profit_ladder is empty", s)
		} else if !sort.Float64sAreSorted(sc.TakeProfitLadder) || sc.TakeProfitLadder[0] <= 0 {
			add("%s.take_profit_ladder must be positive and ascending", s)
		}
		if sc.MaxConcurrent <= 0 {
			add("%s.max_concurrent must be > 0", s)
		}
		if sc.StopLossPct < 0 || sc.StopLossPct > 100 {
			add("%s.stop_loss_pct must be in [0,100]", s)
		}
	}
	if totalAlloc > 100 {
		add("sleeve allocations sum to %.1f%%, above 100%%", totalAlloc)
	}

	if mom, ok := c.Sleeves[domain.SleeveMomentum]; ok && mom.TrailingPct <= 0 {
		add("MOMENTUM.trailing_pct must be > 0")
	}
	if sc, ok := c.Sleeves[domain.SleeveScalps]; ok {
		if sc.StallAfter <= 0 {
			add("SCALPS.stall_after must be > 0")
		}
		if sc.MarketCap.MaxUSD <= 0 {
			add("SCALPS.market_cap.max_usd must be set")
		}
	}
	if sw, ok := c.Sleeves[domain.SleeveSwing]; ok {
		if sw.DecayAfter <= 0 {
			add("SWING.decay_after must be > 0")
		}
		if sw.DecayFraction <= 0 || sw.DecayFraction > 1 {
			add("SWING.decay_fraction must be in (0,1]")
		}
	}

	if c.Risk.DailyDrawdownPct <= 0 || c.Risk.DailyDrawdownPct > 100 {
		add("risk.daily_drawdown_pct must be in (0,100]")
	}
	if c.Risk.MaxTokenExposurePct <= 0 || c.Risk.MaxTokenExposurePct > 100 {
		add("risk.max_token_exposure_pct must be in (0,100]")
	}
	if c.Risk.LossStreakCount <= 0 {
		add("risk.loss_streak_count must be > 0")
	}
	if c.Risk.LossStreakCooldown <= 0 {
		add("risk.loss_streak_cooldown must be > 0")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: strategy: %s", domain.ErrConfiguration, strings.Join(problems, "; "))
	}
	return nil
}
