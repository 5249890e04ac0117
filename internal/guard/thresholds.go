package guard

import (
	"fmt"
	"strings"
	"time"

	"solana-signal-engine/internal/domain"
)

// Defaults for window sizes and the sell simulation.
const (
	DefaultRatioLookback   = 10 * time.Minute
	DefaultPullLookback    = 10 * time.Minute
	DefaultSellTestAmount  = 1_000
	DefaultSellSlippageBps = 1_000
	DefaultHolderLimit     = 10

	// WrappedSOLMint is the base asset of the sell simulation.
	WrappedSOLMint = "So11111111111111111111111111111111111111112"
)

// Thresholds are the guard limits.
// Limits have no defaults and must be configured; windows default when zero.
type Thresholds struct {
	MinLiquidityUSD     float64       `yaml:"min_liquidity_usd" toml:"min_liquidity_usd"`
	MinHolders          int           `yaml:"min_holders" toml:"min_holders"`
	MinBuySellRatio     float64       `yaml:"min_buy_sell_ratio" toml:"min_buy_sell_ratio"`
	MaxTop10Pct         float64       `yaml:"max_top10_pct" toml:"max_top10_pct"`
	MaxLiquidityPullPct float64       `yaml:"max_liquidity_pull_pct" toml:"max_liquidity_pull_pct"`
	MinDecimals         int           `yaml:"min_decimals" toml:"min_decimals"`
	MaxDecimals         int           `yaml:"max_decimals" toml:"max_decimals"`
	FreshnessBudget     time.Duration `yaml:"freshness_budget" toml:"freshness_budget"`

	RatioLookback   time.Duration `yaml:"ratio_lookback" toml:"ratio_lookback"`
	PullLookback    time.Duration `yaml:"pull_lookback" toml:"pull_lookback"`
	SellTestAmount  uint64        `yaml:"sell_test_amount" toml:"sell_test_amount"` // smallest token units
	SellSlippageBps int           `yaml:"sell_slippage_bps" toml:"sell_slippage_bps"`
	BaseMint        string        `yaml:"base_mint" toml:"base_mint"`
}

// Validate reports every missing or inconsistent limit.
func (t Thresholds) Validate() error {
	var problems []string
	if t.MinLiquidityUSD <= 0 {
		problems = append(problems, "min_liquidity_usd must be > 0")
	}
	if t.MinHolders <= 0 {
		problems = append(problems, "min_holders must be > 0")
	}
	if t.MinBuySellRatio <= 0 {
		problems = append(problems, "min_buy_sell_ratio must be > 0")
	}
	if t.MaxTop10Pct <= 0 || t.MaxTop10Pct > 100 {
		problems = append(problems, "max_top10_pct must be in (0,100]")
	}
	if t.MaxLiquidityPullPct <= 0 || t.MaxLiquidityPullPct > 100 {
		problems = append(problems, "max_liquidity_pull_pct must be in (0,100]")
	}
	if t.MinDecimals < 0 || t.MaxDecimals <= 0 || t.MinDecimals > t.MaxDecimals {
		problems = append(problems, "decimal bounds must satisfy 0 <= min <= max, max > 0")
	}
	if t.FreshnessBudget <= 0 {
		problems = append(problems, "freshness_budget must be > 0")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: guard: %s", domain.ErrConfiguration, strings.Join(problems, "; "))
	}
	return nil
}

func (t Thresholds) withDefaults() Thresholds {
	if t.RatioLookback <= 0 {
		t.RatioLookback = DefaultRatioLookback
	}
	if t.PullLookback <= 0 {
		t.PullLookback = DefaultPullLookback
	}
	if t.SellTestAmount == 0 {
		t.SellTestAmount = DefaultSellTestAmount
	}
	if t.SellSlippageBps <= 0 {
		t.SellSlippageBps = DefaultSellSlippageBps
	}
	if t.BaseMint == "" {
		t.BaseMint = WrappedSOLMint
	}
	return t
}
