package domain

// GuardOutcome is the result class of a single guard check.
type GuardOutcome string

const (
	GuardPass    GuardOutcome = "PASS"
	GuardFail    GuardOutcome = "FAIL"
	GuardWarning GuardOutcome = "WARNING"
)

// Guard check names.
const (
	CheckLiquidity      = "liquidity_floor"
	CheckHolders        = "holder_count"
	CheckBuySellRatio   = "buyer_seller_ratio"
	CheckConcentration  = "top10_concentration"
	CheckLiquidityPull  = "liquidity_pull"
	CheckDecimals       = "decimal_standard"
	CheckSellSimulation = "sell_simulation"
	CheckFreshness      = "feed_freshness"
)

// GuardCheckResult is the immutable outcome of one guard check.
type GuardCheckResult struct {
	Name    string         `json:"name"`
	Outcome GuardOutcome   `json:"outcome"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}

// Passed reports whether the check did not fail.
func (r GuardCheckResult) Passed() bool {
	return r.Outcome != GuardFail
}
