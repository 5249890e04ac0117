package registry

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"solana-signal-engine/internal/domain"
)

// Score bases per source.
const (
	NewPoolBase  = 100.0
	FlowBase     = 50.0
	TrendingBase = 60.0
)

// poolTypeBonus ranks venues for freshly created pools.
var poolTypeBonus = map[domain.PoolType]float64{
	domain.PoolTypePumpFun: 50,
	domain.PoolTypeRaydium: 30,
	domain.PoolTypeOrca:    25,
	domain.PoolTypeJupiter: 20,
	domain.PoolTypeOther:   10,
}

// ScoreNewPool scores a pool-initialization event relative to nowMs.
// Score = 100 + venue bonus + recency bonus (<5m: 30, <15m: 20, <30m: 10).
func ScoreNewPool(ev *domain.NewPoolEvent, nowMs int64) float64 {
	score := NewPoolBase
	bonus, ok := poolTypeBonus[ev.Type]
	if !ok {
		bonus = poolTypeBonus[domain.PoolTypeOther]
	}
	score += bonus

	age := time.Duration(nowMs-ev.Timestamp) * time.Millisecond
	if age < 0 {
		age = 0
	}
	switch {
	case age < 5*time.Minute:
		score += 30
	case age < 15*time.Minute:
		score += 20
	case age < 30*time.Minute:
		score += 10
	}
	return score
}

// ScoreFlow scores a net-buying event.
// Score = 50 + inflow tier + 24h volume tier + unique buyer tier.
func ScoreFlow(ev *domain.FlowEvent) float64 {
	score := FlowBase

	switch {
	case ev.NetInflowUSD > 50_000:
		score += 40
	case ev.NetInflowUSD > 20_000:
		score += 30
	case ev.NetInflowUSD > 10_000:
		score += 20
	case ev.NetInflowUSD > 0:
		score += 10
	}

	score += volumeTier(ev.Volume24hUSD)

	switch {
	case ev.UniqueBuyers > 200:
		score += 20
	case ev.UniqueBuyers > 100:
		score += 15
	case ev.UniqueBuyers > 50:
		score += 10
	}
	return score
}

// ScoreTrending scores a trending-list event.
// Score = 60 + rank tier (<=3: 30, <=10: 20, <=20: 10) + 24h volume tier + liquidity tier.
func ScoreTrending(ev *domain.TrendingEvent) float64 {
	score := TrendingBase

	switch {
	case ev.Rank <= 0:
	case ev.Rank <= 3:
		score += 30
	case ev.Rank <= 10:
		score += 20
	case ev.Rank <= 20:
		score += 10
	}

	score += volumeTier(ev.Volume24hUSD)

	switch {
	case ev.LiquidityUSD > 100_000:
		score += 10
	case ev.LiquidityUSD > 50_000:
		score += 5
	}
	return score
}

func volumeTier(volume24h float64) float64 {
	switch {
	case volume24h > 500_000:
		return 30
	case volume24h > 200_000:
		return 20
	case volume24h > 100_000:
		return 10
	}
	return 0
}

// ScoreEvent converts a discovery event into a scored candidate.
// Returns an error wrapping domain.ErrInvalidEvent for malformed events.
// Events with no timestamp are stamped with nowMs.
func ScoreEvent(ev domain.DiscoveryEvent, nowMs int64) (domain.Candidate, error) {
	if ev == nil {
		return domain.Candidate{}, fmt.Errorf("%w: nil event", domain.ErrInvalidEvent)
	}
	if ev.TokenMint() == "" {
		return domain.Candidate{}, fmt.Errorf("%w: empty mint", domain.ErrInvalidEvent)
	}

	switch e := ev.(type) {
	case *domain.NewPoolEvent:
		ts := stamp(e.Timestamp, nowMs)
		stamped := *e
		stamped.Timestamp = ts
		return domain.Candidate{
			Mint:         e.Mint,
			Pool:         e.Pool,
			Source:       domain.SourceNewPool,
			Type:         e.Type,
			DiscoveredAt: ts,
			Score:        ScoreNewPool(&stamped, nowMs),
			Metadata: map[string]string{
				"tx_signature": e.TxSignature,
				"slot":         strconv.FormatInt(e.Slot, 10),
			},
		}, nil

	case *domain.FlowEvent:
		if !finite(e.NetInflowUSD) || !finite(e.Volume24hUSD) || e.UniqueBuyers < 0 {
			return domain.Candidate{}, fmt.Errorf("%w: non-finite flow metrics for %s", domain.ErrInvalidEvent, e.Mint)
		}
		return domain.Candidate{
			Mint:         e.Mint,
			Pool:         e.Pool,
			Source:       domain.SourceFlow,
			Type:         e.Type,
			DiscoveredAt: stamp(e.Timestamp, nowMs),
			Score:        ScoreFlow(e),
			Metadata: map[string]string{
				"net_inflow_usd": formatFloat(e.NetInflowUSD),
				"volume_24h_usd": formatFloat(e.Volume24hUSD),
				"unique_buyers":  strconv.Itoa(e.UniqueBuyers),
			},
		}, nil

	case *domain.TrendingEvent:
		if !finite(e.Volume24hUSD) || !finite(e.LiquidityUSD) {
			return domain.Candidate{}, fmt.Errorf("%w: non-finite trending metrics for %s", domain.ErrInvalidEvent, e.Mint)
		}
		return domain.Candidate{
			Mint:         e.Mint,
			Pool:         e.Pool,
			Source:       domain.SourceTrending,
			Type:         e.Type,
			DiscoveredAt: stamp(e.Timestamp, nowMs),
			Score:        ScoreTrending(e),
			Metadata: map[string]string{
				"rank":           strconv.Itoa(e.Rank),
				"volume_24h_usd": formatFloat(e.Volume24hUSD),
				"liquidity_usd":  formatFloat(e.LiquidityUSD),
			},
		}, nil
	}

	return domain.Candidate{}, fmt.Errorf("%w: unsupported event type %T", domain.ErrInvalidEvent, ev)
}

func stamp(ts, nowMs int64) int64 {
	if ts <= 0 {
		return nowMs
	}
	return ts
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
