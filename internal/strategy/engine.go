package strategy

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"solana-signal-engine/internal/domain"
	"solana-signal-engine/internal/guard"
	"solana-signal-engine/internal/observability"
	"solana-signal-engine/internal/provider"
)

// Gate is the safety gate consulted before entry.
type Gate interface {
	RunAll(ctx context.Context, mint string) *guard.Verdict
}

var _ Gate = (*guard.Gate)(nil)

// Options configures Engine.
type Options struct {
	Now    func() time.Time
	Logger zerolog.Logger
}

// Engine evaluates entries for candidates and exits for positions.
type Engine struct {
	cfg     Config
	gate    Gate
	md      provider.MarketData
	risk    *RiskGate
	sleeves map[domain.Sleeve]SleeveStrategy
	now     func() time.Time
	logger  zerolog.Logger
}

// NewEngine validates cfg and builds the engine.
func NewEngine(cfg Config, gate Gate, md provider.MarketData, repo provider.PositionRepository, opts Options) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if gate == nil || md == nil || repo == nil {
		return nil, fmt.Errorf("%w: strategy engine needs a gate, market data and a position repository", domain.ErrConfiguration)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Engine{
		cfg:     cfg,
		gate:    gate,
		md:      md,
		risk:    NewRiskGate(repo, cfg),
		sleeves: NewSleeveStrategies(cfg),
		now:     opts.Now,
		logger:  opts.Logger,
	}, nil
}

// Entry is the outcome of one entry evaluation.
type Entry struct {
	Result  domain.StrategyResult
	Guards  []domain.GuardCheckResult
	Verdict *guard.Verdict // nil if evaluation failed before the gate ran
}

// EvaluateEntry runs the gate, risk limits and sleeve scoring for c.
// It always returns a decision; failures become a None result.
func (e *Engine) EvaluateEntry(ctx context.Context, c domain.Candidate) (out Entry) {
	start := e.now()
	nowMs := start.UnixMilli()
	out.Result = domain.StrategyResult{Mint: c.Mint, Signal: domain.SignalNone, EvaluatedAt: nowMs}

	defer func() {
		if r := recover(); r != nil {
			observability.RecordEvaluationFailure(string(domain.EvaluationEntry))
			e.logger.Error().Str("mint", c.Mint).Interface("panic", r).Msg("entry evaluation panicked")
			out.Result.Signal = domain.SignalNone
			out.Result.SuggestedSize = 0
			out.Result.Confidence = 0
			out.Result.Reason = fmt.Sprintf("evaluation error: %v", r)
		}
		observability.RecordSignal(string(domain.EvaluationEntry), string(out.Result.Sleeve), string(out.Result.Signal), time.Since(start).Seconds())
	}()

	verdict := e.gate.RunAll(ctx, c.Mint)
	out.Verdict = verdict
	out.Guards = verdict.Results
	if !verdict.Accepted {
		out.Result.Reason = verdict.Reason()
		return out
	}

	ov, err := e.md.TokenOverview(ctx, c.Mint)
	if err != nil || ov == nil {
		out.Result.Reason = "no data"
		e.logDataError(c.Mint, "overview", err)
		return out
	}

	sleeve := AssignSleeve(c, ov.MarketCapUSD, e.cfg)
	sc := e.cfg.Sleeve(sleeve)
	out.Result.Sleeve = sleeve

	if !sc.MarketCap.Contains(ov.MarketCapUSD) {
		out.Result.Reason = fmt.Sprintf("market cap $%.0f outside %s band", ov.MarketCapUSD, sleeve)
		return out
	}

	if reason := e.risk.Allow(ctx, c.Mint, sleeve, start); reason != "" {
		out.Result.Reason = reason
		e.logger.Info().Str("mint", c.Mint).Str("sleeve", string(sleeve)).Str("reason", reason).Msg("entry blocked by risk limits")
		return out
	}

	score, err := e.sleeves[sleeve].ScoreEntry(ctx, &EntryInput{
		Candidate: c,
		Overview:  *ov,
		NowMs:     nowMs,
		MD:        e.md,
	})
	if err != nil {
		out.Result.Reason = "no data"
		e.logDataError(c.Mint, "sleeve scoring", err)
		return out
	}

	out.Result.Confidence = clampConfidence(score.Confidence)
	out.Result.Metadata = entryMetadata(score, ov, verdict.Warnings)
	if out.Result.Confidence < sc.BuyThreshold {
		out.Result.Reason = fmt.Sprintf("confidence %.0f below %.0f", out.Result.Confidence, sc.BuyThreshold)
		return out
	}

	out.Result.Signal = domain.SignalBuy
	out.Result.SuggestedSize = SuggestedSize(out.Result.Confidence, sc)
	out.Result.Reason = strings.Join(score.Hits, ",")
	return out
}

// EvaluateExit decides what to do with an open position.
// Missing market data forces a full exit. A cancelled ctx yields None.
func (e *Engine) EvaluateExit(ctx context.Context, p domain.Position) (res domain.StrategyResult) {
	start := e.now()
	nowMs := start.UnixMilli()
	res = domain.StrategyResult{Mint: p.Mint, Sleeve: p.Sleeve, Signal: domain.SignalNone, EvaluatedAt: nowMs}

	defer func() {
		if r := recover(); r != nil {
			observability.RecordEvaluationFailure(string(domain.EvaluationExit))
			e.logger.Error().Str("mint", p.Mint).Str("position", p.ID).Interface("panic", r).Msg("exit evaluation panicked")
			res = forcedExit(p, nowMs, fmt.Sprintf("evaluation error: %v", r))
		}
		observability.RecordSignal(string(domain.EvaluationExit), string(res.Sleeve), string(res.Signal), time.Since(start).Seconds())
	}()

	ov, err := e.md.TokenOverview(ctx, p.Mint)
	if err != nil && errors.Is(ctx.Err(), context.Canceled) {
		// cancellation is not missing data
		res.Reason = "cancelled"
		return res
	}
	if err == nil && ov != nil && p.AvgEntryPrice > 0 {
		// hard stop precedes every sleeve rule
		if pnl := p.PnLPct(ov.PriceUSD); pnl <= HardStopPct {
			res.Signal = domain.SignalExit
			res.Confidence = 100
			res.SuggestedSize = p.Size
			res.Reason = fmt.Sprintf("hard stop: pnl %.1f%%", pnl)
			return res
		}
	}
	if err != nil || ov == nil || ov.PriceUSD <= 0 {
		e.logDataError(p.Mint, "exit overview", err)
		return forcedExit(p, nowMs, "no data")
	}

	in := &ExitInput{Position: p, Price: ov.PriceUSD, PnLPct: p.PnLPct(ov.PriceUSD), NowMs: nowMs}
	res.Metadata = map[string]any{"pnl_pct": in.PnLPct, "price": in.Price}

	strat, ok := e.sleeves[p.Sleeve]
	if !ok {
		return forcedExit(p, nowMs, fmt.Sprintf("unknown sleeve %q", p.Sleeve))
	}

	if a, ok := strat.ExitRule(in); ok {
		return applyAction(res, a)
	}
	if a, ok := ladderSell(in, e.cfg.Sleeve(p.Sleeve).TakeProfitLadder); ok {
		res = applyAction(res, a)
		res.Metadata["tp_level"] = p.TPLevelsHit + 1
		return res
	}
	if a, ok := strat.LateExitRule(in); ok {
		return applyAction(res, a)
	}

	res.Reason = "hold"
	return res
}

// Sleeve returns the dispatch entry for s.
func (e *Engine) Sleeve(s domain.Sleeve) (SleeveStrategy, bool) {
	st, ok := e.sleeves[s]
	return st, ok
}

func (e *Engine) logDataError(mint, what string, err error) {
	ev := e.logger.Warn().Str("mint", mint).Str("stage", what)
	if err != nil {
		ev = ev.Err(err).Bool("transient", errors.Is(err, domain.ErrTransientProvider))
	}
	ev.Msg("market data unavailable")
}

func forcedExit(p domain.Position, nowMs int64, reason string) domain.StrategyResult {
	return domain.StrategyResult{
		Mint:          p.Mint,
		Signal:        domain.SignalExit,
		Sleeve:        p.Sleeve,
		Confidence:    100,
		SuggestedSize: p.Size,
		Reason:        reason,
		EvaluatedAt:   nowMs,
	}
}

func applyAction(res domain.StrategyResult, a ExitAction) domain.StrategyResult {
	res.Signal = a.Signal
	res.SuggestedSize = a.Size
	res.Confidence = clampConfidence(a.Confidence)
	res.Reason = a.Reason
	return res
}

func entryMetadata(s Score, ov *domain.TokenOverview, warnings []string) map[string]any {
	md := make(map[string]any, len(s.Features)+5)
	for k, v := range s.Features {
		md[k] = v
	}
	md["market_cap_usd"] = ov.MarketCapUSD
	md["liquidity_usd"] = ov.LiquidityUSD
	md["price_usd"] = ov.PriceUSD
	md["sub_signals"] = s.Hits
	if len(warnings) > 0 {
		md["guard_warnings"] = warnings
	}
	return md
}

func clampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 100 {
		return 100
	}
	return c
}
