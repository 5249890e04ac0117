package guard

import (
	"context"

	"solana-signal-engine/internal/domain"
	"solana-signal-engine/internal/provider"
)

// SellSimulation fails when no reverse quote (token to base asset) exists
// for a small test amount. Any quote passes, regardless of price.
type SellSimulation struct {
	Quotes      provider.QuoteProvider
	BaseMint    string
	Amount      uint64
	SlippageBps int
}

func (c *SellSimulation) Name() string   { return domain.CheckSellSimulation }
func (c *SellSimulation) Blocking() bool { return true }

func (c *SellSimulation) Run(ctx context.Context, s *Subject) domain.GuardCheckResult {
	q, err := c.Quotes.Quote(ctx, domain.QuoteRequest{
		InputMint:   s.Mint,
		OutputMint:  c.BaseMint,
		Amount:      c.Amount,
		SlippageBps: c.SlippageBps,
	})
	if err != nil {
		return dataFailure(c.Name(), err)
	}
	if q == nil || q.OutAmount == 0 {
		return fail(c.Name(), "no sell route, probable honeypot", map[string]any{"amount": c.Amount})
	}
	return pass(c.Name(), "sell route found", map[string]any{
		"amount":           c.Amount,
		"out_amount":       q.OutAmount,
		"price_impact_pct": q.PriceImpactPct,
	})
}
