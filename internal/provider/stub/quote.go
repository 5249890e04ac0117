package stub

import (
	"context"
	"sync"

	"solana-signal-engine/internal/domain"
	"solana-signal-engine/internal/provider"
)

// QuoteProvider returns quotes priced at a fixed rate per input mint.
type QuoteProvider struct {
	mu sync.RWMutex

	// Rates maps input mint to output units per input unit. Missing mints have no route.
	Rates map[string]float64
	// Impact is the price impact reported on every quote.
	Impact float64
	Err    error
}

var _ provider.QuoteProvider = (*QuoteProvider)(nil)

// NewQuoteProvider creates a stub with no routes.
func NewQuoteProvider() *QuoteProvider {
	return &QuoteProvider{Rates: make(map[string]float64)}
}

// SetRate sets the output-per-input rate for inputMint.
func (q *QuoteProvider) SetRate(inputMint string, rate float64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.Rates[inputMint] = rate
}

// Quote returns a quote, or nil when no rate is configured or the output rounds to zero.
func (q *QuoteProvider) Quote(_ context.Context, req domain.QuoteRequest) (*domain.Quote, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.Err != nil {
		return nil, q.Err
	}
	rate, ok := q.Rates[req.InputMint]
	if !ok || rate <= 0 {
		return nil, nil
	}
	out := uint64(float64(req.Amount) * rate)
	if out == 0 {
		return nil, nil
	}
	return &domain.Quote{
		InputMint:      req.InputMint,
		OutputMint:     req.OutputMint,
		InAmount:       req.Amount,
		OutAmount:      out,
		PriceImpactPct: q.Impact,
	}, nil
}
