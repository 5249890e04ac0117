package stub

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-signal-engine/internal/domain"
)

func TestMarketData_RangesAndOrdering(t *testing.T) {
	ctx := context.Background()
	md := NewMarketData()
	md.SetCandles("M", domain.Timeframe1m, []domain.Candle{
		{OpenTime: 120_000}, {OpenTime: 0}, {OpenTime: 60_000},
	})
	md.SetHolders("M", []domain.Holder{{Wallet: "a", Percent: 1}, {Wallet: "b", Percent: 9}, {Wallet: "c", Percent: 5}})

	candles, err := md.Candles(ctx, "M", domain.Timeframe1m, 0, 120_000)
	require.NoError(t, err)
	require.Len(t, candles, 2)
	assert.Equal(t, int64(0), candles[0].OpenTime)

	holders, err := md.Holders(ctx, "M", 2)
	require.NoError(t, err)
	require.Len(t, holders, 2)
	assert.Equal(t, "b", holders[0].Wallet)
	assert.Equal(t, "c", holders[1].Wallet)

	ov, err := md.TokenOverview(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, ov)
	assert.Equal(t, 1, md.Calls("TokenOverview"))
}

func TestMarketData_Err(t *testing.T) {
	md := NewMarketData()
	md.Err = domain.ErrTransientProvider
	_, err := md.Trades(context.Background(), "M", 0)
	assert.True(t, errors.Is(err, domain.ErrTransientProvider))
}

func TestQuoteProvider(t *testing.T) {
	q := NewQuoteProvider()
	q.SetRate("T", 0.5)

	quote, err := q.Quote(context.Background(), domain.QuoteRequest{InputMint: "T", OutputMint: "S", Amount: 10})
	require.NoError(t, err)
	require.NotNil(t, quote)
	assert.Equal(t, uint64(5), quote.OutAmount)

	none, err := q.Quote(context.Background(), domain.QuoteRequest{InputMint: "X", OutputMint: "S", Amount: 10})
	require.NoError(t, err)
	assert.Nil(t, none)
}
