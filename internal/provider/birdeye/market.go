package birdeye

import (
	"context"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"solana-signal-engine/internal/domain"
)

type overviewData struct {
	Address   string  `json:"address"`
	Decimals  int     `json:"decimals"`
	Price     float64 `json:"price"`
	Liquidity float64 `json:"liquidity"`
	MarketCap float64 `json:"marketCap"`
	MC        float64 `json:"mc"`
	Holder    int     `json:"holder"`
	V24hUSD   float64 `json:"v24hUSD"`
	UpdatedAt int64   `json:"lastTradeUnixTime"` // seconds
}

// TokenOverview returns the token snapshot, or nil when the API has none.
func (c *Client) TokenOverview(ctx context.Context, mint string) (*domain.TokenOverview, error) {
	var d overviewData
	err := c.get(ctx, "token_overview", "/defi/token_overview", url.Values{"address": {mint}}, &d)
	if err != nil {
		return nil, emptyOnNoData(err)
	}

	mcap := d.MarketCap
	if mcap == 0 {
		mcap = d.MC
	}
	return &domain.TokenOverview{
		Mint:         mint,
		PriceUSD:     d.Price,
		LiquidityUSD: d.Liquidity,
		MarketCapUSD: mcap,
		Decimals:     d.Decimals,
		Holders:      d.Holder,
		Volume24hUSD: d.V24hUSD,
		UpdatedAt:    d.UpdatedAt * 1000,
	}, nil
}

type ohlcvItem struct {
	UnixTime int64   `json:"unixTime"` // seconds
	O        float64 `json:"o"`
	H        float64 `json:"h"`
	L        float64 `json:"l"`
	C        float64 `json:"c"`
	V        float64 `json:"v"`
	VBuy     float64 `json:"vBuy"`
	VSell    float64 `json:"vSell"`
}

// Candles returns OHLCV candles with open time in [fromMs, toMs).
func (c *Client) Candles(ctx context.Context, mint string, tf domain.Timeframe, fromMs, toMs int64) ([]domain.Candle, error) {
	q := url.Values{
		"address":   {mint},
		"type":      {string(tf)},
		"time_from": {strconv.FormatInt(fromMs/1000, 10)},
		"time_to":   {strconv.FormatInt(toMs/1000, 10)},
	}

	var d struct {
		Items []ohlcvItem `json:"items"`
	}
	if err := c.get(ctx, "ohlcv", "/defi/ohlcv", q, &d); err != nil {
		return nil, emptyOnNoData(err)
	}

	candles := make([]domain.Candle, 0, len(d.Items))
	for _, it := range d.Items {
		openMs := it.UnixTime * 1000
		if openMs < fromMs || openMs >= toMs {
			continue
		}
		candles = append(candles, domain.Candle{
			OpenTime:   openMs,
			Open:       it.O,
			High:       it.H,
			Low:        it.L,
			Close:      it.C,
			Volume:     it.V,
			BuyVolume:  it.VBuy,
			SellVolume: it.VSell,
		})
	}
	sort.Slice(candles, func(i, j int) bool { return candles[i].OpenTime < candles[j].OpenTime })
	return candles, nil
}

type tradeItem struct {
	Side          string  `json:"side"`
	VolumeUSD     float64 `json:"volumeUSD"`
	Owner         string  `json:"owner"`
	BlockUnixTime int64   `json:"blockUnixTime"` // seconds
}

// tradePageSize is the API's maximum page size for token trades.
const tradePageSize = 50

// Trades returns swaps at or after sinceMs ordered by timestamp.
// Pages backwards from the newest trade until sinceMs is crossed.
func (c *Client) Trades(ctx context.Context, mint string, sinceMs int64) ([]domain.Trade, error) {
	var trades []domain.Trade

	for offset := 0; offset < 20*tradePageSize; offset += tradePageSize {
		q := url.Values{
			"address": {mint},
			"tx_type": {"swap"},
			"offset":  {strconv.Itoa(offset)},
			"limit":   {strconv.Itoa(tradePageSize)},
		}
		var d struct {
			Items   []tradeItem `json:"items"`
			HasNext bool        `json:"hasNext"`
		}
		if err := c.get(ctx, "trades", "/defi/txs/token", q, &d); err != nil {
			if err = emptyOnNoData(err); err != nil {
				return nil, err
			}
			break
		}

		crossed := false
		for _, it := range d.Items {
			ts := it.BlockUnixTime * 1000
			if ts < sinceMs {
				crossed = true
				continue
			}
			side := strings.ToLower(it.Side)
			if side != domain.TradeSideBuy && side != domain.TradeSideSell {
				continue
			}
			trades = append(trades, domain.Trade{
				Side:      side,
				VolumeUSD: it.VolumeUSD,
				Wallet:    it.Owner,
				Timestamp: ts,
			})
		}
		if crossed || !d.HasNext || len(d.Items) == 0 {
			break
		}
	}

	sort.SliceStable(trades, func(i, j int) bool { return trades[i].Timestamp < trades[j].Timestamp })
	return trades, nil
}

type holderItem struct {
	Owner      string  `json:"owner"`
	Percentage float64 `json:"percentage"`
}

// Holders returns up to limit holders ordered by share descending.
func (c *Client) Holders(ctx context.Context, mint string, limit int) ([]domain.Holder, error) {
	if limit <= 0 {
		limit = 10
	}
	q := url.Values{
		"address": {mint},
		"offset":  {"0"},
		"limit":   {strconv.Itoa(limit)},
	}

	var d struct {
		Items []holderItem `json:"items"`
	}
	if err := c.get(ctx, "holders", "/defi/v3/token/holder", q, &d); err != nil {
		return nil, emptyOnNoData(err)
	}

	holders := make([]domain.Holder, 0, len(d.Items))
	for _, it := range d.Items {
		holders = append(holders, domain.Holder{Wallet: it.Owner, Percent: it.Percentage})
	}
	sort.SliceStable(holders, func(i, j int) bool { return holders[i].Percent > holders[j].Percent })
	if len(holders) > limit {
		holders = holders[:limit]
	}
	return holders, nil
}

// LiquidityHistory is not offered by this API. Wrap the client with
// provider.WithLiquidityHistory to serve it from sampled data.
func (c *Client) LiquidityHistory(context.Context, string, int64, int64) ([]domain.LiquiditySample, error) {
	return nil, nil
}

type trendingItem struct {
	Address      string  `json:"address"`
	Rank         int     `json:"rank"`
	Volume24hUSD float64 `json:"volume24hUSD"`
	Liquidity    float64 `json:"liquidity"`
	Source       string  `json:"source"`
}

// Trending returns up to limit trending tokens ordered by rank.
func (c *Client) Trending(ctx context.Context, limit int) ([]domain.TrendingToken, error) {
	if limit <= 0 {
		limit = 20
	}
	q := url.Values{
		"sort_by":   {"rank"},
		"sort_type": {"asc"},
		"offset":    {"0"},
		"limit":     {strconv.Itoa(limit)},
	}

	var d struct {
		Tokens []trendingItem `json:"tokens"`
	}
	if err := c.get(ctx, "trending", "/defi/token_trending", q, &d); err != nil {
		return nil, emptyOnNoData(err)
	}

	tokens := make([]domain.TrendingToken, 0, len(d.Tokens))
	for _, it := range d.Tokens {
		if it.Address == "" {
			continue
		}
		tokens = append(tokens, domain.TrendingToken{
			Mint:         it.Address,
			Venue:        it.Source,
			Rank:         it.Rank,
			Volume24hUSD: it.Volume24hUSD,
			LiquidityUSD: it.Liquidity,
		})
	}
	sort.SliceStable(tokens, func(i, j int) bool { return tokens[i].Rank < tokens[j].Rank })
	return tokens, nil
}
