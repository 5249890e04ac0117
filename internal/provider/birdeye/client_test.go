package birdeye

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"solana-signal-engine/internal/domain"
)

func newTestClient(url string) *Client {
	return NewClient("key", WithBaseURL(url), WithRetryDelay(time.Millisecond), WithMaxRetries(2))
}

func TestClient_TokenOverview(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/defi/token_overview" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("X-API-KEY") != "key" {
			t.Errorf("missing api key header")
		}
		if r.URL.Query().Get("address") != "MintA" {
			t.Errorf("unexpected address %s", r.URL.Query().Get("address"))
		}
		w.Write([]byte(`{"success":true,"data":{"price":0.002,"liquidity":25000,"mc":50000,"decimals":6,"holder":420,"v24hUSD":90000,"lastTradeUnixTime":1700000000}}`))
	}))
	defer server.Close()

	ov, err := newTestClient(server.URL).TokenOverview(context.Background(), "MintA")
	if err != nil {
		t.Fatalf("TokenOverview: %v", err)
	}
	if ov == nil {
		t.Fatal("expected overview, got nil")
	}
	if ov.MarketCapUSD != 50000 || ov.LiquidityUSD != 25000 || ov.Decimals != 6 || ov.Holders != 420 {
		t.Errorf("unexpected overview %+v", ov)
	}
	if ov.UpdatedAt != 1700000000000 {
		t.Errorf("expected ms timestamp, got %d", ov.UpdatedAt)
	}
}

func TestClient_TokenOverview_NoData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":false,"message":"not found"}`))
	}))
	defer server.Close()

	ov, err := newTestClient(server.URL).TokenOverview(context.Background(), "MintA")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if ov != nil {
		t.Errorf("expected nil overview, got %+v", ov)
	}
}

func TestClient_RetryOn429(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"success":true,"data":{"tokens":[{"address":"B","rank":2},{"address":"A","rank":1}]}}`))
	}))
	defer server.Close()

	tokens, err := newTestClient(server.URL).Trending(context.Background(), 10)
	if err != nil {
		t.Fatalf("Trending: %v", err)
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
	if len(tokens) != 2 || tokens[0].Mint != "A" {
		t.Errorf("expected tokens ordered by rank, got %+v", tokens)
	}
}

func TestClient_MaxRetriesExceeded(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Holders(context.Background(), "MintA", 10)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, domain.ErrTransientProvider) {
		t.Errorf("expected ErrTransientProvider, got %v", err)
	}
}

func TestClient_ClientErrorNotRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	if _, err := newTestClient(server.URL).Holders(context.Background(), "MintA", 10); err == nil {
		t.Fatal("expected error")
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestClient_Candles(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("type") != "1m" || q.Get("time_from") != "1700000000" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		w.Write([]byte(`{"success":true,"data":{"items":[
			{"unixTime":1700000060,"o":2,"h":3,"l":1,"c":2.5,"v":100,"vBuy":70,"vSell":30},
			{"unixTime":1700000000,"o":1,"h":2,"l":1,"c":2,"v":50,"vBuy":20,"vSell":30},
			{"unixTime":1700000120,"o":2,"h":2,"l":2,"c":2,"v":1}
		]}}`))
	}))
	defer server.Close()

	candles, err := newTestClient(server.URL).Candles(context.Background(), "MintA", domain.Timeframe1m, 1700000000000, 1700000120000)
	if err != nil {
		t.Fatalf("Candles: %v", err)
	}
	if len(candles) != 2 {
		t.Fatalf("expected 2 candles within range, got %d", len(candles))
	}
	if candles[0].OpenTime != 1700000000000 || candles[1].BuyVolume != 70 {
		t.Errorf("unexpected candles %+v", candles)
	}
}

func TestClient_Trades(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true,"data":{"hasNext":true,"items":[
			{"side":"buy","volumeUSD":100,"owner":"w1","blockUnixTime":1700000100},
			{"side":"SELL","volumeUSD":40,"owner":"w2","blockUnixTime":1700000050},
			{"side":"buy","volumeUSD":10,"owner":"w3","blockUnixTime":1699999000}
		]}}`))
	}))
	defer server.Close()

	trades, err := newTestClient(server.URL).Trades(context.Background(), "MintA", 1700000000000)
	if err != nil {
		t.Fatalf("Trades: %v", err)
	}
	if len(trades) != 2 {
		t.Fatalf("expected 2 trades, got %d", len(trades))
	}
	if trades[0].Side != domain.TradeSideSell || trades[1].Wallet != "w1" {
		t.Errorf("unexpected trades %+v", trades)
	}
}

func TestClient_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClient("", WithBaseURL(server.URL), WithRetryDelay(time.Second))
	if _, err := client.Trending(ctx, 5); err == nil {
		t.Fatal("expected error on cancelled context")
	}
}
