// Package jupiter fetches swap quotes from the Jupiter aggregator.
package jupiter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"solana-signal-engine/internal/domain"
	"solana-signal-engine/internal/observability"
	"solana-signal-engine/internal/provider"
)

// Default configuration values.
const (
	DefaultBaseURL     = "https://quote-api.jup.ag"
	DefaultTimeout     = 8 * time.Second
	DefaultMaxRetries  = 2
	DefaultRetryDelay  = 300 * time.Millisecond
	DefaultMaxDelay    = 3 * time.Second
	DefaultBackoffMult = 2.0
)

// Client implements provider.QuoteProvider.
type Client struct {
	baseURL     string
	client      *http.Client
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
}

var _ provider.QuoteProvider = (*Client)(nil)

// ClientOption configures Client.
type ClientOption func(*Client)

// WithBaseURL overrides the aggregator base URL.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.client.Timeout = d }
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) ClientOption {
	return func(c *Client) { c.maxRetries = n }
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *Client) { c.retryDelay = d }
}

// NewClient creates a quote client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL:     DefaultBaseURL,
		client:      &http.Client{Timeout: DefaultTimeout},
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// quoteResponse mirrors the fields of /v6/quote this client reads.
type quoteResponse struct {
	InputMint      string          `json:"inputMint"`
	OutputMint     string          `json:"outputMint"`
	InAmount       string          `json:"inAmount"`
	OutAmount      string          `json:"outAmount"`
	PriceImpactPct json.RawMessage `json:"priceImpactPct"` // string or number
	Error          string          `json:"error,omitempty"`
}

// errNoRoute is returned by fetch when the aggregator has no route.
var errNoRoute = errors.New("no route")

// Quote returns a swap quote, or nil when no route exists.
func (c *Client) Quote(ctx context.Context, req domain.QuoteRequest) (q *domain.Quote, err error) {
	start := time.Now()
	defer func() {
		observability.RecordProviderCall("jupiter", "quote", time.Since(start).Seconds(), err)
	}()

	if req.InputMint == "" || req.OutputMint == "" || req.Amount == 0 {
		return nil, fmt.Errorf("%w: quote request needs both mints and a positive amount", domain.ErrValidationFailure)
	}

	v := url.Values{}
	v.Set("inputMint", req.InputMint)
	v.Set("outputMint", req.OutputMint)
	v.Set("amount", strconv.FormatUint(req.Amount, 10))
	v.Set("slippageBps", strconv.Itoa(req.SlippageBps))
	v.Set("onlyDirectRoutes", "false")
	endpoint := c.baseURL + "/v6/quote?" + v.Encode()

	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		resp, err := c.fetch(ctx, endpoint)
		switch {
		case errors.Is(err, errNoRoute):
			return nil, nil
		case err != nil:
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}
		return toQuote(resp)
	}

	return nil, fmt.Errorf("%w: jupiter quote: max retries exceeded: %v", domain.ErrTransientProvider, lastErr)
}

func (c *Client) fetch(ctx context.Context, endpoint string) (*quoteResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	// 400 with a route error means the pair is not tradable.
	if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusNotFound {
		return nil, errNoRoute
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("jupiter quote status %d", resp.StatusCode)
	}

	var out quoteResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("unmarshal quote: %w", err)
	}
	if out.Error != "" {
		return nil, errNoRoute
	}
	return &out, nil
}

func toQuote(r *quoteResponse) (*domain.Quote, error) {
	if r.OutAmount == "" {
		return nil, nil
	}
	in, err := strconv.ParseUint(r.InAmount, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse inAmount %q: %w", r.InAmount, err)
	}
	out, err := strconv.ParseUint(r.OutAmount, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse outAmount %q: %w", r.OutAmount, err)
	}
	if out == 0 {
		return nil, nil
	}
	return &domain.Quote{
		InputMint:      r.InputMint,
		OutputMint:     r.OutputMint,
		InAmount:       in,
		OutAmount:      out,
		PriceImpactPct: parseImpact(r.PriceImpactPct),
	}, nil
}

func parseImpact(raw json.RawMessage) float64 {
	if len(raw) == 0 {
		return 0
	}
	s := strings.Trim(string(raw), `"`)
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}
