// Package birdeye is an HTTP market-data client for the Birdeye public API.
package birdeye

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"solana-signal-engine/internal/domain"
	"solana-signal-engine/internal/observability"
	"solana-signal-engine/internal/provider"
)

// Default configuration values.
const (
	DefaultBaseURL     = "https://public-api.birdeye.so"
	DefaultTimeout     = 10 * time.Second
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 500 * time.Millisecond
	DefaultMaxDelay    = 5 * time.Second
	DefaultBackoffMult = 2.0
)

// errNoData marks a well-formed response that carries no data.
var errNoData = errors.New("no data")

// Client implements provider.MarketData over HTTP.
type Client struct {
	baseURL     string
	apiKey      string
	client      *http.Client
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
}

// Compile-time interface check.
var _ provider.MarketData = (*Client)(nil)

// ClientOption configures Client.
type ClientOption func(*Client)

// WithBaseURL overrides the API base URL.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		c.baseURL = u
	}
}

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) ClientOption {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *Client) {
		c.retryDelay = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.client = client
	}
}

// NewClient creates a market-data client authenticated with apiKey.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:     DefaultBaseURL,
		apiKey:      apiKey,
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

// envelope is the common response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data"`
}

// get performs a GET with retries and exponential backoff and decodes data into result.
// Returns errNoData when the API reports no data for the request.
func (c *Client) get(ctx context.Context, method, path string, query url.Values, result interface{}) (err error) {
	start := time.Now()
	defer func() {
		if errors.Is(err, errNoData) {
			observability.RecordProviderCall("birdeye", method, time.Since(start).Seconds(), nil)
			return
		}
		observability.RecordProviderCall("birdeye", method, time.Since(start).Seconds(), err)
	}()

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("x-chain", "solana")
		if c.apiKey != "" {
			req.Header.Set("X-API-KEY", c.apiKey)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			lastErr = fmt.Errorf("rate limited (429)")
			continue
		case resp.StatusCode >= 500:
			lastErr = fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(body))
			continue
		case resp.StatusCode == http.StatusNotFound:
			return errNoData
		case resp.StatusCode != http.StatusOK:
			// other 4xx are not retried
			return fmt.Errorf("%s: status %d: %s", method, resp.StatusCode, truncate(body))
		}

		var env envelope
		if err := json.Unmarshal(body, &env); err != nil {
			lastErr = fmt.Errorf("unmarshal response: %w", err)
			continue
		}
		if !env.Success || len(env.Data) == 0 || string(env.Data) == "null" {
			return errNoData
		}
		if result != nil {
			if err := json.Unmarshal(env.Data, result); err != nil {
				return fmt.Errorf("unmarshal data: %w", err)
			}
		}
		return nil
	}

	return fmt.Errorf("%w: %s: max retries exceeded: %v", domain.ErrTransientProvider, method, lastErr)
}

func truncate(b []byte) string {
	const max = 256
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}

// emptyOnNoData maps errNoData to a nil error.
func emptyOnNoData(err error) error {
	if errors.Is(err, errNoData) {
		return nil
	}
	return err
}
