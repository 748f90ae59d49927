package stooq

import (
	"context"
	"encoding/csv"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"wonfolio-api/pkg/pricing"
)

const (
	defaultBaseURL     = "https://stooq.com"
	defaultHTTPTimeout = 10 * time.Second

	// q/l CSV layout: Symbol,Date,Time,Open,High,Low,Close,Volume.
	closeColumn = 6
)

// Client fetches last-quote CSV rows from stooq.com. The endpoint is keyless
// and serves delayed data, which makes it a natural fallback source.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures a new Client.
type Option func(*Client)

// WithHTTPClient injects a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithBaseURL overrides the default site root.
func WithBaseURL(url string) Option {
	return func(c *Client) {
		if url != "" {
			c.baseURL = url
		}
	}
}

// NewClient constructs a Stooq CSV client.
func NewClient(opts ...Option) *Client {
	client := &Client{
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// FetchClose retrieves the most recent close for a stooq-format symbol such
// as "aapl.us". A "N/D" cell means the symbol has no current data.
func (c *Client) FetchClose(ctx context.Context, symbol string) (float64, error) {
	endpoint := fmt.Sprintf("%s/q/l/?s=%s&f=sd2t2ohlcv&h&e=csv", c.baseURL, url.QueryEscape(symbol))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("stooq: build request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("stooq: quote %s: %w", symbol, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("stooq: quote %s: unexpected status %d", symbol, resp.StatusCode)
	}

	records, err := csv.NewReader(resp.Body).ReadAll()
	if err != nil {
		return 0, fmt.Errorf("stooq: parse quote %s: %w", symbol, err)
	}
	if len(records) < 2 || len(records[1]) <= closeColumn {
		return 0, fmt.Errorf("stooq: quote %s: malformed response", symbol)
	}
	raw := strings.TrimSpace(records[1][closeColumn])
	if raw == "" || strings.EqualFold(raw, "N/D") {
		return 0, fmt.Errorf("stooq: %s: %w", symbol, pricing.ErrNoQuote)
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("stooq: quote %s: bad close %q: %w", symbol, raw, err)
	}
	return value, nil
}
