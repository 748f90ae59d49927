package krx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"wonfolio-api/pkg/pricing"
)

const (
	defaultBaseURL     = "https://api.finance.naver.com"
	defaultHTTPTimeout = 10 * time.Second

	dayLayout = "20060102"
)

// Client fetches daily KRX candles from the Naver finance chart endpoint.
// The payload is a quasi-JSON array of arrays using single quotes; the first
// row is a header, each following row is one trading day.
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

// WithBaseURL overrides the default API root.
func WithBaseURL(url string) Option {
	return func(c *Client) {
		if url != "" {
			c.baseURL = url
		}
	}
}

// NewClient constructs a KRX daily candle client.
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

// DailyClose is one trading day's closing price.
type DailyClose struct {
	Date  time.Time
	Close float64
}

// FetchDailyCloses retrieves closes for [from, to], oldest first. Non-trading
// days simply have no row. An empty series is a no-data condition, not a
// transport failure.
func (c *Client) FetchDailyCloses(ctx context.Context, symbol string, from, to time.Time) ([]DailyClose, error) {
	endpoint := fmt.Sprintf("%s/siseJson.naver?symbol=%s&requestType=1&startTime=%s&endTime=%s&timeframe=day",
		c.baseURL, url.QueryEscape(symbol), from.Format(dayLayout), to.Format(dayLayout))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("krx: build request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("krx: daily closes %s: %w", symbol, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("krx: daily closes %s: unexpected status %d", symbol, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("krx: read daily closes %s: %w", symbol, err)
	}

	closes, err := parseRows(body)
	if err != nil {
		return nil, fmt.Errorf("krx: parse daily closes %s: %w", symbol, err)
	}
	if len(closes) == 0 {
		return nil, fmt.Errorf("krx: %s %s..%s: %w", symbol, from.Format(dayLayout), to.Format(dayLayout), pricing.ErrNoQuote)
	}
	return closes, nil
}

// parseRows normalises the single-quoted payload into JSON and extracts
// (date, close) pairs, skipping the header row.
func parseRows(body []byte) ([]DailyClose, error) {
	normalised := bytes.ReplaceAll(bytes.TrimSpace(body), []byte("'"), []byte(`"`))
	var rows [][]any
	if err := json.Unmarshal(normalised, &rows); err != nil {
		return nil, err
	}
	var out []DailyClose
	for _, row := range rows {
		// Date, open, high, low, close, volume, foreign ownership.
		if len(row) < 5 {
			continue
		}
		dateStr, ok := row[0].(string)
		if !ok {
			continue
		}
		date, err := time.Parse(dayLayout, dateStr)
		if err != nil {
			// Header row.
			continue
		}
		closeVal, ok := row[4].(float64)
		if !ok {
			continue
		}
		out = append(out, DailyClose{Date: date, Close: closeVal})
	}
	return out, nil
}
