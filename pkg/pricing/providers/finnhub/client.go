package finnhub

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const (
	defaultBaseURL     = "https://finnhub.io/api/v1"
	defaultHTTPTimeout = 10 * time.Second
)

// Client wraps the Finnhub REST quote endpoint.
type Client struct {
	baseURL    string
	apiKey     string
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

// NewClient constructs a Finnhub API client. The API key may be empty; calls
// fail fast in that case so a fallback source can take over.
func NewClient(apiKey string, opts ...Option) *Client {
	client := &Client{
		baseURL:    defaultBaseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Quote is the subset of the /quote payload the engine consumes.
type Quote struct {
	Current       float64 `json:"c"`
	PreviousClose float64 `json:"pc"`
}

// FetchQuote retrieves the latest quote for symbol.
func (c *Client) FetchQuote(ctx context.Context, symbol string) (*Quote, error) {
	endpoint := fmt.Sprintf("%s/quote?symbol=%s&token=%s", c.baseURL, url.QueryEscape(symbol), url.QueryEscape(c.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("finnhub: build request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("finnhub: quote %s: %w", symbol, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("finnhub: quote %s: unexpected status %d", symbol, resp.StatusCode)
	}
	var quote Quote
	if err := json.NewDecoder(resp.Body).Decode(&quote); err != nil {
		return nil, fmt.Errorf("finnhub: decode quote %s: %w", symbol, err)
	}
	return &quote, nil
}
