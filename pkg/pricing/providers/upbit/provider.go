package upbit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"wonfolio-api/pkg/pricing"
)

const (
	defaultBaseURL     = "https://api.upbit.com/v1"
	defaultHTTPTimeout = 10 * time.Second
)

// Provider quotes crypto assets against KRW from the Upbit ticker endpoint.
// Prices are already in the settlement currency, so no FX conversion applies.
type Provider struct {
	name       string
	baseURL    string
	httpClient *http.Client
}

// Option configures a new Provider.
type Option func(*Provider)

// WithHTTPClient injects a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(p *Provider) {
		if hc != nil {
			p.httpClient = hc
		}
	}
}

// WithBaseURL overrides the default API root.
func WithBaseURL(url string) Option {
	return func(p *Provider) {
		if url != "" {
			p.baseURL = url
		}
	}
}

// NewProvider constructs an Upbit price provider.
func NewProvider(name string, opts ...Option) *Provider {
	p := &Provider{
		name:       name,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name implements pricing.Provider.
func (p *Provider) Name() string {
	return p.name
}

type ticker struct {
	TradePrice float64 `json:"trade_price"`
}

// FetchQuote implements pricing.Provider. The bare asset symbol is mapped to
// Upbit's KRW market pair, e.g. "BTC" becomes "KRW-BTC".
func (p *Provider) FetchQuote(ctx context.Context, symbol string) (decimal.Decimal, error) {
	market := "KRW-" + symbol
	endpoint := fmt.Sprintf("%s/ticker?markets=%s", p.baseURL, url.QueryEscape(market))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("upbit: build request: %w", err)
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("upbit: ticker %s: %w", market, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return decimal.Decimal{}, fmt.Errorf("upbit: ticker %s: unexpected status %d", market, resp.StatusCode)
	}
	var tickers []ticker
	if err := json.NewDecoder(resp.Body).Decode(&tickers); err != nil {
		return decimal.Decimal{}, fmt.Errorf("upbit: decode ticker %s: %w", market, err)
	}
	if len(tickers) == 0 {
		return decimal.Decimal{}, fmt.Errorf("upbit: %s: %w", market, pricing.ErrNoQuote)
	}
	return decimal.NewFromFloat(tickers[0].TradePrice), nil
}

func init() {
	pricing.RegisterProvider("upbit", func(name string, cfg *pricing.ProviderConfig) (pricing.Provider, error) {
		opts := []Option{}
		if cfg.BaseURL != "" {
			opts = append(opts, WithBaseURL(cfg.BaseURL))
		}
		if cfg.Timeout > 0 {
			opts = append(opts, WithHTTPClient(&http.Client{Timeout: cfg.Timeout}))
		}
		return NewProvider(name, opts...), nil
	})
}
