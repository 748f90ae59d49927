package stooq

import (
	"context"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"wonfolio-api/pkg/pricing"
)

// Provider adapts the Stooq CSV client to the pricing.Provider contract.
type Provider struct {
	name   string
	client *Client
}

// NewProvider constructs a Stooq price provider.
func NewProvider(name string, opts ...Option) *Provider {
	return &Provider{name: name, client: NewClient(opts...)}
}

// Name implements pricing.Provider.
func (p *Provider) Name() string {
	return p.name
}

// FetchQuote implements pricing.Provider. Plain US tickers gain the ".us"
// market suffix stooq expects; symbols that already carry a market suffix
// pass through unchanged.
func (p *Provider) FetchQuote(ctx context.Context, symbol string) (decimal.Decimal, error) {
	sym := strings.ToLower(strings.TrimSpace(symbol))
	if !strings.Contains(sym, ".") {
		sym += ".us"
	}
	value, err := p.client.FetchClose(ctx, sym)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return decimal.NewFromFloat(value), nil
}

func init() {
	pricing.RegisterProvider("stooq", func(name string, cfg *pricing.ProviderConfig) (pricing.Provider, error) {
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
