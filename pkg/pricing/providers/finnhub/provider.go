package finnhub

import (
	"context"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"wonfolio-api/pkg/pricing"
)

// Provider adapts the Finnhub client to the pricing.Provider contract.
// Quotes are in the instrument's listing currency (USD for US equities).
type Provider struct {
	name   string
	client *Client
	hasKey bool
}

// NewProvider constructs a Finnhub price provider.
func NewProvider(name, apiKey string, opts ...Option) *Provider {
	return &Provider{
		name:   name,
		client: NewClient(apiKey, opts...),
		hasKey: apiKey != "",
	}
}

// Name implements pricing.Provider.
func (p *Provider) Name() string {
	return p.name
}

// FetchQuote implements pricing.Provider. Without an API key it fails before
// touching the network so the chain moves on immediately.
func (p *Provider) FetchQuote(ctx context.Context, symbol string) (decimal.Decimal, error) {
	if !p.hasKey {
		return decimal.Decimal{}, fmt.Errorf("%s: %w", p.name, pricing.ErrMissingCredential)
	}
	quote, err := p.client.FetchQuote(ctx, symbol)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return decimal.NewFromFloat(quote.Current), nil
}

func init() {
	pricing.RegisterProvider("finnhub", func(name string, cfg *pricing.ProviderConfig) (pricing.Provider, error) {
		opts := []Option{}
		if cfg.BaseURL != "" {
			opts = append(opts, WithBaseURL(cfg.BaseURL))
		}
		if cfg.Timeout > 0 {
			opts = append(opts, WithHTTPClient(&http.Client{Timeout: cfg.Timeout}))
		}
		return NewProvider(name, cfg.APIKey, opts...), nil
	})
}
