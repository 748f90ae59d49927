package frankfurter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"wonfolio-api/pkg/pricing"
)

const (
	defaultBaseURL     = "https://api.frankfurter.app"
	defaultHTTPTimeout = 10 * time.Second
)

// Provider quotes the USD/KRW rate from frankfurter.app, the secondary rate
// source behind er-api.
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

// NewProvider constructs a Frankfurter rate provider.
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

// FetchQuote implements pricing.Provider, ignoring the symbol argument.
func (p *Provider) FetchQuote(ctx context.Context, _ string) (decimal.Decimal, error) {
	endpoint := p.baseURL + "/latest?from=USD&to=KRW"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("frankfurter: build request: %w", err)
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("frankfurter: latest rates: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return decimal.Decimal{}, fmt.Errorf("frankfurter: latest rates: unexpected status %d", resp.StatusCode)
	}
	var payload struct {
		Rates map[string]float64 `json:"rates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return decimal.Decimal{}, fmt.Errorf("frankfurter: decode rates: %w", err)
	}
	rate, ok := payload.Rates["KRW"]
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("frankfurter: no KRW rate in response: %w", pricing.ErrMissingRateField)
	}
	return decimal.NewFromFloat(rate), nil
}

func init() {
	pricing.RegisterProvider("frankfurter", func(name string, cfg *pricing.ProviderConfig) (pricing.Provider, error) {
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
