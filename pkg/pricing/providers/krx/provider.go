package krx

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"wonfolio-api/pkg/pricing"
)

// lookbackDays is wide enough to bridge weekends and holiday clusters when
// asking for "the latest close".
const lookbackDays = 7

// Provider serves KRX closing prices, quoted directly in KRW. It also backs
// previous-close snapshot scans through FetchDailyClose.
type Provider struct {
	name   string
	client *Client
	now    func() time.Time
}

// ProviderOption customises the KRX provider.
type ProviderOption func(*Provider)

// WithClock injects the clock used to anchor the lookback range.
func WithClock(now func() time.Time) ProviderOption {
	return func(p *Provider) {
		if now != nil {
			p.now = now
		}
	}
}

// WithClientOptions passes options to the underlying client.
func WithClientOptions(options ...Option) ProviderOption {
	return func(p *Provider) {
		p.client = NewClient(options...)
	}
}

// NewProvider constructs a KRX price provider.
func NewProvider(name string, opts ...ProviderOption) *Provider {
	p := &Provider{
		name:   name,
		client: NewClient(),
		now:    time.Now,
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

// FetchQuote implements pricing.Provider. KRX has no streaming quote API, so
// the latest close stands in for a live price: one ranged request, newest row
// wins.
func (p *Provider) FetchQuote(ctx context.Context, symbol string) (decimal.Decimal, error) {
	to := p.now()
	from := to.AddDate(0, 0, -lookbackDays)
	closes, err := p.client.FetchDailyCloses(ctx, symbol, from, to)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return decimal.NewFromFloat(closes[len(closes)-1].Close), nil
}

// FetchDailyClose implements pricing.CloseProvider. A day with no trading row
// reports a no-quote failure so scans can skip it.
func (p *Provider) FetchDailyClose(ctx context.Context, symbol string, day time.Time) (decimal.Decimal, error) {
	closes, err := p.client.FetchDailyCloses(ctx, symbol, day, day)
	if err != nil {
		return decimal.Decimal{}, err
	}
	want := day.Format(dayLayout)
	for _, dc := range closes {
		if dc.Date.Format(dayLayout) == want {
			return decimal.NewFromFloat(dc.Close), nil
		}
	}
	return decimal.Decimal{}, fmt.Errorf("krx: %s on %s: %w", symbol, want, pricing.ErrNoQuote)
}

var _ pricing.CloseProvider = (*Provider)(nil)

func init() {
	pricing.RegisterProvider("krx", func(name string, cfg *pricing.ProviderConfig) (pricing.Provider, error) {
		clientOpts := []Option{}
		if cfg.BaseURL != "" {
			clientOpts = append(clientOpts, WithBaseURL(cfg.BaseURL))
		}
		if cfg.Timeout > 0 {
			clientOpts = append(clientOpts, WithHTTPClient(&http.Client{Timeout: cfg.Timeout}))
		}
		return NewProvider(name, WithClientOptions(clientOpts...)), nil
	})
}
