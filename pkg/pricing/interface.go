package pricing

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Provider wraps one upstream data source behind a uniform contract.
//
// FetchQuote performs exactly one outbound call per invocation, bounded by the
// provider's own per-call timeout. Ordinary "no data" conditions come back as
// ErrNoQuote-wrapped errors; a missing credential comes back as
// ErrMissingCredential without a network attempt.
type Provider interface {
	Name() string
	FetchQuote(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// CloseProvider is implemented by adapters that can report the closing price
// of a specific trading day, used by snapshot previous-close scans.
type CloseProvider interface {
	FetchDailyClose(ctx context.Context, symbol string, day time.Time) (decimal.Decimal, error)
}
