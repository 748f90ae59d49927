package pricing

import (
	"context"

	"github.com/shopspring/decimal"
)

// FXSymbol is the fixed cache key symbol for the settlement exchange rate.
const FXSymbol = "USDKRW"

// FXResolver resolves the USD/KRW rate through a specialised fallback chain:
// primary first, any failure (transport, malformed payload, missing rate
// field) moves on to the next provider, exhaustion falls back to a stale
// cached rate.
type FXResolver struct {
	chain *Chain
}

// NewFXResolver builds the rate chain; providers quote the rate directly and
// ignore the symbol argument beyond using it as the cache identity.
func NewFXResolver(cache *QuoteCache, providers ...Provider) *FXResolver {
	return &FXResolver{chain: NewChain(KindFX, cache, providers...)}
}

// Rate returns the current USD/KRW rate and the name of the source that
// produced it.
func (f *FXResolver) Rate(ctx context.Context) (decimal.Decimal, string, error) {
	return f.chain.Resolve(ctx, FXSymbol)
}
