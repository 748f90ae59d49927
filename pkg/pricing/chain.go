package pricing

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/zeromicro/go-zero/core/logx"
	"golang.org/x/sync/singleflight"
)

// Chain tries an ordered list of providers until one succeeds. Order encodes
// priority and is preserved for the chain's lifetime; adapters are never
// raced, because speculative parallel calls would burn rate-limited quota.
type Chain struct {
	kind      CacheKind
	cache     *QuoteCache
	providers []Provider

	group singleflight.Group
}

// NewChain builds a fallback chain whose successful fetches are written
// through to cache under the given kind.
func NewChain(kind CacheKind, cache *QuoteCache, providers ...Provider) *Chain {
	return &Chain{kind: kind, cache: cache, providers: providers}
}

type fetched struct {
	value    decimal.Decimal
	provider string
}

// Resolve returns the first successful quote for symbol along with the name
// of the adapter that produced it.
//
// A fresh cache hit short-circuits the walk and reports provider "cache".
// Concurrent resolutions of the same key share a single upstream walk, so
// duplicate in-flight requests cost one network call. When every adapter
// fails, a stale cache entry (any age) is served as last resort; only when
// that too is absent does the ChainExhaustedError surface.
func (c *Chain) Resolve(ctx context.Context, symbol string) (decimal.Decimal, string, error) {
	key := CacheKey{Kind: c.kind, Symbol: symbol}
	if v, ok := c.cache.Get(key, false); ok {
		return v, ProviderCache, nil
	}

	res, err, _ := c.group.Do(key.String(), func() (any, error) {
		return c.walk(ctx, symbol, key)
	})
	if err == nil {
		f := res.(fetched)
		return f.value, f.provider, nil
	}

	var exhausted *ChainExhaustedError
	if errors.As(err, &exhausted) {
		if v, ok := c.cache.Get(key, true); ok {
			logx.WithContext(ctx).Infof("pricing: all sources failed for %s, serving stale cache entry", symbol)
			return v, ProviderCache, nil
		}
	}
	return decimal.Decimal{}, "", err
}

func (c *Chain) walk(ctx context.Context, symbol string, key CacheKey) (any, error) {
	causes := make([]ChainCause, 0, len(c.providers))
	for _, p := range c.providers {
		v, err := p.FetchQuote(ctx, symbol)
		if err == nil && !v.IsPositive() {
			// A literal zero quote is a no-data sentinel, not a price.
			err = fmt.Errorf("%s: zero quote for %s: %w", p.Name(), symbol, ErrNoQuote)
		}
		if err != nil {
			causes = append(causes, ChainCause{Provider: p.Name(), Err: err})
			logx.WithContext(ctx).Infof("pricing: %s failed for %s, falling through: %v", p.Name(), symbol, err)
			continue
		}
		c.cache.Set(key, v)
		return fetched{value: v, provider: p.Name()}, nil
	}
	return nil, &ChainExhaustedError{Symbol: symbol, Causes: causes}
}
