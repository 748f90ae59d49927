package pricing

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zeromicro/go-zero/core/logx"
	"golang.org/x/sync/singleflight"
)

// CacheKind partitions cache keys by TTL policy.
type CacheKind string

const (
	KindFX             CacheKind = "fx"
	KindEquityForeign  CacheKind = "equity_foreign"
	KindEquityDomestic CacheKind = "equity_domestic"
	KindCrypto         CacheKind = "crypto"
)

// KindFor maps an asset class to its cache kind.
func KindFor(class AssetClass) CacheKind {
	switch class {
	case EquityForeign:
		return KindEquityForeign
	case EquityDomestic:
		return KindEquityDomestic
	default:
		return KindCrypto
	}
}

// CacheKey identifies one cached quote.
type CacheKey struct {
	Kind   CacheKind
	Symbol string
}

func (k CacheKey) String() string {
	return string(k.Kind) + ":" + k.Symbol
}

// TTLTable is the per-kind freshness policy. A zero duration means "never
// serve as fresh"; the stored value stays reachable via stale reads.
type TTLTable map[CacheKind]time.Duration

type cacheEntry struct {
	value      decimal.Decimal
	capturedAt time.Time
}

// QuoteCache is the process-wide quote store. Get is a pure map lookup plus a
// clock read; it never performs I/O. Entries are replaced, never mutated.
type QuoteCache struct {
	mu      sync.RWMutex
	entries map[CacheKey]cacheEntry
	ttl     TTLTable
	now     func() time.Time

	refresh singleflight.Group
}

// CacheOption customises a QuoteCache.
type CacheOption func(*QuoteCache)

// WithClock injects the clock used for TTL decisions; tests pass a fixed or
// stepped clock to make staleness deterministic.
func WithClock(now func() time.Time) CacheOption {
	return func(c *QuoteCache) {
		if now != nil {
			c.now = now
		}
	}
}

// NewQuoteCache builds an empty cache governed by the given TTL table.
func NewQuoteCache(ttl TTLTable, opts ...CacheOption) *QuoteCache {
	c := &QuoteCache{
		entries: make(map[CacheKey]cacheEntry),
		ttl:     ttl,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TTL returns the freshness window for a cache kind.
func (c *QuoteCache) TTL(kind CacheKind) time.Duration {
	return c.ttl[kind]
}

// Get returns the cached value when present and either still fresh or
// allowStale is set. Stale reads are a failure-recovery path, not a default
// read mode.
func (c *QuoteCache) Get(key CacheKey, allowStale bool) (decimal.Decimal, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return decimal.Decimal{}, false
	}
	if allowStale {
		return entry.value, true
	}
	ttl := c.ttl[key.Kind]
	if ttl <= 0 {
		return decimal.Decimal{}, false
	}
	if c.now().Sub(entry.capturedAt) >= ttl {
		return decimal.Decimal{}, false
	}
	return entry.value, true
}

// Set stores value under key with the current timestamp, unconditionally
// replacing any prior entry. Concurrent writers to the same key race
// last-writer-wins; either write is a valid freshly-observed price.
func (c *QuoteCache) Set(key CacheKey, value decimal.Decimal) {
	entry := cacheEntry{value: value, capturedAt: c.now()}
	c.mu.Lock()
	c.entries[key] = entry
	c.mu.Unlock()
}

// Age reports how old the entry under key is.
func (c *QuoteCache) Age(key CacheKey) (time.Duration, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return 0, false
	}
	return c.now().Sub(entry.capturedAt), true
}

// RevalidateAsync kicks one background refresh for key, collapsing concurrent
// requests so at most one upstream call per key is in flight. Callers serve
// their stale value immediately; the refresh replaces the entry when it lands.
func (c *QuoteCache) RevalidateAsync(key CacheKey, fetch func() (decimal.Decimal, error)) {
	go func() {
		_, err, _ := c.refresh.Do(key.String(), func() (any, error) {
			v, err := fetch()
			if err != nil {
				return nil, err
			}
			c.Set(key, v)
			return v, nil
		})
		if err != nil {
			logx.Errorf("cache: background refresh %s failed: %v", key, err)
		}
	}()
}
