package pricing

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestQuoteCacheFreshness(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	cache := NewQuoteCache(TTLTable{KindCrypto: time.Minute}, WithClock(func() time.Time { return now }))
	key := CacheKey{Kind: KindCrypto, Symbol: "BTC"}

	_, ok := cache.Get(key, false)
	require.False(t, ok, "empty cache must miss")

	cache.Set(key, decimal.NewFromInt(100))

	got, ok := cache.Get(key, false)
	require.True(t, ok)
	require.True(t, got.Equal(decimal.NewFromInt(100)))

	now = now.Add(59 * time.Second)
	_, ok = cache.Get(key, false)
	require.True(t, ok, "entry within TTL must stay fresh")

	now = now.Add(time.Second)
	_, ok = cache.Get(key, false)
	require.False(t, ok, "entry at TTL boundary is stale")

	got, ok = cache.Get(key, true)
	require.True(t, ok, "stale read must still see the entry")
	require.True(t, got.Equal(decimal.NewFromInt(100)))
}

func TestQuoteCacheZeroTTLNeverFresh(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	cache := NewQuoteCache(TTLTable{KindEquityDomestic: 0}, WithClock(func() time.Time { return now }))
	key := CacheKey{Kind: KindEquityDomestic, Symbol: "005930"}

	cache.Set(key, decimal.NewFromInt(70000))

	_, ok := cache.Get(key, false)
	require.False(t, ok, "zero TTL entries must never serve as fresh")

	got, ok := cache.Get(key, true)
	require.True(t, ok)
	require.True(t, got.Equal(decimal.NewFromInt(70000)))
}

func TestQuoteCacheSetReplaces(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	cache := NewQuoteCache(TTLTable{KindFX: time.Minute}, WithClock(func() time.Time { return now }))
	key := CacheKey{Kind: KindFX, Symbol: FXSymbol}

	cache.Set(key, decimal.NewFromInt(1300))
	now = now.Add(50 * time.Second)
	cache.Set(key, decimal.NewFromInt(1310))

	age, ok := cache.Age(key)
	require.True(t, ok)
	require.Equal(t, time.Duration(0), age, "replacement must reset capture time")

	got, ok := cache.Get(key, false)
	require.True(t, ok)
	require.True(t, got.Equal(decimal.NewFromInt(1310)))
}

func TestQuoteCacheRevalidateAsync(t *testing.T) {
	cache := NewQuoteCache(TTLTable{KindCrypto: time.Minute})
	key := CacheKey{Kind: KindCrypto, Symbol: "BTC"}
	cache.Set(key, decimal.NewFromInt(100))

	fetched := make(chan struct{})
	cache.RevalidateAsync(key, func() (decimal.Decimal, error) {
		defer close(fetched)
		return decimal.NewFromInt(120), nil
	})

	select {
	case <-fetched:
	case <-time.After(2 * time.Second):
		t.Fatal("background refresh never ran")
	}

	require.Eventually(t, func() bool {
		got, ok := cache.Get(key, false)
		return ok && got.Equal(decimal.NewFromInt(120))
	}, 2*time.Second, 10*time.Millisecond)
}

func TestQuoteCacheRevalidateAsyncKeepsStaleOnFailure(t *testing.T) {
	cache := NewQuoteCache(TTLTable{KindCrypto: 0})
	key := CacheKey{Kind: KindCrypto, Symbol: "BTC"}
	cache.Set(key, decimal.NewFromInt(100))

	done := make(chan struct{})
	cache.RevalidateAsync(key, func() (decimal.Decimal, error) {
		defer close(done)
		return decimal.Decimal{}, errors.New("upstream down")
	})
	<-done

	got, ok := cache.Get(key, true)
	require.True(t, ok)
	require.True(t, got.Equal(decimal.NewFromInt(100)), "failed refresh must not clobber the stale value")
}

func TestQuoteCacheConcurrentSet(t *testing.T) {
	cache := NewQuoteCache(TTLTable{KindCrypto: time.Minute})
	key := CacheKey{Kind: KindCrypto, Symbol: "BTC"}

	var wg sync.WaitGroup
	for i := 1; i <= 16; i++ {
		wg.Add(1)
		go func(v int64) {
			defer wg.Done()
			cache.Set(key, decimal.NewFromInt(v))
		}(int64(i))
	}
	wg.Wait()

	got, ok := cache.Get(key, false)
	require.True(t, ok)
	require.True(t, got.IsPositive(), "one of the writes must win")
}
