package pricing

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func newTestResolver(t *testing.T, foreign, domestic, crypto, fxSource Provider, opts ...ResolverOption) *Resolver {
	t.Helper()
	cache := NewQuoteCache(TTLTable{
		KindFX:             time.Minute,
		KindEquityForeign:  time.Minute,
		KindEquityDomestic: time.Minute,
		KindCrypto:         time.Minute,
	})
	chains := make(map[AssetClass]*Chain)
	if foreign != nil {
		chains[EquityForeign] = NewChain(KindEquityForeign, cache, foreign)
	}
	if domestic != nil {
		chains[EquityDomestic] = NewChain(KindEquityDomestic, cache, domestic)
	}
	if crypto != nil {
		chains[Crypto] = NewChain(KindCrypto, cache, crypto)
	}
	var fx *FXResolver
	if fxSource != nil {
		fx = NewFXResolver(cache, fxSource)
	}
	window, err := NewYorkWindow()
	require.NoError(t, err)
	return NewResolver(chains, fx, window, opts...)
}

func TestResolveBatchMixedPortfolio(t *testing.T) {
	primary := &stubProvider{name: "primary", fetch: fixedQuote(150)}
	domestic := &stubProvider{name: "domestic", fetch: fixedQuote(70000)}
	cryptoSource := &stubProvider{name: "crypto-source", fetch: fixedQuote(50_000_000)}
	fxSource := &stubProvider{name: "fx", fetch: fixedQuote(1300)}
	r := newTestResolver(t, primary, domestic, cryptoSource, fxSource)

	out := r.ResolveBatch(context.Background(), []Request{
		{Symbol: "AAPL", Class: EquityForeign},
		{Symbol: "AAPL", Class: EquityForeign},
		{Symbol: "005930", Class: EquityDomestic},
		{Symbol: "BTC", Class: Crypto},
	})

	require.Len(t, out, 3)

	aapl := out["AAPL"]
	require.NoError(t, aapl.Err)
	require.True(t, aapl.Result.Price.Equal(decimal.NewFromInt(195_000)))
	require.Equal(t, "primary", aapl.Result.Provider)
	require.NotNil(t, aapl.Result.Foreign)
	require.True(t, aapl.Result.Foreign.Equal(decimal.NewFromInt(150)))

	samsung := out["005930"]
	require.NoError(t, samsung.Err)
	require.True(t, samsung.Result.Price.Equal(decimal.NewFromInt(70_000)))
	require.Equal(t, "domestic", samsung.Result.Provider)

	btc := out["BTC"]
	require.NoError(t, btc.Err)
	require.True(t, btc.Result.Price.Equal(decimal.NewFromInt(50_000_000)))
	require.Equal(t, "crypto-source", btc.Result.Provider)

	require.EqualValues(t, 1, primary.calls.Load(), "duplicate symbols must share one fetch")
	require.EqualValues(t, 1, fxSource.calls.Load(), "the rate is fetched once per batch")
}

func TestResolveBatchFXFailureFailsForeignPartition(t *testing.T) {
	primary := &stubProvider{name: "primary", fetch: fixedQuote(150)}
	cryptoSource := &stubProvider{name: "crypto-source", fetch: fixedQuote(50_000_000)}
	fxSource := &stubProvider{name: "fx", fetch: failingQuote(errors.New("unreachable"))}
	r := newTestResolver(t, primary, nil, cryptoSource, fxSource)

	out := r.ResolveBatch(context.Background(), []Request{
		{Symbol: "AAPL", Class: EquityForeign},
		{Symbol: "MSFT", Class: EquityForeign},
		{Symbol: "BTC", Class: Crypto},
	})

	require.Error(t, out["AAPL"].Err)
	require.Error(t, out["MSFT"].Err)
	require.EqualValues(t, 0, primary.calls.Load(), "quote fetches are pointless without a rate")

	require.NoError(t, out["BTC"].Err, "other partitions proceed normally")
}

func TestResolveBatchManualHoldings(t *testing.T) {
	r := newTestResolver(t, nil, nil, nil, nil)

	price := decimal.NewFromInt(185_000)
	out := r.ResolveBatch(context.Background(), []Request{
		{Symbol: "GOLD", Class: Manual, ManualPrice: &price},
		{Symbol: "MYSTERY", Class: Manual},
	})

	gold := out["GOLD"]
	require.NoError(t, gold.Err)
	require.True(t, gold.Result.Price.Equal(price))
	require.Equal(t, ProviderManual, gold.Result.Provider)

	require.ErrorIs(t, out["MYSTERY"].Err, ErrManualPriceRequired)
}

func TestResolveSingleMatchesBatch(t *testing.T) {
	build := func() *Resolver {
		return newTestResolver(t,
			&stubProvider{name: "primary", fetch: fixedQuote(150)},
			nil, nil,
			&stubProvider{name: "fx", fetch: fixedQuote(1300)},
		)
	}
	req := Request{Symbol: "AAPL", Class: EquityForeign}

	single, err := build().Resolve(context.Background(), req)
	require.NoError(t, err)

	out := build().ResolveBatch(context.Background(), []Request{req})
	batch := out["AAPL"]
	require.NoError(t, batch.Err)

	require.True(t, single.Price.Equal(batch.Result.Price))
	require.Equal(t, single.Provider, batch.Result.Provider)
	require.True(t, single.Foreign.Equal(*batch.Result.Foreign))
}

func TestResolveDomesticStripsSuffix(t *testing.T) {
	domestic := &stubProvider{name: "domestic"}
	domestic.fetch = func(_ context.Context, symbol string) (decimal.Decimal, error) {
		require.Equal(t, "005930", symbol)
		return decimal.NewFromInt(70_000), nil
	}
	r := newTestResolver(t, nil, domestic, nil, nil)

	res, err := r.Resolve(context.Background(), Request{Symbol: "005930.KS", Class: EquityDomestic})
	require.NoError(t, err)
	require.True(t, res.Price.Equal(decimal.NewFromInt(70_000)))
}

func TestResolveUnknownClass(t *testing.T) {
	r := newTestResolver(t, nil, nil, nil, nil)
	_, err := r.Resolve(context.Background(), Request{Symbol: "X", Class: AssetClass("bond")})
	require.Error(t, err)
}

func TestResolveMissingChain(t *testing.T) {
	r := newTestResolver(t, nil, nil, nil, nil)
	_, err := r.Resolve(context.Background(), Request{Symbol: "BTC", Class: Crypto})
	require.Error(t, err)
}

type recordingPersistence struct {
	mu      sync.Mutex
	symbols []string
	classes []AssetClass
	prices  []decimal.Decimal
}

func (p *recordingPersistence) RecordLatest(_ context.Context, symbol string, class AssetClass, res Result) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.symbols = append(p.symbols, symbol)
	p.classes = append(p.classes, class)
	p.prices = append(p.prices, res.Price)
	return nil
}

func TestResolveRecordsThroughPersistence(t *testing.T) {
	cryptoSource := &stubProvider{name: "crypto-source", fetch: fixedQuote(50_000_000)}
	r := newTestResolver(t, nil, nil, cryptoSource, nil)

	recorder := &recordingPersistence{}
	r.SetPersistence(recorder)

	_, err := r.Resolve(context.Background(), Request{Symbol: "BTC", Class: Crypto})
	require.NoError(t, err)

	require.Equal(t, []string{"BTC"}, recorder.symbols)
	require.Equal(t, []AssetClass{Crypto}, recorder.classes)
	require.True(t, recorder.prices[0].Equal(decimal.NewFromInt(50_000_000)))
}

func TestResolvePersistenceFailureIsNonFatal(t *testing.T) {
	cryptoSource := &stubProvider{name: "crypto-source", fetch: fixedQuote(50_000_000)}
	r := newTestResolver(t, nil, nil, cryptoSource, nil)
	r.SetPersistence(failingPersistence{})

	res, err := r.Resolve(context.Background(), Request{Symbol: "BTC", Class: Crypto})
	require.NoError(t, err)
	require.True(t, res.Price.Equal(decimal.NewFromInt(50_000_000)))
}

type failingPersistence struct{}

func (failingPersistence) RecordLatest(context.Context, string, AssetClass, Result) error {
	return errors.New("db down")
}
