package pricing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zeromicro/go-zero/core/logx"
	"golang.org/x/sync/errgroup"
)

// Resolver is the engine entry point: it owns the chain-selection table, the
// FX resolver and the snapshot policy, and exposes single, batch and snapshot
// resolution.
type Resolver struct {
	chains        map[AssetClass]*Chain
	fx            *FXResolver
	domesticClose CloseProvider
	window        MarketWindow
	refLoc        *time.Location
	now           func() time.Time
	persist       Persistence
}

// ResolverOption customises a Resolver.
type ResolverOption func(*Resolver)

// WithResolverClock injects the clock driving market-hours and reference-date
// decisions.
func WithResolverClock(now func() time.Time) ResolverOption {
	return func(r *Resolver) {
		if now != nil {
			r.now = now
		}
	}
}

// WithCloseProvider wires the adapter used for previous-close scans.
func WithCloseProvider(cp CloseProvider) ResolverOption {
	return func(r *Resolver) {
		r.domesticClose = cp
	}
}

// WithReferenceLocation sets the timezone whose calendar date anchors
// previous-close scans.
func WithReferenceLocation(loc *time.Location) ResolverOption {
	return func(r *Resolver) {
		if loc != nil {
			r.refLoc = loc
		}
	}
}

// NewResolver assembles a resolver from a per-class chain table, an FX
// resolver and the foreign market window.
func NewResolver(chains map[AssetClass]*Chain, fx *FXResolver, window MarketWindow, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		chains: chains,
		fx:     fx,
		window: window,
		refLoc: time.UTC,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SetPersistence wires an optional persistence hook; resolved prices are
// recorded best-effort after each resolution.
func (r *Resolver) SetPersistence(p Persistence) {
	r.persist = p
}

func (r *Resolver) chainFor(class AssetClass) (*Chain, error) {
	chain, ok := r.chains[class]
	if !ok || chain == nil {
		return nil, fmt.Errorf("pricing: no provider chain for asset class %q", class)
	}
	return chain, nil
}

// Resolve prices a single request in the settlement currency.
func (r *Resolver) Resolve(ctx context.Context, req Request) (*Result, error) {
	sym := req.Normalized()
	var res Result
	switch req.Class {
	case Manual:
		if req.ManualPrice == nil {
			return nil, fmt.Errorf("%s: %w", sym, ErrManualPriceRequired)
		}
		res = Result{Price: *req.ManualPrice, Provider: ProviderManual}
	case EquityDomestic, Crypto:
		chain, err := r.chainFor(req.Class)
		if err != nil {
			return nil, err
		}
		v, src, err := chain.Resolve(ctx, req.LookupSymbol())
		if err != nil {
			return nil, err
		}
		res = Result{Price: v, Provider: src}
	case EquityForeign:
		chain, err := r.chainFor(req.Class)
		if err != nil {
			return nil, err
		}
		usd, src, err := chain.Resolve(ctx, req.LookupSymbol())
		if err != nil {
			return nil, err
		}
		rate, _, err := r.fxRate(ctx)
		if err != nil {
			return nil, fmt.Errorf("%s: usd/krw rate unavailable: %w", sym, err)
		}
		res = Result{Price: usd.Mul(rate), Foreign: &usd, Provider: src}
	default:
		return nil, fmt.Errorf("pricing: unknown asset class %q", req.Class)
	}
	r.record(ctx, sym, req.Class, res)
	return &res, nil
}

func (r *Resolver) fxRate(ctx context.Context) (decimal.Decimal, string, error) {
	if r.fx == nil {
		return decimal.Decimal{}, "", errors.New("pricing: fx resolver not configured")
	}
	return r.fx.Rate(ctx)
}

// ResolveBatch prices many requests with minimal upstream traffic: foreign
// symbols are deduplicated and the FX rate is fetched once per invocation.
// All symbol resolutions fan out concurrently and the call joins on every
// one of them; a single slow or failing symbol never blocks or fails the
// others. The returned map is keyed by the normalized symbol, each entry
// carrying either a result or the failure reason.
func (r *Resolver) ResolveBatch(ctx context.Context, reqs []Request) map[string]Outcome {
	out := make(map[string]Outcome, len(reqs))
	var mu sync.Mutex
	store := func(sym string, o Outcome) {
		mu.Lock()
		out[sym] = o
		mu.Unlock()
	}

	foreign, rest := r.partition(reqs, store)

	rate, fxOK := r.batchRate(ctx, foreign, store)

	var g errgroup.Group
	if fxOK {
		for sym, req := range foreign {
			sym, req := sym, req
			g.Go(func() error {
				chain, err := r.chainFor(EquityForeign)
				if err != nil {
					store(sym, Outcome{Err: err})
					return nil
				}
				usd, src, err := chain.Resolve(ctx, req.LookupSymbol())
				if err != nil {
					store(sym, Outcome{Err: err})
					return nil
				}
				res := Result{Price: usd.Mul(rate), Foreign: &usd, Provider: src}
				r.record(ctx, sym, EquityForeign, res)
				store(sym, Outcome{Result: &res})
				return nil
			})
		}
	}
	for _, req := range rest {
		req := req
		g.Go(func() error {
			sym := req.Normalized()
			res, err := r.Resolve(ctx, req)
			if err != nil {
				store(sym, Outcome{Err: err})
				return nil
			}
			store(sym, Outcome{Result: res})
			return nil
		})
	}
	_ = g.Wait()

	r.logSummary(ctx, "batch", out)
	return out
}

// partition splits requests into the deduplicated foreign set and the rest.
// Manual holdings and malformed requests are settled inline.
func (r *Resolver) partition(reqs []Request, store func(string, Outcome)) (map[string]Request, []Request) {
	foreign := make(map[string]Request)
	seen := make(map[string]struct{})
	var rest []Request
	for _, req := range reqs {
		sym := req.Normalized()
		switch req.Class {
		case EquityForeign:
			if _, ok := foreign[sym]; !ok {
				foreign[sym] = req
			}
		case Manual:
			if req.ManualPrice == nil {
				store(sym, Outcome{Err: fmt.Errorf("%s: %w", sym, ErrManualPriceRequired)})
				continue
			}
			res := Result{Price: *req.ManualPrice, Provider: ProviderManual}
			store(sym, Outcome{Result: &res})
		case EquityDomestic, Crypto:
			key := string(req.Class) + ":" + sym
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			rest = append(rest, req)
		default:
			store(sym, Outcome{Err: fmt.Errorf("pricing: unknown asset class %q", req.Class)})
		}
	}
	return foreign, rest
}

// batchRate resolves the FX rate once for the whole batch. When it cannot be
// resolved, every foreign symbol is failed up front: a price without a rate
// is meaningless, not a partial success.
func (r *Resolver) batchRate(ctx context.Context, foreign map[string]Request, store func(string, Outcome)) (decimal.Decimal, bool) {
	if len(foreign) == 0 {
		return decimal.Decimal{}, false
	}
	rate, _, err := r.fxRate(ctx)
	if err != nil {
		logx.WithContext(ctx).Errorf("pricing: usd/krw rate unavailable, failing foreign partition: %v", err)
		for sym := range foreign {
			store(sym, Outcome{Err: fmt.Errorf("%s: usd/krw rate unavailable: %w", sym, err)})
		}
		return decimal.Decimal{}, false
	}
	return rate, true
}

func (r *Resolver) record(ctx context.Context, symbol string, class AssetClass, res Result) {
	if r.persist == nil {
		return
	}
	if err := r.persist.RecordLatest(ctx, symbol, class, res); err != nil {
		logx.WithContext(ctx).Errorf("pricing: persist latest %s: %v", symbol, err)
	}
}

func (r *Resolver) logSummary(ctx context.Context, mode string, out map[string]Outcome) {
	counts := make(map[string]int)
	failed := 0
	for _, o := range out {
		if o.Err != nil {
			failed++
			continue
		}
		counts[o.Result.Provider]++
	}
	logx.WithContext(ctx).Infof("pricing: %s resolution completed, sources=%v failed=%d", mode, counts, failed)
}
