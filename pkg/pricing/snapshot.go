package pricing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// closeScanDays bounds how far back the previous-close scan walks to skip
// weekends and holidays.
const closeScanDays = 7

// ResolveSnapshot prices requests with reporting-instant semantics instead of
// live-quote semantics. Per asset class:
//
//   - domestic equities use the previous trading day's close relative to the
//     reference date, note "previous close";
//   - foreign equities use the live quote while their market window is open
//     and the last available close otherwise, note "live" / "last close";
//   - crypto always uses the live quote (the market never closes);
//   - manual holdings pass the caller-supplied price through untouched.
//
// Only the selected fetch operation and the note differ; chain mechanics are
// those of ResolveBatch, including the once-per-batch FX rate.
func (r *Resolver) ResolveSnapshot(ctx context.Context, reqs []Request) map[string]Outcome {
	out := make(map[string]Outcome, len(reqs))
	var mu sync.Mutex
	store := func(sym string, o Outcome) {
		mu.Lock()
		out[sym] = o
		mu.Unlock()
	}

	now := r.now()
	refDate := now.In(r.refLoc)
	foreignNote := NoteLastClose
	if r.window.IsOpen(now) {
		foreignNote = NoteLive
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
				res := Result{Price: usd.Mul(rate), Foreign: &usd, Provider: src, Note: foreignNote}
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
			var res *Result
			var err error
			switch req.Class {
			case EquityDomestic:
				res, err = r.snapshotDomestic(ctx, req, refDate)
			default: // Crypto
				res, err = r.Resolve(ctx, req)
				if err == nil {
					res.Note = NoteLive
				}
			}
			if err != nil {
				store(sym, Outcome{Err: err})
				return nil
			}
			store(sym, Outcome{Result: res})
			return nil
		})
	}
	_ = g.Wait()

	r.logSummary(ctx, "snapshot", out)
	return out
}

func (r *Resolver) snapshotDomestic(ctx context.Context, req Request, refDate time.Time) (*Result, error) {
	if r.domesticClose == nil {
		return nil, errors.New("pricing: no close provider configured for domestic snapshots")
	}
	v, err := r.previousClose(ctx, req.LookupSymbol(), refDate)
	if err != nil {
		return nil, err
	}
	name := "domestic"
	if named, ok := r.domesticClose.(interface{ Name() string }); ok {
		name = named.Name()
	}
	res := Result{Price: v, Provider: name, Note: NotePreviousClose}
	r.record(ctx, req.Normalized(), EquityDomestic, res)
	return &res, nil
}

// previousClose scans backward from the day before ref, skipping dates with
// no trading record, and fails once the scan window is exhausted. Transport
// failures abort the scan; only no-data days are skipped.
func (r *Resolver) previousClose(ctx context.Context, symbol string, ref time.Time) (decimal.Decimal, error) {
	for offset := 1; offset <= closeScanDays; offset++ {
		day := ref.AddDate(0, 0, -offset)
		v, err := r.domesticClose.FetchDailyClose(ctx, symbol, day)
		if err != nil {
			if errors.Is(err, ErrNoQuote) {
				continue
			}
			return decimal.Decimal{}, err
		}
		if v.IsPositive() {
			return v, nil
		}
	}
	return decimal.Decimal{}, fmt.Errorf("%s: %w", symbol, ErrNoCloseInWindow)
}
