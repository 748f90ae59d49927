package pricespersist

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zeromicro/go-zero/core/logx"
	gocache "github.com/zeromicro/go-zero/core/stores/cache"
	"github.com/zeromicro/go-zero/core/stores/sqlx"

	cachekeys "wonfolio-api/internal/cache"
	"wonfolio-api/pkg/pricing"
)

// Service persists resolved prices to Postgres and mirrors them into Redis.
// It implements pricing.Persistence.
type Service struct {
	sqlConn sqlx.SqlConn
	cache   gocache.Cache
	ttl     cachekeys.TTLSet
}

// Config enumerates dependencies required to persist prices.
type Config struct {
	SQLConn sqlx.SqlConn
	Cache   gocache.Cache
	TTL     cachekeys.TTLSet
}

var _ pricing.Persistence = (*Service)(nil)

// NewService wires a price persistence service. Returns nil when the database
// connection is missing so callers can skip the hook entirely.
func NewService(cfg Config) *Service {
	if cfg.SQLConn == nil {
		return nil
	}
	return &Service{
		sqlConn: cfg.SQLConn,
		cache:   cfg.Cache,
		ttl:     cfg.TTL,
	}
}

// RecordLatest upserts one symbol's freshly resolved price and refreshes the
// Redis mirror. Implements pricing.Persistence.
func (s *Service) RecordLatest(ctx context.Context, symbol string, class pricing.AssetClass, res pricing.Result) error {
	if s == nil || s.sqlConn == nil || strings.TrimSpace(symbol) == "" {
		return nil
	}
	now := time.Now().UTC()
	stmt := `
INSERT INTO public.price_latest (symbol, asset_class, provider, price_krw, price_foreign, note, ts_ms, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
ON CONFLICT (symbol, asset_class) DO UPDATE SET
    provider = EXCLUDED.provider,
    price_krw = EXCLUDED.price_krw,
    price_foreign = EXCLUDED.price_foreign,
    note = EXCLUDED.note,
    ts_ms = EXCLUDED.ts_ms,
    updated_at = NOW();`
	foreign := sql.NullString{}
	if res.Foreign != nil {
		foreign = sql.NullString{String: res.Foreign.String(), Valid: true}
	}
	note := sql.NullString{}
	if res.Note != "" {
		note = sql.NullString{String: res.Note, Valid: true}
	}
	if _, err := s.sqlConn.ExecCtx(ctx, stmt,
		symbol,
		string(class),
		res.Provider,
		res.Price.String(),
		foreign,
		note,
		now.UnixMilli(),
	); err != nil {
		return err
	}
	s.cachePrice(ctx, symbol, class, res, now)
	return nil
}

func (s *Service) cachePrice(ctx context.Context, symbol string, class pricing.AssetClass, res pricing.Result, ts time.Time) {
	if s.cache == nil {
		return
	}
	ttl := cachekeys.PriceMirrorTTL(s.ttl, string(class))
	if ttl <= 0 {
		return
	}
	payload := map[string]any{
		"price":    res.Price.String(),
		"provider": res.Provider,
		"ts":       ts.UnixMilli(),
	}
	if res.Foreign != nil {
		payload["price_foreign"] = res.Foreign.String()
	}
	if res.Note != "" {
		payload["note"] = res.Note
	}
	key := cachekeys.PriceLatestByProviderKey(res.Provider, symbol)
	if err := s.cache.SetWithExpireCtx(ctx, key, payload, ttl); err != nil {
		logx.WithContext(ctx).Errorf("pricespersist: cache price key=%s err=%v", key, err)
	}
	global := cachekeys.PriceLatestKey(symbol)
	if err := s.cache.SetWithExpireCtx(ctx, global, payload, ttl); err != nil {
		logx.WithContext(ctx).Errorf("pricespersist: cache price key=%s err=%v", global, err)
	}
}

// RecordDailyTotals upserts the valuation snapshot for one reference date:
// the portfolio total plus per-symbol valued amounts.
func (s *Service) RecordDailyTotals(ctx context.Context, date string, total decimal.Decimal, perSymbol map[string]decimal.Decimal) error {
	if s == nil || s.sqlConn == nil || strings.TrimSpace(date) == "" {
		return nil
	}
	totalStmt := `
INSERT INTO public.daily_totals (snapshot_date, total_krw, created_at, updated_at)
VALUES ($1, $2, NOW(), NOW())
ON CONFLICT (snapshot_date) DO UPDATE SET
    total_krw = EXCLUDED.total_krw,
    updated_at = NOW();`
	if _, err := s.sqlConn.ExecCtx(ctx, totalStmt, date, total.String()); err != nil {
		return err
	}

	assetStmt := `
INSERT INTO public.daily_asset_totals (snapshot_date, symbol, value_krw, created_at, updated_at)
VALUES ($1, $2, $3, NOW(), NOW())
ON CONFLICT (snapshot_date, symbol) DO UPDATE SET
    value_krw = EXCLUDED.value_krw,
    updated_at = NOW();`
	for symbol, value := range perSymbol {
		if _, err := s.sqlConn.ExecCtx(ctx, assetStmt, date, symbol, value.String()); err != nil {
			return err
		}
	}
	return nil
}

// MarkSnapshotDone sets the idempotency guard for a reference date. Returns
// false when the guard already existed, i.e. the snapshot already ran.
func (s *Service) MarkSnapshotDone(ctx context.Context, date string) bool {
	if s == nil || s.cache == nil {
		return true
	}
	key := cachekeys.SnapshotGuardKey(date)
	var existing string
	if err := s.cache.GetCtx(ctx, key, &existing); err == nil {
		return false
	} else if !s.cache.IsNotFound(err) {
		logx.WithContext(ctx).Errorf("pricespersist: read snapshot guard %s: %v", key, err)
	}
	if err := s.cache.SetWithExpireCtx(ctx, key, "done", cachekeys.SnapshotGuardTTL()); err != nil {
		logx.WithContext(ctx).Errorf("pricespersist: set snapshot guard %s: %v", key, err)
	}
	return true
}
