package holdings

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/zeromicro/go-zero/core/logx"
	gocache "github.com/zeromicro/go-zero/core/stores/cache"
	"github.com/zeromicro/go-zero/core/stores/sqlx"

	cachekeys "wonfolio-api/internal/cache"
	"wonfolio-api/pkg/pricing"
)

// Holding is one portfolio position to be valued.
type Holding struct {
	ID          int64               `json:"id"`
	Name        string              `json:"name"`
	Symbol      string              `json:"symbol"`
	Class       pricing.AssetClass  `json:"class"`
	Quantity    decimal.Decimal     `json:"quantity"`
	ManualPrice decimal.NullDecimal `json:"manual_price"`
}

// PriceRequest converts the holding into an engine resolution request.
func (h Holding) PriceRequest() pricing.Request {
	req := pricing.Request{Symbol: h.Symbol, Class: h.Class}
	if h.ManualPrice.Valid {
		price := h.ManualPrice.Decimal
		req.ManualPrice = &price
	}
	return req
}

// Repo loads holdings from Postgres with a Redis cache in front.
type Repo struct {
	conn  sqlx.SqlConn
	cache gocache.Cache
	ttl   cachekeys.TTLSet
}

// NewRepo wires a holdings repository. The cache is optional.
func NewRepo(conn sqlx.SqlConn, cache gocache.Cache, ttl cachekeys.TTLSet) *Repo {
	return &Repo{conn: conn, cache: cache, ttl: ttl}
}

type holdingRow struct {
	ID          int64               `db:"id"`
	Name        string              `db:"name"`
	Symbol      string              `db:"symbol"`
	AssetClass  string              `db:"asset_class"`
	Quantity    decimal.Decimal     `db:"quantity"`
	ManualPrice decimal.NullDecimal `db:"manual_price"`
}

// Active returns all holdings flagged active, ordered by id. A holding whose
// stored class is unrecognised degrades to manual pricing instead of failing
// the whole listing.
func (r *Repo) Active(ctx context.Context) ([]Holding, error) {
	key := cachekeys.HoldingsActiveKey()
	if r.cache != nil {
		var cached []Holding
		if err := r.cache.GetCtx(ctx, key, &cached); err == nil {
			return cached, nil
		} else if !r.cache.IsNotFound(err) {
			logx.WithContext(ctx).Errorf("holdings: read cache %s: %v", key, err)
		}
	}

	const q = `
SELECT id, name, symbol, asset_class, quantity, manual_price
FROM public.holdings
WHERE is_active
ORDER BY id`

	var rows []holdingRow
	if err := r.conn.QueryRowsCtx(ctx, &rows, q); err != nil {
		return nil, fmt.Errorf("holdings: query active: %w", err)
	}

	out := make([]Holding, 0, len(rows))
	for _, row := range rows {
		class, err := pricing.ParseAssetClass(row.AssetClass)
		if err != nil {
			logx.WithContext(ctx).Errorf("holdings: %s has unknown class %q, treating as manual", row.Symbol, row.AssetClass)
			class = pricing.Manual
		}
		out = append(out, Holding{
			ID:          row.ID,
			Name:        row.Name,
			Symbol:      row.Symbol,
			Class:       class,
			Quantity:    row.Quantity,
			ManualPrice: row.ManualPrice,
		})
	}

	if r.cache != nil {
		ttl := cachekeys.HoldingsTTL(r.ttl)
		if ttl > 0 {
			if err := r.cache.SetWithExpireCtx(ctx, key, out, ttl); err != nil {
				logx.WithContext(ctx).Errorf("holdings: cache %s: %v", key, err)
			}
		}
	}
	return out, nil
}

// Invalidate drops the cached listing, e.g. after a holdings mutation.
func (r *Repo) Invalidate(ctx context.Context) {
	if r.cache == nil {
		return
	}
	if err := r.cache.DelCtx(ctx, cachekeys.HoldingsActiveKey()); err != nil {
		logx.WithContext(ctx).Errorf("holdings: invalidate cache: %v", err)
	}
}

// TotalValue sums quantity * price over resolved outcomes, skipping holdings
// whose resolution failed. The second return value counts skipped holdings.
func TotalValue(hs []Holding, prices map[string]pricing.Outcome) (decimal.Decimal, int) {
	total := decimal.Zero
	skipped := 0
	for _, h := range hs {
		outcome, ok := prices[h.PriceRequest().Normalized()]
		if !ok || outcome.Err != nil || outcome.Result == nil {
			skipped++
			continue
		}
		total = total.Add(outcome.Result.Price.Mul(h.Quantity))
	}
	return total, skipped
}
