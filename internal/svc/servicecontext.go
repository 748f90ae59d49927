package svc

import (
	"database/sql"
	"log"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx driver
	gocache "github.com/zeromicro/go-zero/core/stores/cache"
	"github.com/zeromicro/go-zero/core/stores/sqlx"
	"github.com/zeromicro/go-zero/core/syncx"

	cachekeys "wonfolio-api/internal/cache"
	"wonfolio-api/internal/config"
	"wonfolio-api/internal/holdings"
	pricespersist "wonfolio-api/internal/persistence/prices"
	pricingpkg "wonfolio-api/pkg/pricing"

	// Imports for side-effects: register price providers
	_ "wonfolio-api/pkg/pricing/providers/erapi"
	_ "wonfolio-api/pkg/pricing/providers/finnhub"
	_ "wonfolio-api/pkg/pricing/providers/frankfurter"
	_ "wonfolio-api/pkg/pricing/providers/krx"
	_ "wonfolio-api/pkg/pricing/providers/stooq"
	_ "wonfolio-api/pkg/pricing/providers/upbit"
)

type ServiceContext struct {
	Config config.Config

	PricingConfig *pricingpkg.Config
	Resolver      *pricingpkg.Resolver

	DBConn   sqlx.SqlConn
	Cache    gocache.Cache
	TTL      cachekeys.TTLSet
	Holdings *holdings.Repo

	Prices *pricespersist.Service
}

func NewServiceContext(c config.Config) *ServiceContext {
	svc := &ServiceContext{
		Config: c,
		TTL:    cachekeys.NewTTLSet(c.TTL),
	}

	// Pricing config comes from the hydrated section, falling back to the
	// default project location.
	pricingCfg := c.Pricing.Value
	if pricingCfg == nil {
		pricingCfg = config.MustLoadPricing()
	}
	svc.PricingConfig = pricingCfg

	resolver, err := pricingCfg.BuildResolver(c.TTLTable())
	if err != nil {
		log.Fatalf("failed to build price resolver: %v", err)
	}
	svc.Resolver = resolver

	if len(c.CacheRedis) > 0 {
		svc.Cache = gocache.New(c.CacheRedis, syncx.NewSingleFlight(), gocache.NewStat(cachekeys.Namespace), sql.ErrNoRows)
	}

	// Only inject DB-backed collaborators when a DSN is provided; the
	// resolver itself works without persistence.
	if c.Postgres.DSN != "" {
		conn := sqlx.NewSqlConn("pgx", c.Postgres.DSN)
		svc.DBConn = conn
		svc.Holdings = holdings.NewRepo(conn, svc.Cache, svc.TTL)
		if prices := pricespersist.NewService(pricespersist.Config{SQLConn: conn, Cache: svc.Cache, TTL: svc.TTL}); prices != nil {
			svc.Prices = prices
			resolver.SetPersistence(prices)
		}
	}
	return svc
}
