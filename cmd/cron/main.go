package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"wonfolio-api/internal/cli"
	"wonfolio-api/internal/config"
	"wonfolio-api/internal/holdings"
	"wonfolio-api/internal/svc"
	"wonfolio-api/pkg/pricing"
)

const (
	batchTimeout    = 2 * time.Minute  // Budget for one full refresh or snapshot pass
	shutdownTimeout = 10 * time.Second // Grace period for shutdown
)

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)
	log.Println("[main] Starting pricing cron...")

	configPath := "etc/wonfolio.yaml"
	appCfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("[main] Failed to load app config: %v", err)
	}

	log.Printf("[main] Configuration loaded:")
	for _, line := range cli.ConfigSummaryLines(appCfg) {
		log.Printf("  - %s", line)
	}

	svcCtx := svc.NewServiceContext(*appCfg)
	if svcCtx.Holdings == nil {
		log.Fatalf("[main] Postgres DSN is required for scheduled pricing")
	}

	refLoc, err := time.LoadLocation(svcCtx.PricingConfig.ReferenceTimezone)
	if err != nil {
		log.Fatalf("[main] Invalid reference timezone: %v", err)
	}

	refreshInterval := time.Duration(appCfg.RefreshInterval) * time.Second
	log.Printf("  - Refresh interval: %s", refreshInterval)
	log.Printf("  - Snapshot schedule: daily %02d:00 %s", appCfg.SnapshotHour, refLoc)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		runRefreshLoop(ctx, svcCtx, refreshInterval)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		runSnapshotLoop(ctx, svcCtx, refLoc, appCfg.SnapshotHour)
	}()

	log.Println("[main] Pricing cron started. Press Ctrl+C to stop.")

	<-ctx.Done()
	log.Println("[main] Shutdown signal received, stopping tasks...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("[main] All tasks stopped cleanly")
	case <-shutdownCtx.Done():
		log.Println("[main] Shutdown timeout exceeded, forcing exit")
	}

	log.Println("[main] Pricing cron stopped")
}

// runRefreshLoop re-prices the active holdings on a fixed cadence.
func runRefreshLoop(ctx context.Context, svcCtx *svc.ServiceContext, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Run once immediately on startup
	refreshPrices(ctx, svcCtx)

	for {
		select {
		case <-ctx.Done():
			log.Println("[refresh] Stopping refresh loop")
			return
		case <-ticker.C:
			refreshPrices(ctx, svcCtx)
		}
	}
}

// runSnapshotLoop fires the valuation snapshot once per day at the configured
// local hour.
func runSnapshotLoop(ctx context.Context, svcCtx *svc.ServiceContext, loc *time.Location, hour int) {
	for {
		wait := time.Until(nextSnapshotAt(time.Now().In(loc), hour))
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Println("[snapshot] Stopping snapshot loop")
			return
		case <-timer.C:
			takeSnapshot(ctx, svcCtx, loc)
		}
	}
}

// nextSnapshotAt returns the next occurrence of hour:00 strictly after now.
func nextSnapshotAt(now time.Time, hour int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

func refreshPrices(parentCtx context.Context, svcCtx *svc.ServiceContext) {
	if parentCtx.Err() != nil {
		return
	}
	ctx, cancel := context.WithTimeout(parentCtx, batchTimeout)
	defer cancel()

	active, err := svcCtx.Holdings.Active(ctx)
	if err != nil {
		log.Printf("[refresh] [ERROR] load holdings: %v", err)
		return
	}
	if len(active) == 0 {
		log.Printf("[refresh] [OK] no active holdings")
		return
	}

	start := time.Now()
	outcomes := svcCtx.Resolver.ResolveBatch(ctx, priceRequests(active))
	elapsed := time.Since(start)

	resolved, failed := tally(outcomes)
	log.Printf("[refresh] [OK] resolved=%d failed=%d, took %dms", resolved, failed, elapsed.Milliseconds())
	for sym, outcome := range outcomes {
		if outcome.Err != nil {
			log.Printf("  - %s: %v", sym, outcome.Err)
		}
	}
}

func takeSnapshot(parentCtx context.Context, svcCtx *svc.ServiceContext, loc *time.Location) {
	if parentCtx.Err() != nil {
		return
	}
	ctx, cancel := context.WithTimeout(parentCtx, batchTimeout)
	defer cancel()

	date := time.Now().In(loc).Format("2006-01-02")
	if svcCtx.Prices != nil && !svcCtx.Prices.MarkSnapshotDone(ctx, date) {
		log.Printf("[snapshot] [SKIP] snapshot for %s already recorded", date)
		return
	}

	active, err := svcCtx.Holdings.Active(ctx)
	if err != nil {
		log.Printf("[snapshot] [ERROR] load holdings: %v", err)
		return
	}

	start := time.Now()
	outcomes := svcCtx.Resolver.ResolveSnapshot(ctx, priceRequests(active))
	elapsed := time.Since(start)

	total, skipped := holdings.TotalValue(active, outcomes)
	log.Printf("[snapshot] [OK] date=%s total=%s skipped=%d, took %dms", date, total, skipped, elapsed.Milliseconds())

	if svcCtx.Prices == nil {
		return
	}
	perSymbol := make(map[string]decimal.Decimal, len(active))
	for _, h := range active {
		outcome, ok := outcomes[h.PriceRequest().Normalized()]
		if !ok || outcome.Err != nil || outcome.Result == nil {
			continue
		}
		perSymbol[h.Symbol] = outcome.Result.Price.Mul(h.Quantity)
	}
	if err := svcCtx.Prices.RecordDailyTotals(ctx, date, total, perSymbol); err != nil {
		log.Printf("[snapshot] [ERROR] persist daily totals: %v", err)
	}
}

func priceRequests(active []holdings.Holding) []pricing.Request {
	reqs := make([]pricing.Request, 0, len(active))
	for _, h := range active {
		reqs = append(reqs, h.PriceRequest())
	}
	return reqs
}

func tally(outcomes map[string]pricing.Outcome) (resolved, failed int) {
	for _, outcome := range outcomes {
		if outcome.Err != nil {
			failed++
			continue
		}
		resolved++
	}
	return resolved, failed
}
