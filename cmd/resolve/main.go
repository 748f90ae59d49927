package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"wonfolio-api/internal/config"
	pricingpkg "wonfolio-api/pkg/pricing"

	_ "wonfolio-api/pkg/pricing/providers/erapi"
	_ "wonfolio-api/pkg/pricing/providers/finnhub"
	_ "wonfolio-api/pkg/pricing/providers/frankfurter"
	_ "wonfolio-api/pkg/pricing/providers/krx"
	_ "wonfolio-api/pkg/pricing/providers/stooq"
	_ "wonfolio-api/pkg/pricing/providers/upbit"
)

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: resolve [flags] SYMBOL:CLASS[:PRICE] ...

Resolves prices for the given symbols and prints one line per symbol.
CLASS is one of equity_foreign | equity_domestic | crypto | manual;
manual entries require the third PRICE segment.

Examples:
  resolve AAPL:equity_foreign 005930:equity_domestic BTC:crypto
  resolve -snapshot GOLD:manual:185000

Flags:
`)
	flag.PrintDefaults()
}

func main() {
	snapshot := flag.Bool("snapshot", false, "use snapshot policy (previous close for domestic equities)")
	configPath := flag.String("pricing", "", "pricing config path (defaults to etc/pricing.yaml)")
	timeout := flag.Duration("timeout", 2*time.Minute, "overall resolution timeout")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}

	var pricingCfg *pricingpkg.Config
	var err error
	if *configPath != "" {
		pricingCfg, err = pricingpkg.LoadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "resolve: %v\n", err)
			os.Exit(1)
		}
	} else {
		pricingCfg = config.MustLoadPricing()
	}

	reqs, err := parseRequests(flag.Args())
	if err != nil {
		fmt.Fprintf(os.Stderr, "resolve: %v\n", err)
		os.Exit(2)
	}

	resolver, err := pricingCfg.BuildResolver(defaultTTLTable())
	if err != nil {
		fmt.Fprintf(os.Stderr, "resolve: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	var outcomes map[string]pricingpkg.Outcome
	if *snapshot {
		outcomes = resolver.ResolveSnapshot(ctx, reqs)
	} else {
		outcomes = resolver.ResolveBatch(ctx, reqs)
	}

	exitCode := 0
	for _, req := range reqs {
		sym := req.Normalized()
		outcome := outcomes[sym]
		if outcome.Err != nil {
			fmt.Printf("%s\tERROR\t%v\n", sym, outcome.Err)
			exitCode = 1
			continue
		}
		res := outcome.Result
		line := fmt.Sprintf("%s\t%s KRW\tvia %s", sym, res.Price, res.Provider)
		if res.Foreign != nil {
			line += fmt.Sprintf("\t(%s USD)", res.Foreign)
		}
		if res.Note != "" {
			line += "\t" + res.Note
		}
		fmt.Println(line)
	}
	os.Exit(exitCode)
}

// parseRequests turns SYMBOL:CLASS[:PRICE] arguments into engine requests.
func parseRequests(args []string) ([]pricingpkg.Request, error) {
	reqs := make([]pricingpkg.Request, 0, len(args))
	for _, arg := range args {
		parts := strings.SplitN(arg, ":", 3)
		if len(parts) < 2 {
			return nil, fmt.Errorf("invalid argument %q, want SYMBOL:CLASS[:PRICE]", arg)
		}
		class, err := pricingpkg.ParseAssetClass(parts[1])
		if err != nil {
			return nil, fmt.Errorf("argument %q: %w", arg, err)
		}
		req := pricingpkg.Request{Symbol: parts[0], Class: class}
		if len(parts) == 3 {
			price, err := decimal.NewFromString(parts[2])
			if err != nil {
				return nil, fmt.Errorf("argument %q: bad price: %w", arg, err)
			}
			req.ManualPrice = &price
		}
		reqs = append(reqs, req)
	}
	return reqs, nil
}

// defaultTTLTable mirrors the application config defaults so the standalone
// tool behaves like the service without loading the full app config.
func defaultTTLTable() pricingpkg.TTLTable {
	return pricingpkg.TTLTable{
		pricingpkg.KindFX:             10 * time.Minute,
		pricingpkg.KindEquityForeign:  5 * time.Minute,
		pricingpkg.KindEquityDomestic: 10 * time.Minute,
		pricingpkg.KindCrypto:         time.Minute,
	}
}
