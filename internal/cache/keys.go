package cache

import (
	"fmt"
	"strings"
	"time"

	"wonfolio-api/internal/config"
)

// Namespace is the Redis key prefix for the Wonfolio application.
const Namespace = "wonfolio"

// TTLSet normalises cache TTLs from config into time.Duration values. These
// drive the Redis mirror; the in-process quote cache takes its own table
// straight from config.
type TTLSet struct {
	FX             time.Duration
	EquityForeign  time.Duration
	EquityDomestic time.Duration
	Crypto         time.Duration
}

// NewTTLSet converts config TTLs (in seconds) into durations.
func NewTTLSet(cfg config.PriceTTL) TTLSet {
	return TTLSet{
		FX:             durationOrDefault(cfg.FX, 10*time.Minute),
		EquityForeign:  durationOrDefault(cfg.EquityForeign, 5*time.Minute),
		EquityDomestic: durationOrDefault(cfg.EquityDomestic, 10*time.Minute),
		Crypto:         durationOrDefault(cfg.Crypto, time.Minute),
	}
}

func durationOrDefault(seconds int, fallback time.Duration) time.Duration {
	if seconds < 0 {
		return 0
	}
	if seconds == 0 {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}

func formatKey(parts ...string) string {
	values := make([]string, 0, len(parts)+1)
	values = append(values, Namespace)
	for _, part := range parts {
		clean := strings.TrimSpace(part)
		if clean == "" {
			continue
		}
		values = append(values, clean)
	}
	return strings.Join(values, ":")
}

// --- Price Keys -------------------------------------------------------------

// PriceLatestKey returns the default latest price key without provider scoping.
func PriceLatestKey(symbol string) string {
	return formatKey("price", "latest", symbol)
}

// PriceLatestByProviderKey returns the latest price key scoped by provider.
func PriceLatestByProviderKey(provider, symbol string) string {
	return formatKey("price", "latest", provider, symbol)
}

// FXRateKey holds the USD/KRW settlement rate.
func FXRateKey() string {
	return formatKey("fx", "usdkrw")
}

// --- Holdings Keys ----------------------------------------------------------

// HoldingsActiveKey caches the active holdings listing.
func HoldingsActiveKey() string {
	return formatKey("holdings", "active")
}

// --- Snapshot Keys ----------------------------------------------------------

// SnapshotGuardKey prevents duplicate daily snapshots for a reference date.
func SnapshotGuardKey(date string) string {
	return formatKey("snapshot", "guard", date)
}

// SnapshotGuardTTL returns the TTL for snapshot idempotency guards.
func SnapshotGuardTTL() time.Duration {
	return 24 * time.Hour
}

// --- TTL Helpers ------------------------------------------------------------

// PriceMirrorTTL returns the Redis TTL for a price key of the given class.
func PriceMirrorTTL(ttl TTLSet, class string) time.Duration {
	switch class {
	case "fx":
		return ttl.FX
	case "equity_foreign":
		return ttl.EquityForeign
	case "equity_domestic":
		return ttl.EquityDomestic
	case "crypto":
		return ttl.Crypto
	default:
		return ttl.Crypto
	}
}

// HoldingsTTL returns the TTL for the cached holdings listing.
func HoldingsTTL(ttl TTLSet) time.Duration {
	return ttl.EquityDomestic
}

// FormatCacheKey is exported for dynamic key construction when patterns
// are not covered by helpers.
func FormatCacheKey(parts ...string) string {
	return formatKey(parts...)
}

// BuildKeyWithSuffix appends an arbitrary suffix to an existing key.
func BuildKeyWithSuffix(baseKey, suffix string) string {
	if strings.TrimSpace(suffix) == "" {
		return baseKey
	}
	return fmt.Sprintf("%s:%s", baseKey, strings.TrimSpace(suffix))
}
