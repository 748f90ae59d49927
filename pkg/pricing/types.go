package pricing

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// AssetClass identifies how a holding is priced. The set is closed: every
// resolution path switches over it exhaustively.
type AssetClass string

const (
	EquityForeign  AssetClass = "equity_foreign"
	EquityDomestic AssetClass = "equity_domestic"
	Crypto         AssetClass = "crypto"
	Manual         AssetClass = "manual"
)

// ParseAssetClass normalises a stored class string.
func ParseAssetClass(s string) (AssetClass, error) {
	switch AssetClass(strings.ToLower(strings.TrimSpace(s))) {
	case EquityForeign:
		return EquityForeign, nil
	case EquityDomestic:
		return EquityDomestic, nil
	case Crypto:
		return Crypto, nil
	case Manual:
		return Manual, nil
	}
	return "", fmt.Errorf("pricing: unknown asset class %q", s)
}

// Request asks for one symbol's price. ManualPrice is consulted only for
// Manual holdings, whose price is supplied by the caller.
type Request struct {
	Symbol      string
	Class       AssetClass
	ManualPrice *decimal.Decimal
}

// Normalized returns the caller-visible identity of the request: upper-cased,
// exchange suffixes retained.
func (r Request) Normalized() string {
	return strings.ToUpper(strings.TrimSpace(r.Symbol))
}

// LookupSymbol returns the symbol handed to providers. Domestic equities drop
// exchange suffixes such as ".KS" / ".KQ" before lookup.
func (r Request) LookupSymbol() string {
	sym := r.Normalized()
	if r.Class == EquityDomestic {
		if idx := strings.Index(sym, "."); idx > 0 {
			sym = sym[:idx]
		}
	}
	return sym
}

// Result is a resolved price in the settlement currency.
type Result struct {
	// Price is the settlement-currency (KRW) price.
	Price decimal.Decimal
	// Foreign is the upstream foreign-currency price when an FX conversion
	// was applied, nil otherwise.
	Foreign *decimal.Decimal
	// Provider names the adapter that produced the value, or "cache" /
	// "manual".
	Provider string
	// Note qualifies snapshot results ("live", "last close", "previous close").
	Note string
}

// Outcome is one symbol's slot in a batch response: exactly one of Result and
// Err is set, so an unresolvable symbol is distinguishable from one that was
// never requested.
type Outcome struct {
	Result *Result
	Err    error
}

// Provider names reported for non-adapter results.
const (
	ProviderCache  = "cache"
	ProviderManual = "manual"
)

// Notes attached to snapshot results.
const (
	NoteLive          = "live"
	NoteLastClose     = "last close"
	NotePreviousClose = "previous close"
)
