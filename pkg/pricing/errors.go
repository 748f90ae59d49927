package pricing

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoQuote marks a well-formed provider response that carries no
	// usable quote (zero price, empty payload, unknown symbol). Treated
	// like a transport failure for fallback purposes.
	ErrNoQuote = errors.New("pricing: no quote data")

	// ErrMissingCredential is returned by adapters that require an API key
	// before any network call is attempted.
	ErrMissingCredential = errors.New("pricing: missing credential")

	// ErrMissingRateField marks an FX response that parsed fine but lacks
	// the expected rates field; kept distinct from transport errors so the
	// two can be told apart in logs.
	ErrMissingRateField = errors.New("pricing: rate field missing from response")

	// ErrNoCloseInWindow is returned when the previous-close scan finds no
	// trading record within its backward window.
	ErrNoCloseInWindow = errors.New("pricing: no close data in scan window")

	// ErrManualPriceRequired is returned for manual holdings resolved
	// without a caller-supplied price.
	ErrManualPriceRequired = errors.New("pricing: manual holding requires a caller-supplied price")
)

// ChainCause records one adapter's failure during a chain walk.
type ChainCause struct {
	Provider string
	Err      error
}

// ChainExhaustedError reports that every adapter in a fallback chain failed
// and no stale cache entry was available.
type ChainExhaustedError struct {
	Symbol string
	Causes []ChainCause
}

func (e *ChainExhaustedError) Error() string {
	parts := make([]string, 0, len(e.Causes))
	for _, c := range e.Causes {
		parts = append(parts, fmt.Sprintf("%s: %v", c.Provider, c.Err))
	}
	return fmt.Sprintf("pricing: all sources failed for %s (%s)", e.Symbol, strings.Join(parts, "; "))
}

// Unwrap exposes the underlying causes to errors.Is/As.
func (e *ChainExhaustedError) Unwrap() []error {
	errs := make([]error, 0, len(e.Causes))
	for _, c := range e.Causes {
		errs = append(errs, c.Err)
	}
	return errs
}
