package pricing

import "context"

// Persistence hooks allow the resolver to record resolved prices in external
// stores without knowing about them. Implementations must tolerate being
// called concurrently.
type Persistence interface {
	// RecordLatest persists one symbol's freshly resolved price.
	RecordLatest(ctx context.Context, symbol string, class AssetClass, res Result) error
}
