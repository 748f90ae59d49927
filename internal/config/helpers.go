package config

import (
	"wonfolio-api/pkg/pricing"
)

// MustLoadPricing loads etc/pricing.yaml from the project root and panics on
// error. It isolates pricing config so tools that only need provider chains
// can skip the full application config.
func MustLoadPricing() *pricing.Config {
	return pricing.MustLoad()
}
