package pricing

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"wonfolio-api/pkg/confkit"
)

// Config describes the provider chains available to the pricing engine.
type Config struct {
	ReferenceTimezone string                     `yaml:"reference_timezone"`
	ForeignWindow     WindowConfig               `yaml:"foreign_window"`
	Providers         map[string]*ProviderConfig `yaml:"providers"`
	Chains            map[string][]string        `yaml:"chains"`
	FX                []string                   `yaml:"fx"`
}

// WindowConfig declares an equity market's regular session.
type WindowConfig struct {
	Open     string `yaml:"open"`
	Close    string `yaml:"close"`
	Timezone string `yaml:"timezone"`
}

// ProviderConfig represents configuration for a single price provider.
type ProviderConfig struct {
	Type string `yaml:"type"`

	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`

	TimeoutRaw string        `yaml:"timeout"`
	Timeout    time.Duration `yaml:"-"`
	MaxRetries int           `yaml:"max_retries"`
}

// ProviderBuilder constructs a Provider from configuration.
type ProviderBuilder func(name string, cfg *ProviderConfig) (Provider, error)

var (
	providerRegistry   = make(map[string]ProviderBuilder)
	providerRegistryMu sync.RWMutex
)

// RegisterProvider registers a price provider constructor.
func RegisterProvider(typeName string, builder ProviderBuilder) {
	providerRegistryMu.Lock()
	defer providerRegistryMu.Unlock()
	providerRegistry[strings.ToLower(strings.TrimSpace(typeName))] = builder
}

func lookupProviderBuilder(typeName string) (ProviderBuilder, bool) {
	providerRegistryMu.RLock()
	defer providerRegistryMu.RUnlock()
	builder, ok := providerRegistry[strings.ToLower(strings.TrimSpace(typeName))]
	return builder, ok
}

// LoadConfig reads configuration from disk.
func LoadConfig(path string) (*Config, error) {
	confkit.LoadDotenvOnce()
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pricing config: %w", err)
	}
	defer file.Close()
	return LoadConfigFromReader(file)
}

// MustLoad reads pricing configuration from the default project location and panics on error.
func MustLoad() *Config {
	path := confkit.MustProjectPath("etc/pricing.yaml")
	cfg, err := LoadConfig(path)
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadConfigFromReader constructs a Config from an io.Reader.
func LoadConfigFromReader(r io.Reader) (*Config, error) {
	confkit.LoadDotenvOnce()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read pricing config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal pricing config: %w", err)
	}
	if err := cfg.normalise(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalise() error {
	if c.Providers == nil {
		c.Providers = make(map[string]*ProviderConfig)
	}
	for name, provider := range c.Providers {
		if provider == nil {
			provider = &ProviderConfig{}
			c.Providers[name] = provider
		}
		provider.expandEnv()
		if err := provider.parseDurations(name); err != nil {
			return err
		}
	}
	c.ReferenceTimezone = strings.TrimSpace(os.ExpandEnv(c.ReferenceTimezone))
	if c.ReferenceTimezone == "" {
		c.ReferenceTimezone = "Asia/Seoul"
	}
	if c.ForeignWindow.Open == "" {
		c.ForeignWindow.Open = "09:30"
	}
	if c.ForeignWindow.Close == "" {
		c.ForeignWindow.Close = "16:00"
	}
	if c.ForeignWindow.Timezone == "" {
		c.ForeignWindow.Timezone = "America/New_York"
	}
	return nil
}

func (p *ProviderConfig) expandEnv() {
	p.Type = strings.TrimSpace(os.ExpandEnv(p.Type))
	p.APIKey = strings.TrimSpace(os.ExpandEnv(p.APIKey))
	p.BaseURL = strings.TrimSpace(os.ExpandEnv(p.BaseURL))
	p.TimeoutRaw = strings.TrimSpace(os.ExpandEnv(p.TimeoutRaw))
}

func (p *ProviderConfig) parseDurations(name string) error {
	if p.TimeoutRaw != "" {
		d, err := time.ParseDuration(p.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("pricing provider %s: invalid timeout %q: %w", name, p.TimeoutRaw, err)
		}
		if d <= 0 {
			return fmt.Errorf("pricing provider %s: timeout must be positive, got %s", name, d)
		}
		p.Timeout = d
	}
	return nil
}

// Validate ensures the configuration is structurally sound.
func (c *Config) Validate() error {
	if len(c.Providers) == 0 {
		return fmt.Errorf("pricing config: providers cannot be empty")
	}
	for name, provider := range c.Providers {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("pricing config: provider name cannot be empty")
		}
		if err := provider.validate(name); err != nil {
			return err
		}
	}
	for class, names := range c.Chains {
		parsed, err := ParseAssetClass(class)
		if err != nil {
			return fmt.Errorf("pricing config: chain %q: %w", class, err)
		}
		if parsed == Manual {
			return fmt.Errorf("pricing config: manual holdings take no provider chain")
		}
		if len(names) == 0 {
			return fmt.Errorf("pricing config: chain %q cannot be empty", class)
		}
		for _, name := range names {
			if _, ok := c.Providers[name]; !ok {
				return fmt.Errorf("pricing config: chain %q references unknown provider %q", class, name)
			}
		}
	}
	for _, name := range c.FX {
		if _, ok := c.Providers[name]; !ok {
			return fmt.Errorf("pricing config: fx chain references unknown provider %q", name)
		}
	}
	if _, err := ParseClockTime(c.ForeignWindow.Open); err != nil {
		return fmt.Errorf("pricing config: foreign_window open: %w", err)
	}
	if _, err := ParseClockTime(c.ForeignWindow.Close); err != nil {
		return fmt.Errorf("pricing config: foreign_window close: %w", err)
	}
	return nil
}

func (p *ProviderConfig) validate(name string) error {
	if p == nil {
		return fmt.Errorf("pricing config: provider %s is nil", name)
	}
	if strings.TrimSpace(p.Type) == "" {
		return fmt.Errorf("pricing config: provider %s must specify type", name)
	}
	if _, ok := lookupProviderBuilder(p.Type); !ok {
		return fmt.Errorf("pricing config: provider %s has unsupported type %q", name, p.Type)
	}
	return nil
}

// BuildProviders instantiates price providers according to configuration.
func (c *Config) BuildProviders() (map[string]Provider, error) {
	result := make(map[string]Provider, len(c.Providers))
	for name, providerCfg := range c.Providers {
		builder, ok := lookupProviderBuilder(providerCfg.Type)
		if !ok {
			return nil, fmt.Errorf("pricing provider %s: unsupported type %q", name, providerCfg.Type)
		}
		provider, err := builder(name, providerCfg)
		if err != nil {
			return nil, fmt.Errorf("pricing provider %s: %w", name, err)
		}
		result[name] = provider
	}
	return result, nil
}

// Window materialises the configured foreign market session.
func (c *Config) Window() (MarketWindow, error) {
	open, err := ParseClockTime(c.ForeignWindow.Open)
	if err != nil {
		return MarketWindow{}, err
	}
	closeAt, err := ParseClockTime(c.ForeignWindow.Close)
	if err != nil {
		return MarketWindow{}, err
	}
	loc, err := time.LoadLocation(c.ForeignWindow.Timezone)
	if err != nil {
		return MarketWindow{}, fmt.Errorf("pricing config: load market timezone: %w", err)
	}
	return MarketWindow{Open: open, Close: closeAt, Location: loc}, nil
}

// BuildResolver assembles the full resolver: instantiated providers, one
// shared cache, per-class fallback chains, the FX chain and the snapshot
// window. The first domestic provider that can serve daily closes is wired
// as the close provider.
func (c *Config) BuildResolver(ttl TTLTable, opts ...ResolverOption) (*Resolver, error) {
	providers, err := c.BuildProviders()
	if err != nil {
		return nil, err
	}

	cache := NewQuoteCache(ttl)

	chains := make(map[AssetClass]*Chain, len(c.Chains))
	var closeProvider CloseProvider
	for class, names := range c.Chains {
		parsed, err := ParseAssetClass(class)
		if err != nil {
			return nil, err
		}
		ordered := make([]Provider, 0, len(names))
		for _, name := range names {
			ordered = append(ordered, providers[name])
		}
		chains[parsed] = NewChain(KindFor(parsed), cache, ordered...)
		if parsed == EquityDomestic && closeProvider == nil {
			for _, p := range ordered {
				if cp, ok := p.(CloseProvider); ok {
					closeProvider = cp
					break
				}
			}
		}
	}

	var fx *FXResolver
	if len(c.FX) > 0 {
		ordered := make([]Provider, 0, len(c.FX))
		for _, name := range c.FX {
			ordered = append(ordered, providers[name])
		}
		fx = NewFXResolver(cache, ordered...)
	}

	window, err := c.Window()
	if err != nil {
		return nil, err
	}
	refLoc, err := time.LoadLocation(c.ReferenceTimezone)
	if err != nil {
		return nil, fmt.Errorf("pricing config: load reference timezone: %w", err)
	}

	base := []ResolverOption{WithReferenceLocation(refLoc)}
	if closeProvider != nil {
		base = append(base, WithCloseProvider(closeProvider))
	}
	return NewResolver(chains, fx, window, append(base, opts...)...), nil
}
