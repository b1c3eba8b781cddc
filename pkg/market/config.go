package market

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/pkg/confkit"
)

// Config describes the set of market data providers available to the application.
type Config struct {
	Default        string                     `yaml:"default"`
	DefaultPricing string                     `yaml:"default_pricing"`
	Providers      map[string]*ProviderConfig `yaml:"providers"`
}

// ProviderConfig represents configuration for a single market provider.
type ProviderConfig struct {
	Type string `yaml:"type"`

	BaseURL string `yaml:"base_url"`
	Sandbox bool   `yaml:"sandbox"`

	// Credentials. Tradier and Polygon use Token; Alpaca uses KeyID/Secret.
	Token  string `yaml:"token"`
	KeyID  string `yaml:"key_id"`
	Secret string `yaml:"secret"`
	Feed   string `yaml:"feed"`

	TimeoutRaw     string        `yaml:"timeout"`
	Timeout        time.Duration `yaml:"-"`
	HTTPTimeoutRaw string        `yaml:"http_timeout"`
	HTTPTimeout    time.Duration `yaml:"-"`
	MaxRetries     int           `yaml:"max_retries"`

	// RateLimit caps outbound requests per second; zero disables limiting.
	RateLimit float64 `yaml:"rate_limit"`
	Burst     int     `yaml:"burst"`

	StrikeWindow    float64 `yaml:"strike_window"`
	MaxStrikeOffset int     `yaml:"max_strike_offset"`
}

// ProviderBuilder constructs a Provider from configuration.
type ProviderBuilder func(name string, cfg *ProviderConfig) (Provider, error)

var registry = struct {
	sync.RWMutex
	builders map[string]ProviderBuilder
}{builders: make(map[string]ProviderBuilder)}

// RegisterProvider makes a provider type available to BuildProviders.
// Exchange packages call it from init.
func RegisterProvider(typeName string, builder ProviderBuilder) {
	registry.Lock()
	defer registry.Unlock()
	registry.builders[strings.ToLower(strings.TrimSpace(typeName))] = builder
}

func lookupProviderBuilder(typeName string) (ProviderBuilder, bool) {
	registry.RLock()
	defer registry.RUnlock()
	builder, ok := registry.builders[strings.ToLower(strings.TrimSpace(typeName))]
	return builder, ok
}

// LoadConfig reads etc/market.yaml style configuration from path.
func LoadConfig(path string) (*Config, error) {
	return confkit.LoadYAML(path, (*Config).prepare)
}

// LoadConfigFromReader is LoadConfig for inline yaml.
func LoadConfigFromReader(r io.Reader) (*Config, error) {
	confkit.LoadDotenvOnce()
	return confkit.DecodeYAML(r, (*Config).prepare)
}

func (c *Config) prepare() error {
	c.Default = strings.TrimSpace(os.ExpandEnv(c.Default))
	c.DefaultPricing = strings.TrimSpace(os.ExpandEnv(c.DefaultPricing))
	if c.Providers == nil {
		c.Providers = make(map[string]*ProviderConfig)
	}
	for name, provider := range c.Providers {
		if provider == nil {
			provider = &ProviderConfig{}
			c.Providers[name] = provider
		}
		if err := provider.normalise(name); err != nil {
			return err
		}
	}
	return c.Validate()
}

func (p *ProviderConfig) normalise(name string) error {
	for _, field := range []*string{&p.Type, &p.BaseURL, &p.Token, &p.KeyID, &p.Secret, &p.Feed, &p.TimeoutRaw, &p.HTTPTimeoutRaw} {
		*field = strings.TrimSpace(os.ExpandEnv(*field))
	}
	p.Type = strings.ToLower(p.Type)

	var err error
	if p.Timeout, err = positiveDuration(name, "timeout", p.TimeoutRaw); err != nil {
		return err
	}
	if p.HTTPTimeout, err = positiveDuration(name, "http_timeout", p.HTTPTimeoutRaw); err != nil {
		return err
	}
	if p.StrikeWindow <= 0 {
		p.StrikeWindow = DefaultStrikeWindow
	}
	if p.MaxStrikeOffset <= 0 {
		p.MaxStrikeOffset = DefaultMaxStrikeOffset
	}
	return nil
}

func positiveDuration(provider, field, raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("market provider %s: invalid %s %q: %w", provider, field, raw, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("market provider %s: %s must be positive, got %s", provider, field, d)
	}
	return d, nil
}

// Validate reports every structural problem in the config at once.
func (c *Config) Validate() error {
	if len(c.Providers) == 0 {
		return errors.New("market config: no providers defined")
	}
	var errs []error
	for _, ref := range []struct{ role, name string }{{"default", c.Default}, {"default pricing", c.DefaultPricing}} {
		if ref.name == "" {
			continue
		}
		if _, ok := c.Providers[ref.name]; !ok {
			errs = append(errs, fmt.Errorf("market config: %s provider %q not defined", ref.role, ref.name))
		}
	}
	for _, name := range c.names() {
		if err := c.Providers[name].validate(name); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (p *ProviderConfig) validate(name string) error {
	switch {
	case p == nil:
		return fmt.Errorf("market config: provider %s is empty", name)
	case strings.TrimSpace(name) == "":
		return errors.New("market config: provider name cannot be empty")
	case p.Type == "":
		return fmt.Errorf("market config: provider %s must specify type", name)
	case p.RateLimit < 0:
		return fmt.Errorf("market config: provider %s rate_limit cannot be negative", name)
	}
	if _, ok := lookupProviderBuilder(p.Type); !ok {
		return fmt.Errorf("market config: provider %s has unsupported type %q", name, p.Type)
	}
	return nil
}

func (c *Config) names() []string {
	names := make([]string, 0, len(c.Providers))
	for name := range c.Providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// BuildProviders constructs every configured provider keyed by its config
// name.
func (c *Config) BuildProviders() (map[string]Provider, error) {
	out := make(map[string]Provider, len(c.Providers))
	for _, name := range c.names() {
		cfg := c.Providers[name]
		builder, ok := lookupProviderBuilder(cfg.Type)
		if !ok {
			return nil, fmt.Errorf("market provider %s: unsupported type %q", name, cfg.Type)
		}
		provider, err := builder(name, cfg)
		if err != nil {
			return nil, fmt.Errorf("market provider %s: %w", name, err)
		}
		out[name] = provider
	}
	return out, nil
}
