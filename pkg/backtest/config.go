package backtest

import (
	"fmt"
	"io"
	"strings"

	"github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/pkg/confkit"
)

// Config selects and parameterises a backtest from etc/backtest.yaml.
type Config struct {
	Strategy      string  `yaml:"strategy"`
	Interval      string  `yaml:"interval"`
	LookbackDays  int     `yaml:"lookback_days"`
	InitialEquity float64 `yaml:"initial_equity"`
	FeeBps        float64 `yaml:"fee_bps"`
	SlippageBps   float64 `yaml:"slippage_bps"`
	Lot           float64 `yaml:"lot"`
	ReportDir     string  `yaml:"report_dir"`
	JournalDir    string  `yaml:"journal_dir"`

	Threshold struct {
		Pct float64 `yaml:"pct"`
	} `yaml:"threshold"`

	Crossover struct {
		Fast       int     `yaml:"fast"`
		Slow       int     `yaml:"slow"`
		RSIPeriod  int     `yaml:"rsi_period"`
		Overbought float64 `yaml:"overbought"`
	} `yaml:"crossover"`
}

// LoadConfig reads a YAML backtest config.
func LoadConfig(path string) (*Config, error) {
	cfg, err := confkit.LoadYAML(path, (*Config).prepare)
	if err != nil {
		return nil, fmt.Errorf("backtest: %w", err)
	}
	return cfg, nil
}

// LoadConfigFromReader decodes and defaults a config. Empty input yields
// the defaults.
func LoadConfigFromReader(r io.Reader) (*Config, error) {
	cfg, err := confkit.DecodeYAML(r, (*Config).prepare)
	if err != nil {
		return nil, fmt.Errorf("backtest: %w", err)
	}
	return cfg, nil
}

func (c *Config) prepare() error {
	c.applyDefaults()
	return c.Validate()
}

func (c *Config) applyDefaults() {
	c.Strategy = strings.ToLower(strings.TrimSpace(c.Strategy))
	if c.Strategy == "" {
		c.Strategy = "crossover"
	}
	if c.Interval == "" {
		c.Interval = "1d"
	}
	if c.LookbackDays <= 0 {
		c.LookbackDays = 365
	}
	if c.Lot <= 0 {
		c.Lot = 1
	}
	if c.Threshold.Pct <= 0 {
		c.Threshold.Pct = 1
	}
	if c.Crossover.Fast <= 0 {
		c.Crossover.Fast = 10
	}
	if c.Crossover.Slow <= 0 {
		c.Crossover.Slow = 30
	}
	if c.Crossover.RSIPeriod <= 0 {
		c.Crossover.RSIPeriod = 14
	}
	if c.Crossover.Overbought <= 0 {
		c.Crossover.Overbought = 70
	}
}

func (c *Config) Validate() error {
	switch c.Strategy {
	case "threshold", "crossover":
	default:
		return fmt.Errorf("backtest: unknown strategy %q", c.Strategy)
	}
	if c.Crossover.Fast >= c.Crossover.Slow {
		return fmt.Errorf("backtest: crossover fast period %d must be below slow %d", c.Crossover.Fast, c.Crossover.Slow)
	}
	if c.FeeBps < 0 || c.SlippageBps < 0 {
		return fmt.Errorf("backtest: fee and slippage must be non-negative")
	}
	return nil
}

// NewStrategy builds the configured strategy. name overrides c.Strategy
// when non-empty.
func (c *Config) NewStrategy(name string) (Strategy, error) {
	if name == "" {
		name = c.Strategy
	}
	switch strings.ToLower(name) {
	case "threshold":
		return &ThresholdStrategy{ThresholdPct: c.Threshold.Pct, Lot: c.Lot}, nil
	case "crossover":
		return &CrossoverStrategy{
			Fast:       c.Crossover.Fast,
			Slow:       c.Crossover.Slow,
			RSIPeriod:  c.Crossover.RSIPeriod,
			Overbought: c.Crossover.Overbought,
			Lot:        c.Lot,
		}, nil
	default:
		return nil, fmt.Errorf("backtest: unknown strategy %q", name)
	}
}
