package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/internal/config"
	"github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/pkg/market"
)

func TestConfigSummaryLines(t *testing.T) {
	assert.Equal(t, []string{"Configuration: <nil>"}, ConfigSummaryLines(nil))

	cfg := &config.Config{Env: "dev"}
	cfg.Queue.Disabled = true
	cfg.S3 = config.S3Conf{Enabled: true, Endpoint: "minio:9000", Bucket: "pricing"}
	cfg.Postgres = config.PostgresConf{DSN: "postgres://secret@db/engine", MaxOpen: 10, MaxIdle: 5}
	cfg.Fetch.Datasets = []string{"tdcalls"}
	cfg.Fetch.Tickers = []string{"SPY", "QQQ"}
	cfg.Fetch.Interval = 60
	cfg.Market.File = "/etc/market.yaml"
	cfg.Market.Value = &market.Config{
		Default:        "td",
		DefaultPricing: "yho",
		Providers:      map[string]*market.ProviderConfig{"yho": {}, "td": {}},
	}

	lines := ConfigSummaryLines(cfg)
	assert.Contains(t, lines, "Environment: dev")
	assert.Contains(t, lines, "Redis: not configured")
	assert.Contains(t, lines, "S3: minio:9000/pricing")
	assert.Contains(t, lines, "Postgres archive: configured (pool 10/5)")
	assert.Contains(t, lines, "Queue: disabled (tasks run inline)")
	assert.Contains(t, lines, "Market config: /etc/market.yaml (providers=td,yho default=td pricing=yho)")
	assert.Contains(t, lines, "Backtest config: not configured")
	assert.Contains(t, lines, "Tickers: SPY,QQQ every 60s")
	for _, line := range lines {
		assert.NotContains(t, line, "secret")
	}
}
