package config_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appconfig "github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/internal/config"
	_ "github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/pkg/market/exchanges/alpaca"
	_ "github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/pkg/market/exchanges/polygon"
	_ "github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/pkg/market/exchanges/tradier"
	_ "github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/pkg/market/exchanges/yahoo"
)

func TestLoadProjectConfig(t *testing.T) {
	t.Setenv("NO_DOTENV", "1")
	t.Setenv("TD_TOKEN", "td-token")
	t.Setenv("APCA_API_KEY_ID", "key")
	t.Setenv("APCA_API_SECRET_KEY", "secret")

	path, err := filepath.Abs(filepath.Join("..", "..", "etc", "engine.yaml"))
	require.NoError(t, err)

	cfg, err := appconfig.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, path, cfg.MainPath())
	assert.Equal(t, filepath.Dir(path), cfg.BaseDir())
	assert.Equal(t, []string{"tdcalls", "tdputs"}, cfg.Fetch.Datasets)
	assert.Equal(t, "localhost:6379", cfg.Redis.Host)
	assert.Equal(t, 6, cfg.Queue.Queues["default"])

	require.NotNil(t, cfg.Market.Value)
	assert.Equal(t, "tradier", cfg.Market.Value.Default)
	assert.Equal(t, "td-token", cfg.Market.Value.Providers["tradier"].Token)

	providers, err := cfg.Market.Value.BuildProviders()
	require.NoError(t, err)
	assert.Contains(t, providers, "tradier")
	assert.Contains(t, providers, "yahoo")

	require.NotNil(t, cfg.Backtest.Value)
	assert.Equal(t, "crossover", cfg.Backtest.Value.Strategy)
	assert.Equal(t, 30, cfg.Backtest.Value.Crossover.Slow)

	// Relative paths fall back to the project root.
	rooted, err := appconfig.Load(filepath.Join("etc", "engine.yaml"))
	require.NoError(t, err)
	assert.Equal(t, path, rooted.MainPath())
}
