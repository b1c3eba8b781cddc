//go:build integration
// +build integration

package market_test

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	market "github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/pkg/market"
	_ "github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/pkg/market/exchanges/tradier"
	_ "github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/pkg/market/exchanges/yahoo"
	"github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/pkg/options"
)

func TestYahooPricing_Integration(t *testing.T) {
	cfg, err := market.LoadConfigFromReader(strings.NewReader(`
default_pricing: yahoo
providers:
  yahoo:
    type: yahoo
    timeout: 20s
`))
	require.NoError(t, err)
	providers, err := cfg.BuildProviders()
	require.NoError(t, err)

	pricing, err := market.LookupPricing(providers, "", cfg.DefaultPricing)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	now := time.Now()
	bars, err := pricing.FetchBars(ctx, market.BarsRequest{
		Ticker:   "SPY",
		Interval: market.IntervalDay,
		From:     now.AddDate(0, 0, -14),
		To:       now,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, bars)
}

func TestTradierSandboxChain_Integration(t *testing.T) {
	token := os.Getenv("TRADIER_TOKEN")
	if token == "" {
		t.Skip("TRADIER_TOKEN not set")
	}
	cfg := &market.Config{Providers: map[string]*market.ProviderConfig{
		"td": {Type: "tradier", Token: token, Sandbox: true},
	}}
	providers, err := cfg.BuildProviders()
	require.NoError(t, err)
	op, err := market.LookupOptions(providers, "td", "")
	require.NoError(t, err)

	res, err := op.FetchOptions(context.Background(), market.ChainRequest{Ticker: "SPY", Side: options.SideCall})
	require.NoError(t, err)
	assert.NotEqual(t, options.KindError, res.Kind)
}
