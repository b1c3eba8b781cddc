package tradier

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/pkg/calendar"
	"github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/pkg/market"
	"github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/pkg/market/exchanges/rest"
	"github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/pkg/options"
)

const chainBody = `{"options":{"option":[
 {"symbol":"SPY240119C00470000","strike":470,"option_type":"call","expiration_type":"standard","expiration_date":"2024-01-19",
  "bid":5.1,"ask":5.2,"last":5.15,"volume":100,"open_interest":2000,"bidsize":10,"asksize":12,
  "bid_date":1704900600000,"ask_date":1704900600000,"trade_date":0},
 {"symbol":"SPY240119C00475000","strike":475,"option_type":"call","expiration_type":"standard","expiration_date":"2024-01-19",
  "bid":2.0,"ask":2.1,"bid_date":1704900600000,"ask_date":1704900600000,"trade_date":1704900600000},
 {"symbol":"SPY240119C00500000","strike":500,"option_type":"call","expiration_type":"standard","expiration_date":"2024-01-19",
  "bid":0.01,"ask":0.02},
 {"symbol":"SPY240119P00470000","strike":470,"option_type":"put","expiration_type":"standard","expiration_date":"2024-01-19",
  "bid":3.0,"ask":3.1},
 {"symbol":"SPY240112C00470000","strike":470,"option_type":"call","expiration_type":"weeklys","expiration_date":"2024-01-12",
  "bid":4.0,"ask":4.1}
]}}`

// 2024-01-10 11:00 ET, inside the session.
var fetchNow = time.Date(2024, 1, 10, 11, 0, 30, 0, calendar.Eastern())

func newTestProvider(t *testing.T, handler http.HandlerFunc) *Provider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewProvider(
		WithToken("secret"),
		WithClientOptions(rest.WithBaseURL(server.URL), rest.WithBackoff(0), rest.WithMaxRetries(0)),
	)
}

func TestFetchOptions_FiltersAndStamps(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/markets/options/chains", r.URL.Path)
		assert.Equal(t, "SPY", r.URL.Query().Get("symbol"))
		assert.Equal(t, "2024-01-19", r.URL.Query().Get("expiration"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(chainBody))
	})

	res, err := p.FetchOptions(context.Background(), market.ChainRequest{
		Ticker:      "spy",
		Side:        options.SideCall,
		LatestClose: 472,
		Now:         fetchNow,
	})
	require.NoError(t, err)
	require.Equal(t, options.KindSuccess, res.Kind)
	require.Len(t, res.Batch, 2)

	first := res.Batch[0]
	assert.Equal(t, 470.0, first[options.FieldStrike])
	assert.Equal(t, "SPY", first[options.FieldTicker])
	assert.Equal(t, "2024-01-10 11:00:00", first[options.FieldCreated])
	assert.Equal(t, "2024-01-10 11:00:00", first[options.FieldQuoteDate])
	assert.Equal(t, "2024-01-10 10:30:00", first[options.FieldBidDate])
	assert.Nil(t, first[options.FieldTradeDate])
	assert.Equal(t, int64(10), first[options.FieldBidSize])
	assert.NotContains(t, first, "symbol")

	assert.Equal(t, 475.0, res.Batch[1][options.FieldStrike])
}

func TestFetchOptions_SingleObjectChain(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"options":{"option":{"strike":470,"option_type":"put","expiration_type":"standard","bid":1.5,"ask":1.6}}}`))
	})
	res, err := p.FetchOptions(context.Background(), market.ChainRequest{Ticker: "SPY", Side: options.SidePut, Now: fetchNow})
	require.NoError(t, err)
	require.Equal(t, options.KindSuccess, res.Kind)
	require.Len(t, res.Batch, 1)
	assert.Equal(t, "2024-01-19", res.Batch[0][options.FieldExpirationDate])
}

func TestFetchOptions_NoChainIsEmpty(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"options":null}`))
	})
	res, err := p.FetchOptions(context.Background(), market.ChainRequest{Ticker: "SPY", Side: options.SideCall, Now: fetchNow})
	require.NoError(t, err)
	assert.Equal(t, options.KindEmpty, res.Kind)
	assert.Empty(t, res.Batch)
}

func TestFetchOptions_AuthFailure(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte("Invalid Access Token"))
	})
	res, err := p.FetchOptions(context.Background(), market.ChainRequest{Ticker: "SPY", Side: options.SideCall, Now: fetchNow})
	require.Error(t, err)
	assert.Equal(t, options.KindError, res.Kind)
	assert.Empty(t, res.Batch)

	var perr *market.ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, http.StatusUnauthorized, perr.Status)
}

type recordingPersistence struct {
	chains int
	bars   int
}

func (r *recordingPersistence) RecordChain(context.Context, string, options.ContractSide, options.Batch) error {
	r.chains++
	return nil
}

func (r *recordingPersistence) RecordBars(context.Context, string, string, []market.Bar) error {
	r.bars++
	return nil
}

func TestFetchBars_DailyHistory(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/markets/history", r.URL.Path)
		assert.Equal(t, "daily", r.URL.Query().Get("interval"))
		_, _ = w.Write([]byte(`{"history":{"day":[
			{"date":"2024-01-08","open":470,"high":475,"low":469,"close":474,"volume":1000},
			{"date":"2024-01-09","open":474,"high":476,"low":472,"close":473,"volume":900}]}}`))
	})
	persist := &recordingPersistence{}
	p.SetPersistence(persist)

	bars, err := p.FetchBars(context.Background(), market.BarsRequest{
		Ticker:   "spy",
		Interval: market.IntervalDay,
		From:     time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC),
		To:       time.Date(2024, 1, 9, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, "SPY", bars[0].Ticker)
	assert.Equal(t, 473.0, bars[1].Close)
	assert.Equal(t, 1, persist.bars)
}

func TestRegisteredBuilder(t *testing.T) {
	cfg := &market.Config{
		Default: "td",
		Providers: map[string]*market.ProviderConfig{
			"td": {Type: "tradier", Token: "x", Sandbox: true, StrikeWindow: 5, MaxStrikeOffset: 20},
		},
	}
	providers, err := cfg.BuildProviders()
	require.NoError(t, err)
	op, err := market.LookupOptions(providers, "", cfg.Default)
	require.NoError(t, err)
	assert.Equal(t, "td", op.Name())
	assert.Equal(t, options.PrefixTradier, op.DatasetPrefix())

	tp := op.(*Provider)
	assert.Equal(t, sandboxBaseURL, tp.client.rest.BaseURL())
	assert.Equal(t, 5.0, tp.strikeWindow)
}
