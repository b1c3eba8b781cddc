package yahoo

import (
	"context"
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

const optionsBody = `{"optionChain":{"result":[{"underlyingSymbol":"SPY",
 "quote":{"regularMarketPrice":472.0},
 "options":[{"expirationDate":1705622400,
  "calls":[
   {"contractSymbol":"SPY240119C00450000","strike":450,"lastPrice":22,"bid":21.9,"ask":22.1,"volume":5,"openInterest":10,"expiration":1705622400,"lastTradeDate":1704900540},
   {"contractSymbol":"SPY240119C00470000","strike":470,"lastPrice":5.15,"bid":5.1,"ask":5.2,"volume":100,"openInterest":2000,"expiration":1705622400,"lastTradeDate":1704900540},
   {"contractSymbol":"SPY240119C00475000","strike":475,"bid":0,"ask":2.1,"expiration":1705622400}
  ],
  "puts":[{"contractSymbol":"SPY240119P00470000","strike":470,"bid":3,"ask":3.1,"expiration":1705622400}]}]}],
 "error":null}}`

var fetchNow = time.Date(2024, 1, 10, 11, 0, 0, 0, calendar.Eastern())

func TestFetchOptions_UsesMarketPriceWindow(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v7/finance/options/SPY", r.URL.Path)
		assert.Equal(t, "1705622400", r.URL.Query().Get("date"))
		_, _ = w.Write([]byte(optionsBody))
	}))
	defer server.Close()

	p := NewProvider(WithClientOptions(rest.WithBaseURL(server.URL)))
	res, err := p.FetchOptions(context.Background(), market.ChainRequest{Ticker: "SPY", Side: options.SideCall, Now: fetchNow})
	require.NoError(t, err)
	require.Equal(t, options.KindSuccess, res.Kind)
	require.Len(t, res.Batch, 1)

	row := res.Batch[0]
	assert.Equal(t, 470.0, row[options.FieldStrike])
	assert.Equal(t, int64(2000), row[options.FieldOpenInterest])
	assert.Equal(t, "2024-01-19", row[options.FieldExpirationDate])
	assert.Equal(t, "2024-01-10 10:29:00", row[options.FieldTradeDate])
	assert.Nil(t, row[options.FieldBidDate])
}

func TestFetchOptions_ProviderErrorPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"optionChain":{"result":[],"error":{"code":"Not Found","description":"No data found"}}}`))
	}))
	defer server.Close()

	p := NewProvider(WithClientOptions(rest.WithBaseURL(server.URL)))
	res, err := p.FetchOptions(context.Background(), market.ChainRequest{Ticker: "NOPE", Side: options.SidePut, Now: fetchNow})
	require.Error(t, err)
	assert.ErrorIs(t, err, market.ErrProvider)
	assert.Equal(t, options.KindError, res.Kind)
}

func TestFetchBars_SkipsMissingCloses(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v8/finance/chart/SPY", r.URL.Path)
		assert.Equal(t, "1d", r.URL.Query().Get("interval"))
		_, _ = w.Write([]byte(`{"chart":{"result":[{"timestamp":[1704810600,1704897000,1704983400],
			"indicators":{"quote":[{"open":[470,474,null],"high":[475,476,null],"low":[469,472,null],
			"close":[474,473,null],"volume":[1000,900,null]}]}}],"error":null}}`))
	}))
	defer server.Close()

	p := NewProvider(WithClientOptions(rest.WithBaseURL(server.URL)))
	bars, err := p.FetchBars(context.Background(), market.BarsRequest{
		Ticker: "spy",
		From:   fetchNow.AddDate(0, 0, -5),
		To:     fetchNow,
	})
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, 474.0, bars[0].Close)
	assert.Equal(t, 900.0, bars[1].Volume)
	assert.Equal(t, time.Unix(1704897000, 0).UTC(), bars[1].Time)
}
