package yahoo

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/pkg/market"
	"github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/pkg/market/exchanges/rest"
	"github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/pkg/options"
)

const (
	defaultBaseURL = "https://query2.finance.yahoo.com"
	providerName   = "yahoo"
	userAgent      = "Mozilla/5.0 (X11; Linux x86_64) stock-analysis-engine"
)

// Client reads the public Yahoo Finance JSON endpoints.
type Client struct {
	rest *rest.Client
}

// NewClient constructs a Yahoo client.
func NewClient(opts ...rest.Option) *Client {
	all := append([]rest.Option{rest.WithHeader("User-Agent", userAgent)}, opts...)
	return &Client{rest: rest.New(providerName, defaultBaseURL, all...)}
}

// Chain is one side of an option chain plus the underlying's spot price.
type Chain struct {
	Underlying  string
	MarketPrice float64
	Contracts   []gjson.Result
}

// OptionChain returns the contracts of one side for the given expiration.
func (c *Client) OptionChain(ctx context.Context, ticker string, side options.ContractSide, expiration time.Time) (Chain, error) {
	ticker = strings.ToUpper(ticker)
	exp := time.Date(expiration.Year(), expiration.Month(), expiration.Day(), 0, 0, 0, 0, time.UTC)
	q := url.Values{"date": {strconv.FormatInt(exp.Unix(), 10)}}
	body, err := c.rest.Get(ctx, "/v7/finance/options/"+url.PathEscape(ticker), q)
	if err != nil {
		return Chain{}, err
	}
	if !gjson.ValidBytes(body) {
		return Chain{}, &market.ProviderError{Provider: providerName, Err: fmt.Errorf("invalid json")}
	}
	root := gjson.ParseBytes(body)
	if e := root.Get("optionChain.error"); e.Exists() && e.Type != gjson.Null {
		return Chain{}, &market.ProviderError{Provider: providerName, Err: fmt.Errorf("%s", e.Get("description").String())}
	}
	result := root.Get("optionChain.result.0")
	chain := Chain{
		Underlying:  ticker,
		MarketPrice: result.Get("quote.regularMarketPrice").Float(),
	}
	key := "calls"
	if side == options.SidePut {
		key = "puts"
	}
	chain.Contracts = result.Get("options.0." + key).Array()
	return chain, nil
}

// Chart returns bars from the v8 chart endpoint. Bars with a missing close
// are skipped.
func (c *Client) Chart(ctx context.Context, ticker string, interval market.Interval, from, to time.Time) ([]market.Bar, error) {
	iv, err := chartInterval(interval)
	if err != nil {
		return nil, err
	}
	ticker = strings.ToUpper(ticker)
	q := url.Values{
		"interval": {iv},
		"period1":  {strconv.FormatInt(from.Unix(), 10)},
		"period2":  {strconv.FormatInt(to.Unix(), 10)},
	}
	body, err := c.rest.Get(ctx, "/v8/finance/chart/"+url.PathEscape(ticker), q)
	if err != nil {
		return nil, err
	}
	result := gjson.GetBytes(body, "chart.result.0")
	if !result.Exists() {
		desc := gjson.GetBytes(body, "chart.error.description").String()
		return nil, &market.ProviderError{Provider: providerName, Err: fmt.Errorf("chart: %s", desc)}
	}
	stamps := result.Get("timestamp").Array()
	quote := result.Get("indicators.quote.0")
	opens := quote.Get("open").Array()
	highs := quote.Get("high").Array()
	lows := quote.Get("low").Array()
	closes := quote.Get("close").Array()
	volumes := quote.Get("volume").Array()

	bars := make([]market.Bar, 0, len(stamps))
	for i, ts := range stamps {
		if i >= len(closes) || closes[i].Type == gjson.Null {
			continue
		}
		bars = append(bars, market.Bar{
			Ticker: ticker,
			Time:   time.Unix(ts.Int(), 0).UTC(),
			Open:   at(opens, i),
			High:   at(highs, i),
			Low:    at(lows, i),
			Close:  closes[i].Float(),
			Volume: at(volumes, i),
		})
	}
	return bars, nil
}

func at(values []gjson.Result, i int) float64 {
	if i >= len(values) {
		return 0
	}
	return values[i].Float()
}

func chartInterval(interval market.Interval) (string, error) {
	switch interval {
	case market.IntervalMinute:
		return "1m", nil
	case market.IntervalHour:
		return "60m", nil
	case market.IntervalDay, "":
		return "1d", nil
	case market.IntervalWeek:
		return "1wk", nil
	default:
		return "", fmt.Errorf("yahoo: unsupported interval %q", interval)
	}
}
