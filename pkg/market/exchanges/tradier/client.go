package tradier

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/pkg/calendar"
	"github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/pkg/market"
	"github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/pkg/market/exchanges/rest"
	"github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/pkg/options"
)

const (
	defaultBaseURL = "https://api.tradier.com"
	sandboxBaseURL = "https://sandbox.tradier.com"
	providerName   = "tradier"
)

// Client wraps the Tradier market data endpoints.
type Client struct {
	rest *rest.Client
}

// NewClient constructs a Tradier client authenticated with token.
func NewClient(token string, opts ...rest.Option) *Client {
	all := append([]rest.Option{rest.WithHeader("Authorization", bearer(token))}, opts...)
	return &Client{rest: rest.New(providerName, defaultBaseURL, all...)}
}

func bearer(token string) string {
	if token == "" {
		return ""
	}
	return "Bearer " + token
}

// OptionChain returns every contract of symbol expiring on expiration.
func (c *Client) OptionChain(ctx context.Context, symbol string, expiration time.Time) (Quotes, error) {
	q := url.Values{
		"symbol":     {strings.ToUpper(symbol)},
		"expiration": {expiration.Format(options.DateLayout)},
	}
	var resp ChainResponse
	if err := c.rest.GetJSON(ctx, "/v1/markets/options/chains", q, &resp); err != nil {
		return nil, err
	}
	if resp.Options == nil {
		return nil, nil
	}
	return resp.Options.Option, nil
}

// History returns daily or weekly bars between from and to inclusive.
func (c *Client) History(ctx context.Context, symbol string, interval market.Interval, from, to time.Time) ([]market.Bar, error) {
	var iv string
	switch interval {
	case market.IntervalDay, "":
		iv = "daily"
	case market.IntervalWeek:
		iv = "weekly"
	default:
		return nil, fmt.Errorf("tradier: unsupported history interval %q", interval)
	}
	q := url.Values{
		"symbol":   {strings.ToUpper(symbol)},
		"interval": {iv},
		"start":    {from.Format(options.DateLayout)},
		"end":      {to.Format(options.DateLayout)},
	}
	var resp HistoryResponse
	if err := c.rest.GetJSON(ctx, "/v1/markets/history", q, &resp); err != nil {
		return nil, err
	}
	if resp.History == nil {
		return nil, nil
	}
	bars := make([]market.Bar, 0, len(resp.History.Day))
	for _, d := range resp.History.Day {
		ts, err := time.ParseInLocation(options.DateLayout, d.Date, calendar.Eastern())
		if err != nil {
			return nil, fmt.Errorf("tradier: history date %q: %w", d.Date, err)
		}
		bars = append(bars, market.Bar{
			Ticker: strings.ToUpper(symbol),
			Time:   ts,
			Open:   d.Open,
			High:   d.High,
			Low:    d.Low,
			Close:  d.Close,
			Volume: d.Volume,
		})
	}
	return bars, nil
}
