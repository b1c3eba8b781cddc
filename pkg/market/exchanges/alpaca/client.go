package alpaca

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/pkg/market"
	"github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/pkg/market/exchanges/rest"
	"github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/pkg/options"
)

const (
	defaultBaseURL = "https://data.alpaca.markets"
	providerName   = "alpaca"
	pageLimit      = 1000
	maxPages       = 50
)

// Client wraps the Alpaca market data API.
type Client struct {
	rest *rest.Client
	feed string
}

// NewClient constructs a client authenticated with an API key pair. feed
// selects the options feed ("indicative" or "opra"); empty uses the account
// default.
func NewClient(keyID, secret, feed string, opts ...rest.Option) *Client {
	all := append([]rest.Option{
		rest.WithHeader("APCA-API-KEY-ID", keyID),
		rest.WithHeader("APCA-API-SECRET-KEY", secret),
	}, opts...)
	return &Client{rest: rest.New(providerName, defaultBaseURL, all...), feed: feed}
}

// OptionSnapshots returns every contract of underlying on one side and
// expiration, following next_page_token until exhausted.
func (c *Client) OptionSnapshots(ctx context.Context, underlying string, side options.ContractSide, expiration time.Time) ([]Contract, error) {
	underlying = strings.ToUpper(underlying)
	q := url.Values{
		"type":            {string(side)},
		"expiration_date": {expiration.Format(options.DateLayout)},
		"limit":           {strconv.Itoa(pageLimit)},
	}
	if c.feed != "" {
		q.Set("feed", c.feed)
	}

	var out []Contract
	for page := 0; page < maxPages; page++ {
		var resp SnapshotsResponse
		if err := c.rest.GetJSON(ctx, "/v1beta1/options/snapshots/"+url.PathEscape(underlying), q, &resp); err != nil {
			return nil, err
		}
		for symbol, snap := range resp.Snapshots {
			contract, err := options.ParseOCCSymbol(symbol)
			if err != nil {
				logx.WithContext(ctx).Errorf("alpaca: skip contract symbol=%s err=%v", symbol, err)
				continue
			}
			out = append(out, Contract{Contract: contract, Snapshot: snap})
		}
		if resp.NextPageToken == nil || *resp.NextPageToken == "" {
			break
		}
		q.Set("page_token", *resp.NextPageToken)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Strike < out[j].Strike })
	return out, nil
}

// StockBars returns bars for symbol between from and to.
func (c *Client) StockBars(ctx context.Context, symbol string, interval market.Interval, from, to time.Time) ([]market.Bar, error) {
	tf, err := timeframe(interval)
	if err != nil {
		return nil, err
	}
	symbol = strings.ToUpper(symbol)
	q := url.Values{
		"timeframe":  {tf},
		"start":      {from.UTC().Format(time.RFC3339)},
		"end":        {to.UTC().Format(time.RFC3339)},
		"limit":      {strconv.Itoa(pageLimit * 10)},
		"adjustment": {"raw"},
	}
	var bars []market.Bar
	for page := 0; page < maxPages; page++ {
		var resp BarsResponse
		if err := c.rest.GetJSON(ctx, "/v2/stocks/"+url.PathEscape(symbol)+"/bars", q, &resp); err != nil {
			return nil, err
		}
		for _, b := range resp.Bars {
			bars = append(bars, market.Bar{
				Ticker: symbol,
				Time:   b.Time,
				Open:   b.Open,
				High:   b.High,
				Low:    b.Low,
				Close:  b.Close,
				Volume: b.Volume,
			})
		}
		if resp.NextPageToken == nil || *resp.NextPageToken == "" {
			break
		}
		q.Set("page_token", *resp.NextPageToken)
	}
	return bars, nil
}

func timeframe(interval market.Interval) (string, error) {
	switch interval {
	case market.IntervalMinute:
		return "1Min", nil
	case market.IntervalHour:
		return "1Hour", nil
	case market.IntervalDay, "":
		return "1Day", nil
	case market.IntervalWeek:
		return "1Week", nil
	default:
		return "", fmt.Errorf("alpaca: unsupported interval %q", interval)
	}
}
