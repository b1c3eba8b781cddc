package alpaca

import (
	"time"

	"github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/pkg/market"
	"github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/pkg/options"
)

// SnapshotsResponse is one page of /v1beta1/options/snapshots/{underlying}.
type SnapshotsResponse struct {
	Snapshots     map[string]Snapshot `json:"snapshots"`
	NextPageToken *string             `json:"next_page_token"`
}

// Snapshot is the latest market state of one contract.
type Snapshot struct {
	LatestQuote *Quote `json:"latestQuote"`
	LatestTrade *Trade `json:"latestTrade"`
	DailyBar    *Bar   `json:"dailyBar"`
}

// Quote is an NBBO quote.
type Quote struct {
	AskPrice float64   `json:"ap"`
	AskSize  int64     `json:"as"`
	BidPrice float64   `json:"bp"`
	BidSize  int64     `json:"bs"`
	Time     time.Time `json:"t"`
}

// Trade is the last print.
type Trade struct {
	Price float64   `json:"p"`
	Size  int64     `json:"s"`
	Time  time.Time `json:"t"`
}

// Bar is an OHLCV bar as returned by the data API.
type Bar struct {
	Open   float64   `json:"o"`
	High   float64   `json:"h"`
	Low    float64   `json:"l"`
	Close  float64   `json:"c"`
	Volume float64   `json:"v"`
	Time   time.Time `json:"t"`
}

// BarsResponse is one page of /v2/stocks/{symbol}/bars.
type BarsResponse struct {
	Bars          []Bar   `json:"bars"`
	NextPageToken *string `json:"next_page_token"`
}

// Contract pairs a parsed OCC symbol with its snapshot.
type Contract struct {
	options.Contract
	Snapshot Snapshot
}

func (c Contract) bid() float64 {
	if c.Snapshot.LatestQuote == nil {
		return 0
	}
	return c.Snapshot.LatestQuote.BidPrice
}

// Keep reports whether the contract belongs in a fetch for side.
func (c Contract) Keep(side options.ContractSide) bool {
	return c.Side == side && c.bid() > market.MinBid
}

// Record flattens the contract into a canonical row. Open interest is not
// part of a snapshot and stays absent.
func (c Contract) Record() options.Record {
	rec := options.Record{
		options.FieldStrike:         c.Strike,
		options.FieldOptionType:     string(c.Side),
		options.FieldExpirationDate: c.Expiration.Format(options.DateLayout),
		options.FieldAskDate:        nil,
		options.FieldBidDate:        nil,
		options.FieldTradeDate:      nil,
	}
	if q := c.Snapshot.LatestQuote; q != nil {
		rec[options.FieldAsk] = q.AskPrice
		rec[options.FieldAskSize] = q.AskSize
		rec[options.FieldBid] = q.BidPrice
		rec[options.FieldBidSize] = q.BidSize
		rec[options.FieldAskDate] = tick(q.Time)
		rec[options.FieldBidDate] = tick(q.Time)
	}
	if t := c.Snapshot.LatestTrade; t != nil {
		rec[options.FieldLast] = t.Price
		rec[options.FieldLastVolume] = t.Size
		rec[options.FieldTradeDate] = tick(t.Time)
	}
	if b := c.Snapshot.DailyBar; b != nil {
		rec[options.FieldVolume] = int64(b.Volume)
	}
	return rec
}

func tick(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return market.FormatTick(t)
}
