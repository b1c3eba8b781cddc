package tradier

import (
	"bytes"
	"encoding/json"

	"github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/pkg/market"
	"github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/pkg/options"
)

// ChainResponse is the body of /v1/markets/options/chains.
type ChainResponse struct {
	Options *struct {
		Option Quotes `json:"option"`
	} `json:"options"`
}

// Quotes decodes Tradier's "one object or array" encoding.
type Quotes []OptionQuote

func (q *Quotes) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*q = nil
		return nil
	}
	if data[0] == '{' {
		var one OptionQuote
		if err := json.Unmarshal(data, &one); err != nil {
			return err
		}
		*q = Quotes{one}
		return nil
	}
	var many []OptionQuote
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*q = many
	return nil
}

// OptionQuote is one contract from a chain response. Epoch fields are in
// milliseconds; zero means the event never happened.
type OptionQuote struct {
	Symbol         string   `json:"symbol"`
	Underlying     string   `json:"underlying"`
	Strike         float64  `json:"strike"`
	OptionType     string   `json:"option_type"`
	ExpirationDate string   `json:"expiration_date"`
	ExpirationType string   `json:"expiration_type"`
	Last           *float64 `json:"last"`
	Bid            *float64 `json:"bid"`
	Ask            *float64 `json:"ask"`
	Volume         *int64   `json:"volume"`
	LastVolume     *int64   `json:"last_volume"`
	OpenInterest   *int64   `json:"open_interest"`
	BidSize        *int64   `json:"bidsize"`
	AskSize        *int64   `json:"asksize"`
	BidDate        int64    `json:"bid_date"`
	AskDate        int64    `json:"ask_date"`
	TradeDate      int64    `json:"trade_date"`
}

// Keep reports whether the contract belongs in a fetch for side.
func (q OptionQuote) Keep(side options.ContractSide) bool {
	if q.OptionType != string(side) || q.ExpirationType != "standard" {
		return false
	}
	return q.Bid != nil && *q.Bid > market.MinBid
}

// Record flattens the quote into a canonical row.
func (q OptionQuote) Record() options.Record {
	rec := options.Record{
		options.FieldStrike:     q.Strike,
		options.FieldOptionType: q.OptionType,
		options.FieldAskDate:    market.EpochColumn(q.AskDate),
		options.FieldBidDate:    market.EpochColumn(q.BidDate),
		options.FieldTradeDate:  market.EpochColumn(q.TradeDate),
	}
	if q.ExpirationDate != "" {
		rec[options.FieldExpirationDate] = q.ExpirationDate
	}
	putFloat(rec, options.FieldLast, q.Last)
	putFloat(rec, options.FieldBid, q.Bid)
	putFloat(rec, options.FieldAsk, q.Ask)
	putInt(rec, options.FieldVolume, q.Volume)
	putInt(rec, options.FieldLastVolume, q.LastVolume)
	putInt(rec, options.FieldOpenInterest, q.OpenInterest)
	putInt(rec, options.FieldBidSize, q.BidSize)
	putInt(rec, options.FieldAskSize, q.AskSize)
	return rec
}

// HistoryResponse is the body of /v1/markets/history.
type HistoryResponse struct {
	History *struct {
		Day Days `json:"day"`
	} `json:"history"`
}

// Days decodes the same "one object or array" encoding as Quotes.
type Days []HistoryDay

func (d *Days) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*d = nil
		return nil
	}
	if data[0] == '{' {
		var one HistoryDay
		if err := json.Unmarshal(data, &one); err != nil {
			return err
		}
		*d = Days{one}
		return nil
	}
	var many []HistoryDay
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*d = many
	return nil
}

// HistoryDay is one daily bar.
type HistoryDay struct {
	Date   string  `json:"date"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

func putFloat(rec options.Record, name string, v *float64) {
	if v != nil {
		rec[name] = *v
	}
}

func putInt(rec options.Record, name string, v *int64) {
	if v != nil {
		rec[name] = *v
	}
}
