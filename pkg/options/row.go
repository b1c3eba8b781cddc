package options

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// OptionRow is the typed view of a normalized record. Nil pointers are
// absent columns.
type OptionRow struct {
	Ask            *float64      `json:"ask,omitempty" mapstructure:"ask" parquet:"ask,optional"`
	AskDate        *string       `json:"ask_date,omitempty" mapstructure:"ask_date" parquet:"ask_date,optional"`
	AskSize        *int64        `json:"ask_size,omitempty" mapstructure:"ask_size" parquet:"ask_size,optional"`
	Bid            *float64      `json:"bid,omitempty" mapstructure:"bid" parquet:"bid,optional"`
	BidDate        *string       `json:"bid_date,omitempty" mapstructure:"bid_date" parquet:"bid_date,optional"`
	BidSize        *int64        `json:"bid_size,omitempty" mapstructure:"bid_size" parquet:"bid_size,optional"`
	QuoteDate      *string       `json:"quote_date,omitempty" mapstructure:"quote_date" parquet:"quote_date,optional"`
	ExpirationDate *string       `json:"expiration_date,omitempty" mapstructure:"expiration_date" parquet:"expiration_date,optional"`
	Last           *float64      `json:"last,omitempty" mapstructure:"last" parquet:"last,optional"`
	LastVolume     *int64        `json:"last_volume,omitempty" mapstructure:"last_volume" parquet:"last_volume,optional"`
	OpenInterest   *int64        `json:"open_interest,omitempty" mapstructure:"open_interest" parquet:"open_interest,optional"`
	OptionType     *ContractSide `json:"option_type,omitempty" mapstructure:"option_type" parquet:"option_type,optional"`
	Strike         *float64      `json:"strike,omitempty" mapstructure:"strike" parquet:"strike,optional"`
	Ticker         *string       `json:"ticker,omitempty" mapstructure:"ticker" parquet:"ticker,optional"`
	TradeDate      *string       `json:"trade_date,omitempty" mapstructure:"trade_date" parquet:"trade_date,optional"`
	Created        *string       `json:"created,omitempty" mapstructure:"created" parquet:"created,optional"`
	Volume         *int64        `json:"volume,omitempty" mapstructure:"volume" parquet:"volume,optional"`
}

// OptionRow decodes the record into its typed form. Values are weakly typed
// so "1.5" decodes into a float column and 3.0 into an integer column.
func (r Record) OptionRow() (OptionRow, error) {
	var row OptionRow
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &row,
	})
	if err != nil {
		return row, fmt.Errorf("options: build decoder: %w", err)
	}
	if err := dec.Decode(NormalizeFields(r, Fields)); err != nil {
		return row, fmt.Errorf("options: decode row: %w", err)
	}
	return row, nil
}

// Record flattens the typed row, omitting absent columns.
func (o OptionRow) Record() Record {
	rec := make(Record, len(Fields))
	putFloat(rec, FieldAsk, o.Ask)
	putString(rec, FieldAskDate, o.AskDate)
	putInt(rec, FieldAskSize, o.AskSize)
	putFloat(rec, FieldBid, o.Bid)
	putString(rec, FieldBidDate, o.BidDate)
	putInt(rec, FieldBidSize, o.BidSize)
	putString(rec, FieldQuoteDate, o.QuoteDate)
	putString(rec, FieldExpirationDate, o.ExpirationDate)
	putFloat(rec, FieldLast, o.Last)
	putInt(rec, FieldLastVolume, o.LastVolume)
	putInt(rec, FieldOpenInterest, o.OpenInterest)
	if o.OptionType != nil {
		rec[FieldOptionType] = string(*o.OptionType)
	}
	putFloat(rec, FieldStrike, o.Strike)
	putString(rec, FieldTicker, o.Ticker)
	putString(rec, FieldTradeDate, o.TradeDate)
	putString(rec, FieldCreated, o.Created)
	putInt(rec, FieldVolume, o.Volume)
	return rec
}

// Rows decodes every record of the batch.
func (b Batch) Rows() ([]OptionRow, error) {
	rows := make([]OptionRow, 0, len(b))
	for i, rec := range b {
		row, err := rec.OptionRow()
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// BatchFromRows flattens typed rows into a batch.
func BatchFromRows(rows []OptionRow) Batch {
	out := make(Batch, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.Record())
	}
	return out
}

func putFloat(rec Record, name string, v *float64) {
	if v != nil {
		rec[name] = *v
	}
}

func putInt(rec Record, name string, v *int64) {
	if v != nil {
		rec[name] = *v
	}
}

func putString(rec Record, name string, v *string) {
	if v != nil {
		rec[name] = *v
	}
}
