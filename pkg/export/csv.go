package export

import (
	"fmt"
	"io"
	"strconv"

	"github.com/gocarina/gocsv"

	"github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/pkg/options"
)

// csvRow is the flat text form of an option row. An empty cell is an absent
// column.
type csvRow struct {
	Ask            string `csv:"ask"`
	AskDate        string `csv:"ask_date"`
	AskSize        string `csv:"ask_size"`
	Bid            string `csv:"bid"`
	BidDate        string `csv:"bid_date"`
	BidSize        string `csv:"bid_size"`
	QuoteDate      string `csv:"quote_date"`
	ExpirationDate string `csv:"expiration_date"`
	Last           string `csv:"last"`
	LastVolume     string `csv:"last_volume"`
	OpenInterest   string `csv:"open_interest"`
	OptionType     string `csv:"option_type"`
	Strike         string `csv:"strike"`
	Ticker         string `csv:"ticker"`
	TradeDate      string `csv:"trade_date"`
	Created        string `csv:"created"`
	Volume         string `csv:"volume"`
}

func toCSVRow(o options.OptionRow) csvRow {
	row := csvRow{
		Ask:            floatCell(o.Ask),
		AskDate:        stringCell(o.AskDate),
		AskSize:        intCell(o.AskSize),
		Bid:            floatCell(o.Bid),
		BidDate:        stringCell(o.BidDate),
		BidSize:        intCell(o.BidSize),
		QuoteDate:      stringCell(o.QuoteDate),
		ExpirationDate: stringCell(o.ExpirationDate),
		Last:           floatCell(o.Last),
		LastVolume:     intCell(o.LastVolume),
		OpenInterest:   intCell(o.OpenInterest),
		Strike:         floatCell(o.Strike),
		Ticker:         stringCell(o.Ticker),
		TradeDate:      stringCell(o.TradeDate),
		Created:        stringCell(o.Created),
		Volume:         intCell(o.Volume),
	}
	if o.OptionType != nil {
		row.OptionType = string(*o.OptionType)
	}
	return row
}

func (c csvRow) record() options.Record {
	rec := options.Record{}
	cells := []struct {
		name  string
		value string
	}{
		{options.FieldAsk, c.Ask},
		{options.FieldAskDate, c.AskDate},
		{options.FieldAskSize, c.AskSize},
		{options.FieldBid, c.Bid},
		{options.FieldBidDate, c.BidDate},
		{options.FieldBidSize, c.BidSize},
		{options.FieldQuoteDate, c.QuoteDate},
		{options.FieldExpirationDate, c.ExpirationDate},
		{options.FieldLast, c.Last},
		{options.FieldLastVolume, c.LastVolume},
		{options.FieldOpenInterest, c.OpenInterest},
		{options.FieldOptionType, c.OptionType},
		{options.FieldStrike, c.Strike},
		{options.FieldTicker, c.Ticker},
		{options.FieldTradeDate, c.TradeDate},
		{options.FieldCreated, c.Created},
		{options.FieldVolume, c.Volume},
	}
	for _, cell := range cells {
		if cell.value != "" {
			rec[cell.name] = cell.value
		}
	}
	return rec
}

func writeCSV(w io.Writer, rows []options.OptionRow) error {
	out := make([]csvRow, 0, len(rows))
	for _, row := range rows {
		out = append(out, toCSVRow(row))
	}
	if err := gocsv.Marshal(&out, w); err != nil {
		return fmt.Errorf("export: encode csv: %w", err)
	}
	return nil
}

// readCSV decodes text cells back into typed columns through OptionRow, so
// "470" in the strike column comes back as a float.
func readCSV(r io.Reader) (options.Batch, error) {
	var in []csvRow
	if err := gocsv.Unmarshal(r, &in); err != nil {
		return nil, fmt.Errorf("export: decode csv: %w", err)
	}
	batch := make(options.Batch, 0, len(in))
	for _, c := range in {
		batch = append(batch, c.record())
	}
	rows, err := batch.Rows()
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	return options.BatchFromRows(rows), nil
}

func floatCell(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func intCell(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}

func stringCell(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
