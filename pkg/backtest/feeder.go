package backtest

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/pkg/market"
)

// PriceFeeder emits snapshots built from a static close series.
type PriceFeeder struct {
	ticker string
	prices []float64
	idx    int
}

func NewPriceFeeder(ticker string, prices []float64) *PriceFeeder {
	return &PriceFeeder{ticker: ticker, prices: prices}
}

func (f *PriceFeeder) Next(context.Context) (*Snapshot, bool, error) {
	if f.idx >= len(f.prices) {
		return nil, false, nil
	}
	snap := &Snapshot{Ticker: f.ticker, Close: f.prices[f.idx]}
	if f.idx > 0 {
		snap.Change = change(f.prices[f.idx-1], snap.Close)
	}
	f.idx++
	return snap, true, nil
}

// BarFeeder replays OHLCV bars in time order.
type BarFeeder struct {
	ticker string
	bars   []market.Bar
	idx    int
}

// NewBarFeeder sorts a copy of bars by time.
func NewBarFeeder(ticker string, bars []market.Bar) *BarFeeder {
	sorted := make([]market.Bar, len(bars))
	copy(sorted, bars)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Time.Before(sorted[j].Time) })
	return &BarFeeder{ticker: ticker, bars: sorted}
}

func (f *BarFeeder) Next(context.Context) (*Snapshot, bool, error) {
	if f.idx >= len(f.bars) {
		return nil, false, nil
	}
	bar := f.bars[f.idx]
	snap := &Snapshot{Ticker: f.ticker, Time: bar.Time, Close: bar.Close}
	if f.idx > 0 {
		snap.Change = change(f.bars[f.idx-1].Close, bar.Close)
	}
	f.idx++
	return snap, true, nil
}

// Len reports the number of bars.
func (f *BarFeeder) Len() int { return len(f.bars) }

func change(prev, cur float64) float64 {
	if prev == 0 {
		return 0
	}
	return (cur - prev) / prev
}

// barRow is the CSV layout accepted by LoadBarsCSV. Only time and close are
// required.
type barRow struct {
	Time   string  `csv:"time"`
	Open   float64 `csv:"open,omitempty"`
	High   float64 `csv:"high,omitempty"`
	Low    float64 `csv:"low,omitempty"`
	Close  float64 `csv:"close"`
	Volume float64 `csv:"volume,omitempty"`
}

var barTimeLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"}

// LoadBarsCSV reads bars from a CSV with a header row.
func LoadBarsCSV(r io.Reader) ([]market.Bar, error) {
	var rows []barRow
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, fmt.Errorf("backtest: decode bars: %w", err)
	}
	bars := make([]market.Bar, 0, len(rows))
	for i, row := range rows {
		ts, err := parseBarTime(row.Time)
		if err != nil {
			return nil, fmt.Errorf("backtest: bar %d: %w", i, err)
		}
		bars = append(bars, market.Bar{
			Time: ts, Open: row.Open, High: row.High, Low: row.Low, Close: row.Close, Volume: row.Volume,
		})
	}
	return bars, nil
}

// LoadBarsCSVFile is LoadBarsCSV over a file.
func LoadBarsCSVFile(path string) ([]market.Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadBarsCSV(f)
}

func parseBarTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range barTimeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised time %q", raw)
}
