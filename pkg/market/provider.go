package market

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/pkg/calendar"
	"github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/pkg/options"
)

const (
	// DefaultStrikeWindow keeps strikes within this distance of the latest close.
	DefaultStrikeWindow = 10.0
	// DefaultMaxStrikeOffset keeps this many strikes either side of the chain
	// middle when the latest close is unknown.
	DefaultMaxStrikeOffset = 200
	// MinBid drops contracts whose bid is at or below this value.
	MinBid = 0.01
)

// ChainStamp carries the values written onto every row of one fetch.
type ChainStamp struct {
	Ticker     string
	Created    time.Time
	QuoteDate  time.Time
	Expiration time.Time
}

// NewChainStamp resolves the fetch clock and expiration for a request.
func NewChainStamp(req ChainRequest) ChainStamp {
	now := req.Now
	if now.IsZero() {
		now = time.Now()
	}
	return ChainStamp{
		Ticker:     strings.ToUpper(strings.TrimSpace(req.Ticker)),
		Created:    calendar.CreatedMinute(now),
		QuoteDate:  calendar.LastClose(now).Truncate(time.Minute),
		Expiration: ResolveExpiration(req.Expiration, now),
	}
}

// Apply stamps rec with the fetch identity columns.
func (s ChainStamp) Apply(rec options.Record) {
	rec[options.FieldCreated] = s.Created.Format(options.TickLayout)
	rec[options.FieldQuoteDate] = s.QuoteDate.Format(options.TickLayout)
	rec[options.FieldTicker] = s.Ticker
	if _, ok := rec[options.FieldExpirationDate]; !ok {
		rec[options.FieldExpirationDate] = s.Expiration.Format(options.DateLayout)
	}
}

// ResolveExpiration returns exp, or the current monthly expiration when exp
// is zero.
func ResolveExpiration(exp, now time.Time) time.Time {
	if !exp.IsZero() {
		return exp
	}
	return calendar.OptionExpiration(now.In(calendar.Eastern()))
}

// WindowStrikes narrows a chain around the money. With a known latest close
// it keeps strikes within ±window of it; otherwise it keeps maxOffset rows on
// either side of the middle of the strike-sorted chain. The result is sorted
// by (quote_date, strike).
func WindowStrikes(b options.Batch, latestClose, window float64, maxOffset int) options.Batch {
	if window <= 0 {
		window = DefaultStrikeWindow
	}
	if maxOffset <= 0 {
		maxOffset = DefaultMaxStrikeOffset
	}
	sorted := make(options.Batch, len(b))
	copy(sorted, b)
	sort.SliceStable(sorted, func(i, j int) bool {
		si, _ := sorted[i].Float(options.FieldStrike)
		sj, _ := sorted[j].Float(options.FieldStrike)
		return si < sj
	})

	var out options.Batch
	if latestClose > 0 {
		for _, rec := range sorted {
			strike, ok := rec.Float(options.FieldStrike)
			if ok && strike >= latestClose-window && strike <= latestClose+window {
				out = append(out, rec)
			}
		}
	} else {
		mid := len(sorted) / 2
		lo, hi := mid-maxOffset, mid+maxOffset
		if lo < 0 {
			lo = 0
		}
		if hi > len(sorted) {
			hi = len(sorted)
		}
		out = append(out, sorted[lo:hi]...)
	}
	options.SortBatch(out)
	return out
}

// FormatTick renders an exchange time in the row timestamp layout.
func FormatTick(t time.Time) string {
	return t.In(calendar.Eastern()).Format(options.TickLayout)
}

// EpochColumn converts an epoch-ms column value; zero becomes nil.
func EpochColumn(ms int64) any {
	t, ok := calendar.FromEpochMillis(ms)
	if !ok {
		return nil
	}
	return t.Format(options.TickLayout)
}

// LookupOptions returns the named options provider, falling back to def when
// name is empty.
func LookupOptions(providers map[string]Provider, name, def string) (OptionsProvider, error) {
	if name == "" {
		name = def
	}
	p, ok := providers[name]
	if !ok {
		return nil, fmt.Errorf("market: provider %q not configured", name)
	}
	op, ok := p.(OptionsProvider)
	if !ok {
		return nil, fmt.Errorf("market: provider %q does not serve option chains", name)
	}
	return op, nil
}

// LookupPricing returns the named pricing provider, falling back to def when
// name is empty.
func LookupPricing(providers map[string]Provider, name, def string) (PricingProvider, error) {
	if name == "" {
		name = def
	}
	p, ok := providers[name]
	if !ok {
		return nil, fmt.Errorf("market: provider %q not configured", name)
	}
	pp, ok := p.(PricingProvider)
	if !ok {
		return nil, fmt.Errorf("market: provider %q does not serve pricing", name)
	}
	return pp, nil
}
