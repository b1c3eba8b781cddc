package market

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/pkg/options"
)

// Provider is the common surface of every configured market data source.
type Provider interface {
	// Name returns the provider id from configuration.
	Name() string
}

// OptionsProvider fetches one side of an option chain.
type OptionsProvider interface {
	Provider
	// DatasetPrefix names the provider in dataset keys, e.g. "td".
	DatasetPrefix() string
	// FetchOptions returns SUCCESS with normalized rows, EMPTY when the
	// provider had nothing usable, or ERROR with a *ProviderError.
	FetchOptions(ctx context.Context, req ChainRequest) (options.Result, error)
}

// PricingProvider fetches OHLCV bars for an underlying.
type PricingProvider interface {
	Provider
	FetchBars(ctx context.Context, req BarsRequest) ([]Bar, error)
}

// ChainRequest selects the chain half to fetch.
type ChainRequest struct {
	Ticker     string
	Expiration time.Time // zero selects the current monthly expiration
	Side       options.ContractSide
	// LatestClose centres the strike window; zero means unknown.
	LatestClose float64
	// Now overrides the fetch clock, mostly for tests.
	Now time.Time
}

// BarsRequest selects a bar range.
type BarsRequest struct {
	Ticker   string
	Interval Interval
	From     time.Time
	To       time.Time
}

// Interval is a bar width.
type Interval string

const (
	IntervalMinute Interval = "1m"
	IntervalHour   Interval = "1h"
	IntervalDay    Interval = "1d"
	IntervalWeek   Interval = "1wk"
)

// Bar is one OHLCV observation.
type Bar struct {
	Ticker string    `json:"ticker" parquet:"ticker"`
	Time   time.Time `json:"time" parquet:"time,timestamp"`
	Open   float64   `json:"open" parquet:"open"`
	High   float64   `json:"high" parquet:"high"`
	Low    float64   `json:"low" parquet:"low"`
	Close  float64   `json:"close" parquet:"close"`
	Volume float64   `json:"volume" parquet:"volume"`
}

// ErrProvider marks failures reported by a remote market data source.
var ErrProvider = errors.New("market: provider error")

// ProviderError describes a failed remote fetch. It is never fatal to the
// process; callers turn it into an ERROR or EMPTY result.
type ProviderError struct {
	Provider string
	Status   int
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: http status %d: %v", e.Provider, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrProvider) match any provider failure.
func (e *ProviderError) Is(target error) bool { return target == ErrProvider }

// IsAuthFailure reports whether the provider rejected the credentials.
func (e *ProviderError) IsAuthFailure() bool {
	return e.Status == 401 || e.Status == 403
}
