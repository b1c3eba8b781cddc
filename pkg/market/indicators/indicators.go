// Package indicators computes technical indicators over bar series. Every
// series has the length of its input; positions inside the warm-up window
// are NaN.
package indicators

import (
	"math"

	"github.com/markcheno/go-talib"

	"github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/pkg/market"
)

// SMA is the simple moving average.
func SMA(prices []float64, period int) []float64 {
	if period <= 0 || len(prices) == 0 {
		return []float64{}
	}
	if len(prices) < period {
		return nanSeries(len(prices))
	}
	return mask(talib.Sma(prices, period), period-1)
}

// EMA is the exponential moving average seeded with the first SMA.
func EMA(prices []float64, period int) []float64 {
	if period <= 0 || len(prices) == 0 {
		return []float64{}
	}
	if len(prices) < period {
		return nanSeries(len(prices))
	}
	return mask(talib.Ema(prices, period), period-1)
}

// RSI is Wilder's relative strength index.
func RSI(prices []float64, period int) []float64 {
	if period <= 0 || len(prices) == 0 {
		return []float64{}
	}
	if len(prices) <= period {
		return nanSeries(len(prices))
	}
	return mask(talib.Rsi(prices, period), period)
}

// MACD returns the 12/26/9 MACD line, signal line and histogram.
func MACD(prices []float64) ([]float64, []float64, []float64) {
	const fast, slow, signal = 12, 26, 9
	if len(prices) == 0 {
		return []float64{}, []float64{}, []float64{}
	}
	lookback := (slow - 1) + (signal - 1)
	if len(prices) <= lookback {
		n := len(prices)
		return nanSeries(n), nanSeries(n), nanSeries(n)
	}
	line, sig, hist := talib.Macd(prices, fast, slow, signal)
	return mask(line, lookback), mask(sig, lookback), mask(hist, lookback)
}

// ATR is the average true range of bars.
func ATR(bars []market.Bar, period int) []float64 {
	if period <= 0 || len(bars) == 0 {
		return []float64{}
	}
	if len(bars) <= period {
		return nanSeries(len(bars))
	}
	highs := make([]float64, len(bars))
	lows := make([]float64, len(bars))
	closes := make([]float64, len(bars))
	for i, b := range bars {
		highs[i], lows[i], closes[i] = b.High, b.Low, b.Close
	}
	return mask(talib.Atr(highs, lows, closes, period), period)
}

// Closes extracts the close column.
func Closes(bars []market.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

// Last returns the final value of a series, or NaN.
func Last(series []float64) float64 {
	if len(series) == 0 {
		return math.NaN()
	}
	return series[len(series)-1]
}

func mask(series []float64, lookback int) []float64 {
	for i := 0; i < lookback && i < len(series); i++ {
		series[i] = math.NaN()
	}
	return series
}

func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
