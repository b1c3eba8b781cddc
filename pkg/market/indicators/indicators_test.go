package indicators

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/pkg/market"
)

var closes = []float64{100, 101, 102, 103, 105, 107, 106, 108, 110, 111, 112, 115, 117, 119, 118, 120, 121, 123, 125, 124, 126, 127, 129, 130, 132, 133, 134, 135, 136, 138, 139, 141, 140, 142, 144, 143, 145, 147, 149, 148, 150, 151, 149, 148, 150, 152, 151, 153, 154, 156, 155, 157, 158, 160, 161, 159, 158, 157, 159, 160}

func TestSMA(t *testing.T) {
	result := SMA([]float64{1, 2, 3, 4, 5, 6}, 3)
	require.Len(t, result, 6)
	require.True(t, math.IsNaN(result[0]))
	require.True(t, math.IsNaN(result[1]))
	require.InDelta(t, 2.0, result[2], 1e-9)
	require.InDelta(t, 5.0, result[5], 1e-9)
}

func TestEMA(t *testing.T) {
	data := []float64{1, 2, 3, 4, 5, 6}
	result := EMA(data, 3)
	require.Len(t, result, len(data))
	require.True(t, math.IsNaN(result[0]))
	require.True(t, math.IsNaN(result[1]))
	require.InDelta(t, 2.0, result[2], 1e-9)
	require.InDelta(t, 3.0, result[3], 1e-9)
	require.InDelta(t, 5.0, result[5], 1e-9)
}

func TestShortSeriesIsAllNaN(t *testing.T) {
	for _, series := range [][]float64{SMA([]float64{1, 2}, 5), EMA([]float64{1}, 3), RSI([]float64{1, 2, 3}, 14)} {
		for _, v := range series {
			require.True(t, math.IsNaN(v))
		}
	}
	require.Empty(t, SMA(nil, 3))
}

func TestMACD(t *testing.T) {
	macd, signal, hist := MACD(closes)
	require.Len(t, macd, len(closes))
	require.Len(t, signal, len(closes))
	require.Len(t, hist, len(closes))
	require.True(t, math.IsNaN(macd[0]))

	last := len(closes) - 1
	require.False(t, math.IsNaN(macd[last]))
	require.Greater(t, macd[last], 0.0, "an uptrend keeps the fast average above the slow one")
	require.InDelta(t, macd[last]-signal[last], hist[last], 1e-9)
}

func TestRSI(t *testing.T) {
	rsi := RSI(closes, 14)
	require.Len(t, rsi, len(closes))
	require.True(t, math.IsNaN(rsi[13]))
	for _, v := range rsi[14:] {
		require.GreaterOrEqual(t, v, 0.0)
		require.LessOrEqual(t, v, 100.0)
	}
	require.Greater(t, Last(rsi), 50.0)

	rising := RSI([]float64{1, 2, 3, 4, 5, 6, 7}, 3)
	require.InDelta(t, 100.0, Last(rising), 1e-9)
}

func TestATR(t *testing.T) {
	bars := make([]market.Bar, 20)
	for i := range bars {
		bars[i] = market.Bar{High: 101, Low: 99, Close: 100}
	}
	atr := ATR(bars, 14)
	require.Len(t, atr, len(bars))
	require.True(t, math.IsNaN(atr[13]))
	require.InDelta(t, 2.0, Last(atr), 1e-9)
	require.Equal(t, []float64{100, 100}, Closes(bars[:2]))
}
