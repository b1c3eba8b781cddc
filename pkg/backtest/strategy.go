package backtest

import (
	"context"
	"fmt"
	"math"

	"github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/pkg/market/indicators"
)

// ThresholdStrategy buys when the close rises by ThresholdPct or more versus
// the previous step and sells when it falls by as much.
type ThresholdStrategy struct {
	ThresholdPct float64
	Lot          float64
}

func (s *ThresholdStrategy) Name() string { return "threshold" }

func (s *ThresholdStrategy) Decide(_ context.Context, snap *Snapshot, _ float64) ([]Order, error) {
	pct := snap.Change * 100
	switch {
	case snap.Change == 0:
		return nil, nil
	case pct >= s.ThresholdPct:
		return []Order{{Buy: true, Qty: s.Lot, Reason: fmt.Sprintf("up %.2f%%", pct)}}, nil
	case pct <= -s.ThresholdPct:
		return []Order{{Buy: false, Qty: s.Lot, Reason: fmt.Sprintf("down %.2f%%", pct)}}, nil
	}
	return nil, nil
}

// CrossoverStrategy goes long when the fast SMA crosses above the slow SMA
// while RSI is below Overbought, and flattens on the opposite cross. It
// never shorts.
type CrossoverStrategy struct {
	Fast       int
	Slow       int
	RSIPeriod  int
	Overbought float64
	Lot        float64

	closes []float64
}

func (s *CrossoverStrategy) Name() string {
	return fmt.Sprintf("sma_cross_%d_%d", s.Fast, s.Slow)
}

func (s *CrossoverStrategy) Decide(_ context.Context, snap *Snapshot, position float64) ([]Order, error) {
	s.closes = append(s.closes, snap.Close)
	if len(s.closes) < s.Slow+1 {
		return nil, nil
	}
	fast := indicators.SMA(s.closes, s.Fast)
	slow := indicators.SMA(s.closes, s.Slow)
	n := len(s.closes)
	prevDiff := fast[n-2] - slow[n-2]
	diff := fast[n-1] - slow[n-1]
	if math.IsNaN(prevDiff) || math.IsNaN(diff) {
		return nil, nil
	}

	switch {
	case prevDiff <= 0 && diff > 0 && position <= 0:
		if s.RSIPeriod > 0 && s.Overbought > 0 {
			if rsi := indicators.Last(indicators.RSI(s.closes, s.RSIPeriod)); !math.IsNaN(rsi) && rsi >= s.Overbought {
				return nil, nil
			}
		}
		return []Order{{Buy: true, Qty: s.Lot, Reason: "golden cross"}}, nil
	case prevDiff >= 0 && diff < 0 && position > 0:
		return []Order{{Buy: false, Qty: position, Reason: "death cross"}}, nil
	}
	return nil, nil
}
