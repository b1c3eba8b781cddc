package backtest

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/zeromicro/go-zero/core/logx"
)

// Snapshot is one step of a replayed price series.
type Snapshot struct {
	Ticker string
	Time   time.Time
	Close  float64
	// Change is the fractional move from the previous close (0.01 == +1%).
	Change float64
}

// Order is a market order filled at the step close.
type Order struct {
	Buy    bool
	Qty    float64
	Reason string
}

// Feeder yields sequential snapshots.
type Feeder interface {
	Next(ctx context.Context) (*Snapshot, bool, error)
}

// Strategy maps a snapshot into orders. Position is the signed holding
// before the step.
type Strategy interface {
	Name() string
	Decide(ctx context.Context, snap *Snapshot, position float64) ([]Order, error)
}

// Engine replays a Feeder through a Strategy with simple fee and slippage
// accounting.
type Engine struct {
	Feeder   Feeder
	Strategy Strategy
	Ticker   string
	// RunID identifies the run; a random one is assigned when empty.
	RunID string

	InitialEquity float64 // defaults to 100000 if zero
	FeeBps        float64 // per-order fee in basis points
	SlippageBps   float64 // applied against the order side

	// Optional: write JSON report to this path
	OutputPath string
}

// Result summarizes a simulation run.
type Result struct {
	RunID       string         `json:"run_id"`
	Ticker      string         `json:"ticker"`
	Strategy    string         `json:"strategy"`
	StartedAt   time.Time      `json:"started_at"`
	FinishedAt  time.Time      `json:"finished_at"`
	Steps       int            `json:"steps"`
	Orders      int            `json:"orders"`
	Trades      int            `json:"trades"`
	Wins        int            `json:"wins"`
	WinRate     float64        `json:"win_rate"`
	RealizedPNL float64        `json:"realized_pnl"`
	UnrealPNL   float64        `json:"unrealized_pnl"`
	TotalPNL    float64        `json:"total_pnl"`
	FinalEquity float64        `json:"final_equity"`
	MaxDDPct    float64        `json:"max_drawdown_pct"`
	Sharpe      float64        `json:"sharpe"`
	EquityCurve []float64      `json:"equity_curve"`
	History     []HistoryEntry `json:"history"`
}

// HistoryEntry records one filled order.
type HistoryEntry struct {
	Step     int       `json:"step"`
	Time     time.Time `json:"time"`
	Side     string    `json:"side"`
	Price    float64   `json:"price"`
	Qty      float64   `json:"qty"`
	Fee      float64   `json:"fee"`
	Realized float64   `json:"realized"`
	Position float64   `json:"position"`
	Reason   string    `json:"reason,omitempty"`
}

var ErrNotConfigured = errors.New("backtest: engine not fully configured")

func (e *Engine) Run(ctx context.Context) (*Result, error) {
	if e.Feeder == nil || e.Strategy == nil || e.Ticker == "" {
		return nil, ErrNotConfigured
	}
	runID := e.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	eq0 := e.InitialEquity
	if eq0 <= 0 {
		eq0 = 100000
	}
	res := &Result{RunID: runID, Ticker: e.Ticker, Strategy: e.Strategy.Name(), StartedAt: time.Now().UTC()}
	book := &portfolio{cash: eq0, feeBps: e.FeeBps}
	equity := eq0

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		snap, ok, err := e.Feeder.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		res.Steps++
		orders, err := e.Strategy.Decide(ctx, snap, book.pos)
		if err != nil {
			return nil, err
		}
		for _, ord := range orders {
			if ord.Qty <= 0 || snap.Close <= 0 {
				continue
			}
			fill := applySlippage(snap.Close, e.SlippageBps, ord.Buy)
			realized, fee, closed := book.apply(ord.Buy, fill, ord.Qty)
			res.Orders++
			if closed {
				res.Trades++
				if realized > 0 {
					res.Wins++
				}
			}
			res.History = append(res.History, HistoryEntry{
				Step:     res.Steps,
				Time:     snap.Time,
				Side:     sideStr(ord.Buy),
				Price:    fill,
				Qty:      ord.Qty,
				Fee:      fee,
				Realized: realized,
				Position: book.pos,
				Reason:   ord.Reason,
			})
		}
		equity = book.equity(snap.Close)
		res.EquityCurve = append(res.EquityCurve, equity)
	}

	res.RealizedPNL = book.realized
	res.UnrealPNL = book.unrealized
	res.TotalPNL = res.RealizedPNL + res.UnrealPNL
	res.FinalEquity = equity
	if res.Trades > 0 {
		res.WinRate = float64(res.Wins) / float64(res.Trades)
	}
	res.MaxDDPct = maxDrawdownPct(append([]float64{eq0}, res.EquityCurve...))
	res.Sharpe = sharpe(res.EquityCurve)
	res.FinishedAt = time.Now().UTC()

	logx.WithContext(ctx).Infof("backtest: run=%s ticker=%s strategy=%s steps=%d trades=%d pnl=%.2f",
		res.RunID, res.Ticker, res.Strategy, res.Steps, res.Trades, res.TotalPNL)

	if e.OutputPath != "" {
		if err := writeReport(e.OutputPath, res); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func applySlippage(px, bps float64, buy bool) float64 {
	if bps == 0 {
		return px
	}
	m := 1 + bps/10000.0
	if buy {
		return px * m
	}
	return px / m
}

func maxDrawdownPct(series []float64) float64 {
	peak := series[0]
	mdd := 0.0
	for _, v := range series {
		if v > peak {
			peak = v
		}
		if peak <= 0 {
			continue
		}
		if dd := (peak - v) / peak; dd > mdd {
			mdd = dd
		}
	}
	return mdd * 100
}

// sharpe is the per-step Sharpe ratio of the equity curve scaled by the
// square root of the number of returns.
func sharpe(equity []float64) float64 {
	if len(equity) < 2 {
		return 0
	}
	rets := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		if equity[i-1] != 0 {
			rets = append(rets, equity[i]/equity[i-1]-1)
		}
	}
	if len(rets) == 0 {
		return 0
	}
	var mean, variance float64
	for _, r := range rets {
		mean += r
	}
	mean /= float64(len(rets))
	for _, r := range rets {
		variance += (r - mean) * (r - mean)
	}
	sd := math.Sqrt(variance / float64(len(rets)))
	if sd == 0 {
		return 0
	}
	return mean / sd * math.Sqrt(float64(len(rets)))
}

func writeReport(path string, r *Result) error {
	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o600)
}

func sideStr(buy bool) string {
	if buy {
		return "buy"
	}
	return "sell"
}
