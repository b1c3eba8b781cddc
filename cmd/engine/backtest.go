package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/internal/tasks"
)

func backtestCommand() *cli.Command {
	return &cli.Command{
		Name:  "backtest",
		Usage: "Run a strategy over historical pricing bars",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "ticker", Aliases: []string{"t"}, Usage: "Ticker to replay", Required: true},
			&cli.StringFlag{Name: "provider", Aliases: []string{"p"}, Usage: "Pricing provider name from market.yaml"},
			&cli.StringFlag{Name: "strategy", Usage: "threshold or crossover; defaults to backtest.yaml"},
			&cli.StringFlag{Name: "interval", Usage: "Bar interval: 1m, 1h, 1d or 1wk"},
			&cli.StringFlag{Name: "from", Usage: "First day `YYYY-MM-DD`"},
			&cli.StringFlag{Name: "to", Usage: "Last day `YYYY-MM-DD`; defaults to today"},
			&cli.StringFlag{Name: "csv", Usage: "Read bars from a CSV `FILE` instead of a provider"},
			&cli.StringFlag{Name: "run-id", Usage: "Run id; random when empty"},
		},
		Action: backtestAction,
	}
}

func backtestAction(ctx context.Context, cmd *cli.Command) error {
	s, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	payload := tasks.AlgoPayload{
		RunID:    cmd.String("run-id"),
		Ticker:   strings.ToUpper(cmd.String("ticker")),
		Provider: cmd.String("provider"),
		Strategy: cmd.String("strategy"),
		Interval: cmd.String("interval"),
		From:     cmd.String("from"),
		To:       cmd.String("to"),
		CSVPath:  cmd.String("csv"),
	}
	if _, inline := s.Dispatcher.(*tasks.InlineDispatcher); inline {
		if err := tasks.Validate(payload); err != nil {
			return err
		}
		res, err := s.Handlers.RunAlgo(ctx, payload)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		res.History, res.EquityCurve = nil, nil
		return enc.Encode(res)
	}

	id, err := s.Dispatcher.Dispatch(ctx, tasks.TypeAlgoRun, payload)
	if err != nil {
		return err
	}
	fmt.Printf("task %s id=%s ticker=%s\n", tasks.TypeAlgoRun, id, payload.Ticker)
	return nil
}
