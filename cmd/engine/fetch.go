package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/internal/tasks"
	"github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/pkg/options"
)

func fetchCommand() *cli.Command {
	return &cli.Command{
		Name:  "fetch",
		Usage: "Fetch option chains, merge them with the cached batch and publish",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "ticker", Aliases: []string{"t"}, Usage: "Underlying ticker", Required: true},
			&cli.StringFlag{Name: "provider", Aliases: []string{"p"}, Usage: "Options provider name from market.yaml"},
			&cli.StringFlag{Name: "pricing-provider", Usage: "Provider used for the latest close"},
			&cli.StringSliceFlag{Name: "type", Aliases: []string{"g"}, Usage: "Datasets to fetch, e.g. tdcalls,tdputs"},
			&cli.StringFlag{Name: "exp", Aliases: []string{"e"}, Usage: "Expiration `YYYY-MM-DD`; defaults to the next monthly"},
			&cli.StringFlag{Name: "base-key", Usage: "Key prefix instead of <TICKER>_<YYYY-MM-DD>"},
			&cli.StringSliceFlag{Name: "key", Aliases: []string{"k"}, Usage: "Store a dataset under an exact key, e.g. calls=spy-c; a bare key needs a single --type"},
			&cli.FloatFlag{Name: "close", Usage: "Latest close used to centre the strike window"},
			&cli.StringFlag{Name: "job-id", Usage: "Task id; random when empty"},
		},
		Action: fetchAction,
	}
}

func fetchAction(ctx context.Context, cmd *cli.Command) error {
	s, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	payload := tasks.PricingPayload{
		JobID:           cmd.String("job-id"),
		Ticker:          strings.ToUpper(cmd.String("ticker")),
		Provider:        cmd.String("provider"),
		PricingProvider: cmd.String("pricing-provider"),
		FetchTypes:      splitList(cmd.StringSlice("type")),
		Expiration:      cmd.String("exp"),
		BaseKey:         cmd.String("base-key"),
		KeyOverrides:    splitList(cmd.StringSlice("key")),
		LatestClose:     cmd.Float("close"),
	}
	id, err := s.Dispatcher.Dispatch(ctx, tasks.TypePricingGetNew, payload)
	if err != nil {
		return err
	}
	fmt.Printf("task %s id=%s ticker=%s\n", tasks.TypePricingGetNew, id, payload.Ticker)

	if _, inline := s.Dispatcher.(*tasks.InlineDispatcher); !inline {
		return nil
	}
	datasets := payload.FetchTypes
	if len(datasets) == 0 {
		datasets = s.Config.Fetch.Datasets
	}
	for _, dataset := range datasets {
		ft, err := options.ParseFetchType(dataset)
		if err != nil {
			return err
		}
		printStatus(ctx, s.Status, payload.Ticker, datasetName(s, payload.Provider, dataset, ft))
	}
	return nil
}

func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
