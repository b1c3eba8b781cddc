package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/internal/ingest"
	"github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/internal/svc"
	"github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/pkg/market"
	"github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/pkg/options"
)

func statusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show the last fetch outcome per dataset and the cached close",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "ticker", Aliases: []string{"t"}, Usage: "Underlying ticker", Required: true},
			&cli.StringFlag{Name: "provider", Aliases: []string{"p"}, Usage: "Options provider name from market.yaml"},
			&cli.StringSliceFlag{Name: "type", Aliases: []string{"g"}, Usage: "Datasets to show; defaults to the configured ones"},
		},
		Action: statusAction,
	}
}

func statusAction(ctx context.Context, cmd *cli.Command) error {
	s, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer s.Close()
	if s.Status == nil {
		return errors.New("engine: status needs redis")
	}

	ticker := strings.ToUpper(cmd.String("ticker"))
	datasets := splitList(cmd.StringSlice("type"))
	if len(datasets) == 0 {
		datasets = s.Config.Fetch.Datasets
	}
	for _, dataset := range datasets {
		ft, err := options.ParseFetchType(dataset)
		if err != nil {
			return err
		}
		printStatus(ctx, s.Status, ticker, datasetName(s, cmd.String("provider"), dataset, ft))
	}
	if price := s.Status.LatestClose(ctx, ticker); price > 0 {
		fmt.Printf("%s latest close %.2f\n", ticker, price)
	}
	return nil
}

// datasetName resolves the provider prefixed dataset for raw. Prefixed input
// is returned as is.
func datasetName(s *svc.ServiceContext, provider, raw string, ft options.FetchType) string {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw != string(ft) && raw != strings.TrimSuffix(string(ft), "s") {
		return raw
	}
	op, err := market.LookupOptions(s.MarketProviders, provider, s.Fetcher.DefaultOptions)
	if err != nil {
		return raw
	}
	return ft.Dataset(op.DatasetPrefix())
}

func printStatus(ctx context.Context, board *ingest.StatusBoard, ticker, dataset string) {
	st, ok, err := board.Lookup(ctx, ticker, dataset)
	switch {
	case err != nil:
		fmt.Printf("%s %s: %v\n", ticker, dataset, err)
	case !ok:
		fmt.Printf("%s %s: no fetch recorded\n", ticker, dataset)
	default:
		line := fmt.Sprintf("%s %s: %s rows=%d conflicts=%d key=%s at=%s",
			ticker, dataset, st.Kind, st.Rows, st.Conflicts, st.RedisKey, st.UpdatedAt.Format(options.TickLayout))
		if st.Error != "" {
			line += " error=" + st.Error
		}
		fmt.Println(line)
	}
}
