package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/pkg/export"
	"github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/pkg/options"
)

func exportCommand() *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Write a cached dataset, or convert an exported file, to csv, parquet or json",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "key", Aliases: []string{"k"}, Usage: "Dataset key in the batch store"},
			&cli.StringFlag{Name: "input", Aliases: []string{"i"}, Usage: "Exported `FILE` to convert instead of a key"},
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "Output `FILE`", Required: true},
			&cli.StringFlag{Name: "format", Usage: "csv, parquet or json; defaults to the output extension"},
		},
		Action: exportAction,
	}
}

func exportAction(ctx context.Context, cmd *cli.Command) error {
	key, input := cmd.String("key"), cmd.String("input")
	if (key == "") == (input == "") {
		return errors.New("engine: export needs exactly one of --key or --input")
	}
	out := cmd.String("out")
	format := export.FormatFromPath(out, export.FormatCSV)
	if raw := cmd.String("format"); raw != "" {
		f, err := export.ParseFormat(raw)
		if err != nil {
			return err
		}
		format = f
	}

	var batch options.Batch
	if input != "" {
		b, err := export.Read(input, export.FormatFromPath(input, export.FormatCSV))
		if err != nil {
			return err
		}
		batch = b
	} else {
		s, err := setup(ctx, cmd)
		if err != nil {
			return err
		}
		defer s.Close()
		res, err := s.Store.Load(ctx, key)
		if err != nil {
			return err
		}
		if res.Kind != options.KindSuccess {
			return fmt.Errorf("engine: key %s: %s", key, res.Kind)
		}
		batch = res.Batch
	}

	if err := export.Write(out, batch, format); err != nil {
		return err
	}
	fmt.Printf("wrote %d rows to %s (%s)\n", len(batch), out, format)
	return nil
}
