package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"
	"github.com/zeromicro/go-zero/core/logx"

	appcli "github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/internal/cli"
	"github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/internal/config"
	"github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/internal/svc"
)

func main() {
	cmd := &cli.Command{
		Name:  "engine",
		Usage: "Fetch, cache and replay option chains and pricing data",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"f"},
				Usage:   "Path to the engine config `FILE`",
				Value:   "etc/engine.yaml",
				Sources: cli.EnvVars("ENGINE_CONFIG"),
			},
			&cli.BoolFlag{
				Name:  "inline",
				Usage: "Run tasks in this process instead of enqueueing them",
			},
			&cli.BoolFlag{
				Name:  "no-cache",
				Usage: "Keep batches in memory instead of Redis/S3",
			},
		},
		Commands: []*cli.Command{
			fetchCommand(),
			restoreCommand(),
			backtestCommand(),
			exportCommand(),
			statusCommand(),
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := cmd.Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

// setup loads config and wires the service context for a subcommand.
func setup(ctx context.Context, cmd *cli.Command) (*svc.ServiceContext, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, err
	}
	logx.MustSetup(cfg.Log)
	appcli.LogConfigSummary(cfg)

	s, err := svc.NewServiceContext(ctx, *cfg, svc.Options{
		NoCache: cmd.Bool("no-cache"),
		Inline:  cmd.Bool("inline"),
	})
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	return s, nil
}
