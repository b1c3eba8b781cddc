package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/zeromicro/go-zero/core/logx"

	"github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/internal/cli"
	"github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/internal/config"
	"github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/internal/svc"
	"github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/internal/tasks"
)

var configFile = flag.String("f", "etc/engine.yaml", "the config file")

func main() {
	flag.Parse()

	c := config.MustLoad(*configFile)
	logx.MustSetup(c.Log)
	defer logx.Close()
	cli.LogConfigSummary(c)

	if c.Queue.Disabled {
		logx.Must(errors.New("worker: queue.disabled is set, nothing to consume"))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The worker executes tasks, so it always runs them in process.
	s := svc.MustNewServiceContext(ctx, *c, svc.Options{Inline: true})
	defer s.Close()

	w := tasks.NewWorker(tasks.RedisOpt(c.Redis), s.WorkerConfig(), s.Mux)
	logx.Infof("worker: consuming queues=%v concurrency=%d", s.WorkerConfig().Queues, c.Queue.Concurrency)
	if err := w.Run(ctx); err != nil {
		logx.Must(err)
	}
	logx.Info("worker: stopped")
}
