package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/internal/cli"
	"github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/internal/config"
	"github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/internal/svc"
)

const shutdownTimeout = 10 * time.Second

var (
	configFile  = flag.String("f", "etc/engine.yaml", "the config file")
	tickersFlag = flag.String("tickers", "", "comma separated tickers; overrides fetch.tickers")
	delayFlag   = flag.Duration("delay", 2*time.Second, "pause between tickers in a round")
	alwaysFlag  = flag.Bool("always", false, "also run outside regular market hours")
)

func main() {
	flag.Parse()

	c := config.MustLoad(*configFile)
	logx.MustSetup(c.Log)
	defer logx.Close()
	cli.LogConfigSummary(c)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s := svc.MustNewServiceContext(ctx, *c, svc.Options{})
	defer s.Close()

	tickers := c.Fetch.Tickers
	if *tickersFlag != "" {
		tickers = strings.Split(*tickersFlag, ",")
	}
	sched := newScheduler(s.Dispatcher, tickers, c.Fetch.Datasets,
		time.Duration(c.Fetch.Interval)*time.Second, *delayFlag)
	sched.marketHoursOnly = !*alwaysFlag

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		sched.run(ctx)
	}()
	logx.Infof("cron: started tickers=%v interval=%s", sched.tickers, sched.interval)

	<-ctx.Done()
	logx.Info("cron: shutdown signal received, stopping")

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		logx.Info("cron: stopped cleanly")
	case <-time.After(shutdownTimeout):
		logx.Error("cron: shutdown timeout exceeded, forcing exit")
	}
}
