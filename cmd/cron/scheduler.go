package main

import (
	"context"
	"strings"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/internal/tasks"
	"github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/pkg/calendar"
)

// scheduler enqueues a pricing task per ticker on every round.
type scheduler struct {
	dispatcher     tasks.Dispatcher
	tickers        []string
	datasets       []string
	interval       time.Duration
	delayPerTicker time.Duration
	// marketHoursOnly skips rounds outside 09:30-16:15 ET on trading days.
	marketHoursOnly bool
	now             func() time.Time
}

func newScheduler(d tasks.Dispatcher, tickers, datasets []string, interval, delay time.Duration) *scheduler {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if delay < 0 {
		delay = 0
	}
	unique := make([]string, 0, len(tickers))
	seen := make(map[string]struct{}, len(tickers))
	for _, t := range tickers {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		unique = append(unique, t)
	}
	return &scheduler{
		dispatcher:     d,
		tickers:        unique,
		datasets:       datasets,
		interval:       interval,
		delayPerTicker: delay,
		now:            time.Now,
	}
}

// run blocks until ctx is cancelled.
func (s *scheduler) run(ctx context.Context) {
	if len(s.tickers) == 0 {
		logx.WithContext(ctx).Info("cron: no tickers configured")
		return
	}
	s.round(ctx)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.round(ctx)
		}
	}
}

// round returns the number of tasks dispatched.
func (s *scheduler) round(ctx context.Context) int {
	now := s.now()
	if s.marketHoursOnly && !marketOpen(now) {
		logx.WithContext(ctx).Infof("cron: market closed at %s, skipping round", now.In(calendar.Eastern()).Format(time.Kitchen))
		return 0
	}
	sent := 0
	for i, ticker := range s.tickers {
		if ctx.Err() != nil {
			return sent
		}
		if i > 0 && !sleepWithContext(ctx, s.delayPerTicker) {
			return sent
		}
		id, err := s.dispatcher.Dispatch(ctx, tasks.TypePricingGetNew, tasks.PricingPayload{
			Ticker:     ticker,
			FetchTypes: s.datasets,
		})
		if err != nil {
			logx.WithContext(ctx).Errorf("cron: dispatch %s err=%v", ticker, err)
			continue
		}
		logx.WithContext(ctx).Infof("cron: dispatched %s id=%s", ticker, id)
		sent++
	}
	return sent
}

func marketOpen(now time.Time) bool {
	et := now.In(calendar.Eastern())
	if !calendar.IsTradingDay(et) {
		return false
	}
	minutes := et.Hour()*60 + et.Minute()
	return minutes >= 9*60+30 && minutes <= 16*60+15
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
