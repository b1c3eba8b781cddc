package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/core/stores/redis"

	cachekeys "github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/internal/cache"
	"github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/internal/ingest"
	"github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/pkg/backtest"
	"github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/pkg/journal"
	"github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/pkg/market"
	"github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/pkg/options"
	"github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/pkg/store"
)

// ErrLocked is reported when another worker holds the task lock.
var ErrLocked = errors.New("tasks: task already running")

// Handlers carries the collaborators every task needs.
type Handlers struct {
	Fetcher *ingest.Fetcher
	// Source is read by restores; usually the object store.
	Source store.BatchStore
	// Sink receives restored batches; usually the Redis store.
	Sink store.BatchStore
	// Redis backs task locks and algorithm results. Optional.
	Redis *redis.Redis
	TTL   cachekeys.TTLSet

	FetchTypes []options.FetchType
	Backtest   *backtest.Config
	Journal    *journal.Writer

	now func() time.Time
}

func (h *Handlers) clock() time.Time {
	if h.now != nil {
		return h.now()
	}
	return time.Now()
}

// NewServeMux routes every task type to its handler.
func NewServeMux(h *Handlers) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypePricingGetNew, h.HandlePricing)
	mux.HandleFunc(TypePublishFromObject, h.HandleRestore)
	mux.HandleFunc(TypeAlgoRun, h.HandleAlgo)
	return mux
}

// HandlePricing fetches, merges and publishes every requested dataset of a
// ticker. It fails only when no dataset could be published.
func (h *Handlers) HandlePricing(ctx context.Context, t *asynq.Task) error {
	var p PricingPayload
	if err := decode(t, &p); err != nil {
		return err
	}
	if h.Fetcher == nil {
		return fmt.Errorf("tasks: pricing fetcher not configured: %w", asynq.SkipRetry)
	}
	fetchTypes, err := p.fetchTypes(h.FetchTypes)
	if err != nil || len(fetchTypes) == 0 {
		return fmt.Errorf("tasks: fetch types %v: %v: %w", p.FetchTypes, err, asynq.SkipRetry)
	}
	exp, err := p.expiration()
	if err != nil {
		return fmt.Errorf("tasks: expiration: %v: %w", err, asynq.SkipRetry)
	}
	overrides, err := options.ParseKeyOverrides(p.KeyOverrides, fetchTypes)
	if err != nil {
		return fmt.Errorf("tasks: %v: %w", err, asynq.SkipRetry)
	}

	release, err := h.lock(ctx, TypePricingGetNew, p.Ticker)
	if err != nil {
		if errors.Is(err, ErrLocked) {
			logx.WithContext(ctx).Infof("tasks: %s %s skipped, already running", TypePricingGetNew, p.Ticker)
			return nil
		}
		return err
	}
	defer release()

	logger := logx.WithContext(ctx)
	now := h.clock()
	latestClose := p.LatestClose
	if latestClose <= 0 && (p.PricingProvider != "" || h.Fetcher.DefaultPricing != "") {
		latestClose, err = h.Fetcher.RefreshLatestClose(ctx, p.PricingProvider, p.Ticker, now)
		if err != nil {
			logger.Errorf("tasks: %s latest close err=%v", p.Ticker, err)
		}
	}

	outcomes, err := h.Fetcher.FetchDatasets(ctx, ingest.Request{
		Ticker:       p.Ticker,
		Provider:     p.Provider,
		Expiration:   exp,
		BaseKey:      p.BaseKey,
		KeyOverrides: overrides,
		LatestClose:  latestClose,
		Now:          now,
	}, fetchTypes)

	published := 0
	for _, o := range outcomes {
		logger.Infof("tasks: %s %s fetch=%s publish=%s rows=%d conflicts=%d key=%s",
			strings.ToUpper(p.Ticker), o.Dataset, o.Result.Kind, o.Published, len(o.Result.Batch), len(o.Result.Conflicts), o.Keys.Redis)
		if o.Published == options.KindSuccess || o.Result.Kind == options.KindEmpty {
			published++
		}
	}
	if published == 0 && err != nil {
		return err
	}
	return nil
}

// HandleRestore copies one key, or every key under a prefix, from Source to
// Sink.
func (h *Handlers) HandleRestore(ctx context.Context, t *asynq.Task) error {
	var p RestorePayload
	if err := decode(t, &p); err != nil {
		return err
	}
	if h.Source == nil || h.Sink == nil {
		return fmt.Errorf("tasks: restore stores not configured: %w", asynq.SkipRetry)
	}
	if p.S3Key != "" {
		target := p.RedisKey
		if target == "" {
			target = strings.TrimSuffix(p.S3Key, ".json")
		}
		_, err := h.restoreKey(ctx, p.S3Key, target)
		return err
	}

	lister, ok := h.Source.(store.Lister)
	if !ok {
		return fmt.Errorf("tasks: restore source cannot list keys: %w", asynq.SkipRetry)
	}
	keys, err := lister.List(ctx, p.Prefix)
	if err != nil {
		return err
	}
	copied := 0
	for _, key := range keys {
		ok, err := h.restoreKey(ctx, key, strings.TrimSuffix(key, ".json"))
		if err != nil {
			return err
		}
		if ok {
			copied++
		}
	}
	logx.WithContext(ctx).Infof("tasks: restored prefix=%s keys=%d copied=%d", p.Prefix, len(keys), copied)
	return nil
}

func (h *Handlers) restoreKey(ctx context.Context, from, to string) (bool, error) {
	res, err := h.Source.Load(ctx, from)
	if err != nil {
		return false, err
	}
	switch res.Kind {
	case options.KindSuccess:
	case options.KindError:
		return false, res.Err
	default:
		logx.WithContext(ctx).Infof("tasks: restore key=%s kind=%s, nothing to copy", from, res.Kind)
		return false, nil
	}
	if err := h.Sink.Save(ctx, to, res.Batch); err != nil {
		return false, err
	}
	logx.WithContext(ctx).Infof("tasks: restored key=%s to=%s rows=%d", from, to, len(res.Batch))
	return true, nil
}

// HandleAlgo runs a backtest and records its summary in Redis and the
// journal.
func (h *Handlers) HandleAlgo(ctx context.Context, t *asynq.Task) error {
	var p AlgoPayload
	if err := decode(t, &p); err != nil {
		return err
	}
	_, err := h.RunAlgo(ctx, p)
	return err
}

// RunAlgo is the body of HandleAlgo, exposed for in-process callers.
func (h *Handlers) RunAlgo(ctx context.Context, p AlgoPayload) (*backtest.Result, error) {
	cfg := h.Backtest
	if cfg == nil {
		var err error
		if cfg, err = backtest.LoadConfigFromReader(strings.NewReader("")); err != nil {
			return nil, err
		}
	}
	if p.RunID == "" {
		p.RunID = uuid.NewString()
	}
	interval := market.Interval(p.Interval)
	if interval == "" {
		interval = market.Interval(cfg.Interval)
	}
	now := h.clock()
	to, err := parseDay(p.To, now)
	if err != nil {
		return nil, fmt.Errorf("tasks: to: %v: %w", err, asynq.SkipRetry)
	}
	from, err := parseDay(p.From, to.AddDate(0, 0, -cfg.LookbackDays))
	if err != nil {
		return nil, fmt.Errorf("tasks: from: %v: %w", err, asynq.SkipRetry)
	}

	record := &journal.RunRecord{
		RunID: p.RunID, Ticker: strings.ToUpper(p.Ticker), Provider: p.Provider,
		Interval: string(interval), From: from, To: to,
	}
	res, err := h.runBacktest(ctx, cfg, p, interval, from, to, record)
	if err != nil {
		record.ErrorMessage = err.Error()
	} else {
		record.Success = true
		record.Strategy = res.Strategy
		record.Summary = map[string]any{
			"steps": res.Steps, "trades": res.Trades, "win_rate": res.WinRate,
			"total_pnl": res.TotalPNL, "max_drawdown_pct": res.MaxDDPct, "sharpe": res.Sharpe,
		}
		h.storeResult(ctx, res)
	}
	if h.Journal != nil {
		if _, jerr := h.Journal.WriteRun(record); jerr != nil {
			logx.WithContext(ctx).Errorf("tasks: journal run=%s err=%v", p.RunID, jerr)
		}
	}
	return res, err
}

func (h *Handlers) runBacktest(ctx context.Context, cfg *backtest.Config, p AlgoPayload, interval market.Interval, from, to time.Time, record *journal.RunRecord) (*backtest.Result, error) {
	var bars []market.Bar
	var err error
	if p.CSVPath != "" {
		bars, err = backtest.LoadBarsCSVFile(p.CSVPath)
	} else {
		if h.Fetcher == nil {
			return nil, fmt.Errorf("tasks: no pricing source for %s: %w", p.Ticker, asynq.SkipRetry)
		}
		var pp market.PricingProvider
		pp, err = market.LookupPricing(h.Fetcher.Providers, p.Provider, h.Fetcher.DefaultPricing)
		if err != nil {
			return nil, fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		bars, err = pp.FetchBars(ctx, market.BarsRequest{Ticker: p.Ticker, Interval: interval, From: from, To: to})
	}
	if err != nil {
		return nil, err
	}
	record.Bars = len(bars)
	if len(bars) == 0 {
		return nil, fmt.Errorf("tasks: no bars for %s: %w", p.Ticker, asynq.SkipRetry)
	}

	strategy, err := cfg.NewStrategy(p.Strategy)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	engine := &backtest.Engine{
		Feeder:        backtest.NewBarFeeder(strings.ToUpper(p.Ticker), bars),
		Strategy:      strategy,
		Ticker:        strings.ToUpper(p.Ticker),
		RunID:         p.RunID,
		InitialEquity: cfg.InitialEquity,
		FeeBps:        cfg.FeeBps,
		SlippageBps:   cfg.SlippageBps,
	}
	if cfg.ReportDir != "" {
		engine.OutputPath = fmt.Sprintf("%s/%s.json", strings.TrimRight(cfg.ReportDir, "/"), p.RunID)
	}
	return engine.Run(ctx)
}

func (h *Handlers) storeResult(ctx context.Context, res *backtest.Result) {
	if h.Redis == nil {
		return
	}
	data, err := json.Marshal(res)
	if err != nil {
		return
	}
	key := cachekeys.AlgoResultKey(res.RunID)
	ttl := cachekeys.AlgoResultTTL(h.TTL)
	if ttl > 0 {
		err = h.Redis.SetexCtx(ctx, key, string(data), int(ttl/time.Second))
	} else {
		err = h.Redis.SetCtx(ctx, key, string(data))
	}
	if err != nil {
		logx.WithContext(ctx).Errorf("tasks: store algo result key=%s err=%v", key, err)
	}
}

// AlgoResult reads a stored backtest summary.
func AlgoResult(ctx context.Context, client *redis.Redis, runID string) (*backtest.Result, bool, error) {
	raw, err := client.GetCtx(ctx, cachekeys.AlgoResultKey(runID))
	if err != nil || raw == "" {
		return nil, false, err
	}
	var res backtest.Result
	if err := json.Unmarshal([]byte(raw), &res); err != nil {
		return nil, false, err
	}
	return &res, true, nil
}

// lock takes the per-subject task lock. Without Redis it is a no-op.
func (h *Handlers) lock(ctx context.Context, taskType, subject string) (func(), error) {
	if h.Redis == nil {
		return func() {}, nil
	}
	key := cachekeys.TaskLockKey(taskType, subject)
	seconds := int(cachekeys.TaskLockTTL(h.TTL) / time.Second)
	if seconds <= 0 {
		seconds = 60
	}
	ok, err := h.Redis.SetnxExCtx(ctx, key, uuid.NewString(), seconds)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLocked
	}
	return func() {
		if _, err := h.Redis.DelCtx(context.WithoutCancel(ctx), key); err != nil {
			logx.WithContext(ctx).Errorf("tasks: release lock key=%s err=%v", key, err)
		}
	}, nil
}
