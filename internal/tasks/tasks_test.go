package tasks

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeromicro/go-zero/core/stores/redis"

	cachekeys "github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/internal/cache"
	"github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/internal/config"
	"github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/internal/ingest"
	"github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/pkg/journal"
	"github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/pkg/market"
	"github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/pkg/options"
	"github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/pkg/publish"
	"github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/pkg/store"
)

var taskNow = time.Date(2024, 1, 10, 16, 0, 30, 0, time.UTC)

type stubProvider struct {
	chains map[options.ContractSide]options.Batch
	bars   []market.Bar
}

func (p *stubProvider) Name() string          { return "stub" }
func (p *stubProvider) DatasetPrefix() string { return "td" }

func (p *stubProvider) FetchOptions(_ context.Context, req market.ChainRequest) (options.Result, error) {
	return options.Ok(p.chains[req.Side]), nil
}

func (p *stubProvider) FetchBars(context.Context, market.BarsRequest) ([]market.Bar, error) {
	return p.bars, nil
}

type fixture struct {
	handlers *Handlers
	redis    *store.MemoryStore
	object   *store.MemoryStore
	mr       *miniredis.Miniredis
	rds      *redis.Redis
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	rds := redis.MustNewRedis(redis.RedisConf{Host: mr.Addr(), Type: redis.NodeType})
	ttl := cachekeys.NewTTLSet(config.CacheTTL{})

	provider := &stubProvider{
		chains: map[options.ContractSide]options.Batch{
			options.SideCall: {{"created": "2024-01-10 11:00:00", "strike": 470.0, "ticker": "SPY"}},
			options.SidePut:  {{"created": "2024-01-10 11:00:00", "strike": 465.0, "ticker": "SPY"}},
		},
	}
	for i := 0; i < 40; i++ {
		provider.bars = append(provider.bars, market.Bar{
			Time:  taskNow.AddDate(0, 0, i-40),
			Close: 100 + float64(i%7),
		})
	}

	redisTier, objectTier := store.NewMemoryStore(), store.NewMemoryStore()
	fetcher := &ingest.Fetcher{
		Providers:      map[string]market.Provider{"stub": provider},
		DefaultOptions: "stub",
		DefaultPricing: "stub",
		Store:          store.NewTieredStore(redisTier, objectTier),
		Publisher:      &publish.Publisher{Redis: redisTier, Object: objectTier},
		Status:         ingest.NewStatusBoard(rds, ttl),
	}
	h := &Handlers{
		Fetcher:    fetcher,
		Source:     objectTier,
		Sink:       redisTier,
		Redis:      rds,
		TTL:        ttl,
		FetchTypes: []options.FetchType{options.FetchCalls, options.FetchPuts},
		now:        func() time.Time { return taskNow },
	}
	return &fixture{handlers: h, redis: redisTier, object: objectTier, mr: mr, rds: rds}
}

func TestInlinePricingTask(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	d := &InlineDispatcher{Mux: NewServeMux(f.handlers)}

	id, err := d.Dispatch(ctx, TypePricingGetNew, PricingPayload{JobID: "job-1", Ticker: "SPY"})
	require.NoError(t, err)
	assert.Equal(t, "job-1", id)

	for _, key := range []string{"SPY_2024-01-10_tdcalls", "SPY_2024-01-10_tdputs"} {
		res, err := f.redis.Load(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, options.KindSuccess, res.Kind, key)
	}
	assert.False(t, f.mr.Exists(cachekeys.TaskLockKey(TypePricingGetNew, "SPY")), "lock released")
	assert.Equal(t, 104.0, f.handlers.Fetcher.Status.LatestClose(ctx, "SPY"))

	st, ok, err := f.handlers.Fetcher.Status.Lookup(ctx, "SPY", "tdputs")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "SUCCESS", st.Kind)
}

func TestPricingTaskSkipsWhenLocked(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.mr.Set(cachekeys.TaskLockKey(TypePricingGetNew, "SPY"), "other"))

	d := &InlineDispatcher{Mux: NewServeMux(f.handlers)}
	_, err := d.Dispatch(ctx, TypePricingGetNew, PricingPayload{Ticker: "spy", FetchTypes: []string{"tdcalls"}})
	require.NoError(t, err)

	res, err := f.redis.Load(ctx, "SPY_2024-01-10_tdcalls")
	require.NoError(t, err)
	assert.Equal(t, options.KindEmpty, res.Kind)
}

func TestPayloadValidation(t *testing.T) {
	d := &InlineDispatcher{Mux: NewServeMux(newFixture(t).handlers)}
	_, err := d.Dispatch(context.Background(), TypePricingGetNew, PricingPayload{})
	assert.Error(t, err)

	_, err = d.Dispatch(context.Background(), TypePricingGetNew, PricingPayload{Ticker: "SPY", Expiration: "19-01-2024"})
	assert.Error(t, err)

	_, err = d.Dispatch(context.Background(), TypePricingGetNew, PricingPayload{Ticker: "SPY", KeyOverrides: []string{"custom"}})
	assert.ErrorIs(t, err, asynq.SkipRetry, "a bare key cannot name two datasets")

	_, err = d.Dispatch(context.Background(), TypePublishFromObject, RestorePayload{S3Key: "a", Prefix: "b"})
	assert.Error(t, err)

	_, err = d.Dispatch(context.Background(), TypeAlgoRun, AlgoPayload{Ticker: "SPY", Strategy: "martingale"})
	assert.Error(t, err)
}

func TestMalformedQueuedPayloadIsNotRetried(t *testing.T) {
	mux := NewServeMux(newFixture(t).handlers)
	err := mux.ProcessTask(context.Background(), asynq.NewTask(TypePricingGetNew, []byte("{")))
	require.Error(t, err)
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestRestoreFromObjectStore(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	batch := options.Batch{{"created": "2024-01-10 11:00:00", "strike": 470.0}}
	require.NoError(t, f.object.Save(ctx, "SPY_2024-01-10_tdcalls", batch))
	require.NoError(t, f.object.Save(ctx, "custom.json", batch))

	d := &InlineDispatcher{Mux: NewServeMux(f.handlers)}
	_, err := d.Dispatch(ctx, TypePublishFromObject, RestorePayload{S3Key: "custom.json"})
	require.NoError(t, err)
	res, err := f.redis.Load(ctx, "custom")
	require.NoError(t, err)
	assert.Equal(t, options.KindSuccess, res.Kind)

	_, err = d.Dispatch(ctx, TypePublishFromObject, RestorePayload{Prefix: "SPY_"})
	require.NoError(t, err)
	res, err = f.redis.Load(ctx, "SPY_2024-01-10_tdcalls")
	require.NoError(t, err)
	assert.Equal(t, options.KindSuccess, res.Kind)

	_, err = d.Dispatch(ctx, TypePublishFromObject, RestorePayload{S3Key: "missing"})
	require.NoError(t, err)
}

func TestAlgoRunStoresResultAndJournal(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	dir := t.TempDir()
	w, err := journal.NewWriter(filepath.Join(dir, "journal"))
	require.NoError(t, err)
	f.handlers.Journal = w

	d := &InlineDispatcher{Mux: NewServeMux(f.handlers)}
	id, err := d.Dispatch(ctx, TypeAlgoRun, AlgoPayload{RunID: "run-1", Ticker: "SPY", Strategy: "threshold"})
	require.NoError(t, err)
	assert.Equal(t, "run-1", id)

	res, ok, err := AlgoResult(ctx, f.rds, "run-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "SPY", res.Ticker)
	assert.Equal(t, 40, res.Steps)
	assert.True(t, f.mr.TTL(cachekeys.AlgoResultKey("run-1")) > 0)

	runs, err := journal.ReadRuns(w.Dir())
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.True(t, runs[0].Success)
	assert.Equal(t, 40, runs[0].Bars)
}

func TestAlgoRunFromCSV(t *testing.T) {
	f := newFixture(t)
	path := filepath.Join(t.TempDir(), "bars.csv")
	require.NoError(t, os.WriteFile(path, []byte("time,close\n2024-01-02,100\n2024-01-03,102\n2024-01-04,99\n"), 0o600))

	res, err := f.handlers.RunAlgo(context.Background(), AlgoPayload{Ticker: "SPY", Strategy: "threshold", CSVPath: path})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Steps)
	assert.Equal(t, 2, res.Orders)
	assert.NotEmpty(t, res.RunID)
}
