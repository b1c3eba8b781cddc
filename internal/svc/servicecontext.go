package svc

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	_ "github.com/jackc/pgx/v5/stdlib" // register pgx driver
	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/core/stores/cache"
	"github.com/zeromicro/go-zero/core/stores/redis"
	"github.com/zeromicro/go-zero/core/stores/sqlx"
	"github.com/zeromicro/go-zero/core/syncx"

	cachekeys "github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/internal/cache"
	"github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/internal/config"
	"github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/internal/ingest"
	"github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/internal/persistence/optionsarchive"
	"github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/internal/tasks"
	"github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/pkg/backtest"
	"github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/pkg/export"
	"github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/pkg/journal"
	marketpkg "github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/pkg/market"
	_ "github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/pkg/market/exchanges/alpaca"
	_ "github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/pkg/market/exchanges/polygon"
	_ "github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/pkg/market/exchanges/tradier"
	_ "github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/pkg/market/exchanges/yahoo"
	"github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/pkg/options"
	"github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/pkg/publish"
	"github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/pkg/store"
)

type ServiceContext struct {
	Config config.Config
	TTL    cachekeys.TTLSet

	// Optional backends; nil when not configured.
	Redis   *redis.Redis
	DBConn  sqlx.SqlConn
	Archive *optionsarchive.Service

	MarketConfig    *marketpkg.Config
	MarketProviders map[string]marketpkg.Provider

	RedisStore  store.BatchStore
	ObjectStore store.BatchStore
	Store       store.BatchStore
	Publisher   *publish.Publisher
	Status      *ingest.StatusBoard
	Fetcher     *ingest.Fetcher

	BacktestConfig *backtest.Config
	Journal        *journal.Writer

	Handlers   *tasks.Handlers
	Mux        *asynq.ServeMux
	Dispatcher tasks.Dispatcher

	queueClient *asynq.Client
	db          *sql.DB
}

// Options tweak NewServiceContext for one-off commands.
type Options struct {
	// NoCache replaces the Redis and S3 tiers with an in-memory store.
	NoCache bool
	// Inline forces tasks to run in process even when the queue is enabled.
	Inline bool
}

func MustNewServiceContext(ctx context.Context, c config.Config, opts Options) *ServiceContext {
	svc, err := NewServiceContext(ctx, c, opts)
	if err != nil {
		logx.Must(err)
	}
	return svc
}

func NewServiceContext(ctx context.Context, c config.Config, opts Options) (*ServiceContext, error) {
	svc := &ServiceContext{
		Config: c,
		TTL:    cachekeys.NewTTLSet(c.TTL),
	}

	if c.Redis.Host != "" {
		rds, err := redis.NewRedis(c.Redis)
		if err != nil {
			return nil, fmt.Errorf("svc: redis: %w", err)
		}
		svc.Redis = rds
	}

	if err := svc.initMarket(); err != nil {
		return nil, err
	}
	if err := svc.initStores(ctx, opts.NoCache); err != nil {
		return nil, err
	}
	if err := svc.initArchive(); err != nil {
		return nil, err
	}

	format, err := export.ParseFormat(c.Fetch.ExportFormat)
	if err != nil {
		return nil, fmt.Errorf("svc: fetch.exportFormat: %w", err)
	}
	svc.Publisher = &publish.Publisher{Redis: svc.RedisStore, Object: svc.ObjectStore, FileFormat: format}
	if svc.Archive != nil {
		svc.Publisher.Archive = svc.Archive
	}
	svc.Status = ingest.NewStatusBoard(svc.Redis, svc.TTL)
	svc.Fetcher = &ingest.Fetcher{
		Providers:    svc.MarketProviders,
		Store:        svc.Store,
		Publisher:    svc.Publisher,
		Status:       svc.Status,
		RaiseOnError: c.Fetch.RaiseOnError,
		Parallelism:  c.Fetch.Parallelism,
		ExportDir:    c.Fetch.ExportDir,
		ExportFormat: format,
	}
	if svc.MarketConfig != nil {
		svc.Fetcher.DefaultOptions = svc.MarketConfig.Default
		svc.Fetcher.DefaultPricing = svc.MarketConfig.DefaultPricing
	}

	if err := svc.initBacktest(); err != nil {
		return nil, err
	}
	if err := svc.initTasks(opts.Inline); err != nil {
		return nil, err
	}
	return svc, nil
}

func (s *ServiceContext) initMarket() error {
	s.MarketConfig = s.Config.Market.Value
	if s.MarketConfig == nil {
		s.MarketProviders = map[string]marketpkg.Provider{}
		return nil
	}
	// Test environments never hit live brokerage endpoints.
	if s.Config.IsTestEnv() {
		for _, p := range s.MarketConfig.Providers {
			p.Sandbox = true
		}
	}
	providers, err := s.MarketConfig.BuildProviders()
	if err != nil {
		return fmt.Errorf("svc: build market providers: %w", err)
	}
	s.MarketProviders = providers
	return nil
}

func (s *ServiceContext) initStores(ctx context.Context, noCache bool) error {
	if noCache {
		mem := store.NewMemoryStore()
		s.RedisStore, s.Store = mem, mem
		return nil
	}

	codec, err := store.CodecByName(s.Config.Fetch.Codec)
	if err != nil {
		return fmt.Errorf("svc: fetch.codec: %w", err)
	}
	if s.Config.Fetch.Compress {
		codec = store.Compressed(codec)
	}

	var tiers []store.BatchStore
	if s.Redis != nil {
		s.RedisStore = store.NewRedisStore(s.Redis,
			store.WithCodec(codec),
			store.WithTTL(time.Duration(s.Config.Fetch.RedisTTL)*time.Second))
		tiers = append(tiers, s.RedisStore)
	}
	if s.Config.S3.Enabled {
		blobs, err := store.NewMinioBlobs(ctx, store.MinioConfig{
			Endpoint:  s.Config.S3.Endpoint,
			AccessKey: s.Config.S3.AccessKey,
			SecretKey: s.Config.S3.SecretKey,
			Region:    s.Config.S3.Region,
			Bucket:    s.Config.S3.Bucket,
			Secure:    s.Config.S3.Secure,
		})
		if err != nil {
			return err
		}
		s.ObjectStore = store.NewObjectStore(blobs, codec)
		tiers = append(tiers, s.ObjectStore)
	}
	switch len(tiers) {
	case 0:
		logx.Info("svc: no redis or s3 configured, batches live in memory")
		mem := store.NewMemoryStore()
		s.RedisStore, s.Store = mem, mem
	case 1:
		s.Store = tiers[0]
	default:
		s.Store = store.NewTieredStore(tiers...)
	}
	return nil
}

func (s *ServiceContext) initArchive() error {
	pg := s.Config.Postgres
	if pg.DSN == "" {
		return nil
	}
	db, err := sql.Open("pgx", pg.DSN)
	if err != nil {
		return fmt.Errorf("svc: postgres: %w", err)
	}
	db.SetMaxOpenConns(pg.MaxOpen)
	db.SetMaxIdleConns(pg.MaxIdle)
	s.db = db
	s.DBConn = sqlx.NewSqlConnFromDB(db)

	var archiveCache cache.Cache
	if s.Redis != nil {
		archiveCache = cache.NewNode(s.Redis, syncx.NewSingleFlight(), cache.NewStat("optionsarchive"), sql.ErrNoRows)
	}
	s.Archive = optionsarchive.NewService(optionsarchive.Config{
		SQLConn: s.DBConn,
		Cache:   archiveCache,
		TTL:     s.TTL,
	})
	marketpkg.AttachPersistence(s.MarketProviders, s.Archive)
	return nil
}

func (s *ServiceContext) initBacktest() error {
	s.BacktestConfig = s.Config.Backtest.Value
	if s.BacktestConfig == nil {
		return nil
	}
	if dir := s.BacktestConfig.JournalDir; dir != "" {
		w, err := journal.NewWriter(dir)
		if err != nil {
			return fmt.Errorf("svc: journal: %w", err)
		}
		s.Journal = w
	}
	return nil
}

func (s *ServiceContext) initTasks(inline bool) error {
	fetchTypes, err := options.ParseFetchTypes(strings.Join(s.Config.Fetch.Datasets, ","))
	if err != nil {
		return fmt.Errorf("svc: fetch.datasets: %w", err)
	}
	s.Handlers = &tasks.Handlers{
		Fetcher:    s.Fetcher,
		Source:     s.ObjectStore,
		Sink:       s.RedisStore,
		Redis:      s.Redis,
		TTL:        s.TTL,
		FetchTypes: fetchTypes,
		Backtest:   s.BacktestConfig,
		Journal:    s.Journal,
	}
	s.Mux = tasks.NewServeMux(s.Handlers)

	if inline || s.Config.Queue.Disabled {
		s.Dispatcher = &tasks.InlineDispatcher{Mux: s.Mux}
		return nil
	}
	if s.Config.Redis.Host == "" {
		return errors.New("svc: queue requires redis")
	}
	s.queueClient = asynq.NewClient(tasks.RedisOpt(s.Config.Redis))
	s.Dispatcher = tasks.NewQueueDispatcher(s.queueClient, s.Config.Queue.Name, s.Config.Queue.MaxRetry,
		time.Duration(s.Config.Queue.Timeout)*time.Second)
	return nil
}

// WorkerConfig sizes the asynq worker from the queue config.
func (s *ServiceContext) WorkerConfig() tasks.WorkerConfig {
	queues := s.Config.Queue.Queues
	if len(queues) == 0 && s.Config.Queue.Name != "" {
		queues = map[string]int{s.Config.Queue.Name: 1}
	}
	return tasks.WorkerConfig{Concurrency: s.Config.Queue.Concurrency, Queues: queues}
}

// Close releases the queue client and database handle.
func (s *ServiceContext) Close() error {
	var errs []error
	if s.queueClient != nil {
		errs = append(errs, s.queueClient.Close())
	}
	if s.db != nil {
		errs = append(errs, s.db.Close())
	}
	return errors.Join(errs...)
}

