// Package ingest runs the fetch, load, reconcile and publish cycle for one
// ticker and dataset.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/zeromicro/go-zero/core/logx"
	"golang.org/x/sync/errgroup"

	"github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/pkg/calendar"
	"github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/pkg/export"
	"github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/pkg/market"
	"github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/pkg/options"
	"github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/pkg/publish"
	"github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/pkg/store"
)

const (
	defaultParallelism = 4
	closeLookback      = 10 * 24 * time.Hour
)

// Fetcher wires providers to the batch store.
type Fetcher struct {
	Providers map[string]market.Provider
	// DefaultOptions and DefaultPricing name the providers used when a
	// request leaves the provider empty.
	DefaultOptions string
	DefaultPricing string
	// Store holds previously merged batches. Nil means no prior data.
	Store     store.BatchStore
	Publisher *publish.Publisher
	Status    *StatusBoard
	// RaiseOnError returns provider, store and reconcile failures as errors
	// in addition to the ERROR result.
	RaiseOnError bool
	// Parallelism bounds FetchDatasets; zero means 4.
	Parallelism int
	// ExportDir, when set, receives a file per published dataset.
	ExportDir    string
	ExportFormat export.Format
}

// Request selects one dataset fetch.
type Request struct {
	Ticker     string
	Provider   string
	FetchType  options.FetchType
	Expiration time.Time
	BaseKey    string
	// KeyOverrides replaces the derived key of a fetch type.
	KeyOverrides options.KeyOverrides
	LatestClose  float64
	Now          time.Time
}

// Outcome is the result of FetchAndPublish for one dataset.
type Outcome struct {
	Dataset string
	Keys    options.DatasetKeys
	Result  options.Result
	// Published is KindNotRun when the merge produced nothing to publish.
	Published options.Kind
	Err       error
}

func (r Request) now() time.Time {
	if r.Now.IsZero() {
		return time.Now()
	}
	return r.Now
}

func (r Request) baseKey() string {
	if r.BaseKey != "" {
		return r.BaseKey
	}
	return options.BaseKey(r.Ticker, r.now().In(calendar.Eastern()))
}

// Keys resolves the dataset name and store keys for a request.
func (f *Fetcher) Keys(req Request) (string, options.DatasetKeys, error) {
	op, err := market.LookupOptions(f.Providers, req.Provider, f.DefaultOptions)
	if err != nil {
		return "", options.DatasetKeys{}, err
	}
	dataset := req.FetchType.Dataset(op.DatasetPrefix())
	return dataset, options.KeysFor(req.baseKey(), dataset, req.KeyOverrides.For(req.FetchType)), nil
}

// FetchAndMerge fetches one side of a chain and reconciles it with the batch
// stored under the dataset key. Nothing is written.
//
// A fetch that is not SUCCESS is returned as is with no rows. A store read
// failure is an ERROR carrying a *store.CacheError. Missing prior data merges
// against an empty base. With RaiseOnError every ERROR also comes back as
// the error.
func (f *Fetcher) FetchAndMerge(ctx context.Context, req Request) (options.Result, error) {
	op, err := market.LookupOptions(f.Providers, req.Provider, f.DefaultOptions)
	if err != nil {
		return options.Failed(err), err
	}
	dataset := req.FetchType.Dataset(op.DatasetPrefix())
	keys := options.KeysFor(req.baseKey(), dataset, req.KeyOverrides.For(req.FetchType))
	label := strings.ToUpper(req.Ticker) + " " + dataset
	logger := logx.WithContext(ctx)

	latestClose := req.LatestClose
	if latestClose <= 0 {
		latestClose = f.Status.LatestClose(ctx, req.Ticker)
	}

	fetched, err := op.FetchOptions(ctx, market.ChainRequest{
		Ticker:      req.Ticker,
		Expiration:  req.Expiration,
		Side:        req.FetchType.Side(),
		LatestClose: latestClose,
		Now:         req.Now,
	})
	if !fetched.IsOK() {
		if fetched.Kind == options.KindError && fetched.Err == nil {
			fetched.Err = err
		}
		logger.Infof("ingest: %s fetch kind=%s err=%v", label, fetched.Kind, fetched.Err)
		res := options.Result{Kind: fetched.Kind, Err: fetched.Err}
		f.record(ctx, req, dataset, keys, res)
		return res, f.raise(res)
	}

	base := options.Empty()
	if f.Store != nil {
		base, err = store.LoadDataset(ctx, f.Store, keys)
		if err == nil && base.Kind == options.KindError {
			err = base.Err
		}
		if err != nil {
			var cacheErr *store.CacheError
			if !errors.As(err, &cacheErr) {
				err = &store.CacheError{Backend: "store", Op: "load", Key: keys.Redis, Err: err}
			}
			logger.Errorf("ingest: %s load key=%s err=%v", label, keys.Redis, err)
			res := options.Failed(err)
			f.record(ctx, req, dataset, keys, res)
			return res, f.raise(res)
		}
	}

	reconciler := &options.Reconciler{RaiseOnError: f.RaiseOnError, Label: label}
	merged, err := reconciler.Reconcile(ctx, base.Batch, fetched.Batch)
	f.record(ctx, req, dataset, keys, merged)
	return merged, err
}

func (f *Fetcher) raise(res options.Result) error {
	if f.RaiseOnError && res.Kind == options.KindError {
		return res.Err
	}
	return nil
}

// FetchAndPublish runs FetchAndMerge and publishes a SUCCESS merge to the
// publisher under the dataset keys.
func (f *Fetcher) FetchAndPublish(ctx context.Context, req Request) Outcome {
	dataset, keys, err := f.Keys(req)
	if err != nil {
		return Outcome{Result: options.Failed(err), Published: options.KindNotRun, Err: err}
	}
	out := Outcome{Dataset: dataset, Keys: keys, Published: options.KindNotRun}
	out.Result, out.Err = f.FetchAndMerge(ctx, req)
	if out.Err == nil && out.Result.Kind == options.KindError {
		out.Err = out.Result.Err
	}
	if !out.Result.IsOK() || f.Publisher == nil {
		return out
	}

	pubReq := publish.Request{
		Label:    strings.ToUpper(req.Ticker) + " " + dataset,
		Batch:    out.Result.Batch,
		RedisKey: keys.Redis,
		S3Key:    keys.S3,
		Provider: req.Provider,
		Side:     req.FetchType.Side(),
	}
	if pubReq.Provider == "" {
		pubReq.Provider = f.DefaultOptions
	}
	if f.ExportDir != "" {
		format := f.ExportFormat
		if format == "" {
			format = export.FormatCSV
		}
		pubReq.Format = format
		pubReq.OutputFile = fmt.Sprintf("%s/%s.%s", strings.TrimRight(f.ExportDir, "/"), keys.Redis, format.Extension())
	}
	out.Published, err = f.Publisher.Publish(ctx, pubReq)
	if err != nil {
		out.Err = err
	}
	return out
}

// FetchDatasets publishes every fetch type of a ticker concurrently. Failures
// are reported per dataset; the returned error joins them. Fetch types that
// resolve to the same key are rejected before anything is fetched.
func (f *Fetcher) FetchDatasets(ctx context.Context, base Request, fetchTypes []options.FetchType) ([]Outcome, error) {
	if err := f.checkDistinctKeys(base, fetchTypes); err != nil {
		return nil, err
	}
	limit := f.Parallelism
	if limit <= 0 {
		limit = defaultParallelism
	}
	outcomes := make([]Outcome, len(fetchTypes))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, ft := range fetchTypes {
		req := base
		req.FetchType = ft
		g.Go(func() error {
			outcomes[i] = f.FetchAndPublish(gctx, req)
			return nil
		})
	}
	_ = g.Wait()

	var errs []error
	for _, o := range outcomes {
		if o.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", o.Dataset, o.Err))
		}
	}
	return outcomes, errors.Join(errs...)
}

func (f *Fetcher) checkDistinctKeys(base Request, fetchTypes []options.FetchType) error {
	owner := make(map[string]string, len(fetchTypes))
	for _, ft := range fetchTypes {
		req := base
		req.FetchType = ft
		dataset, keys, err := f.Keys(req)
		if err != nil {
			return err
		}
		if prev, dup := owner[keys.Redis]; dup {
			return fmt.Errorf("ingest: %s and %s both resolve to key %q", prev, dataset, keys.Redis)
		}
		owner[keys.Redis] = dataset
	}
	return nil
}

// RefreshLatestClose pulls recent daily bars from the pricing provider and
// caches the last close for strike windowing. It returns 0 when no bar is
// available.
func (f *Fetcher) RefreshLatestClose(ctx context.Context, provider, ticker string, now time.Time) (float64, error) {
	pp, err := market.LookupPricing(f.Providers, provider, f.DefaultPricing)
	if err != nil {
		return 0, err
	}
	if now.IsZero() {
		now = time.Now()
	}
	bars, err := pp.FetchBars(ctx, market.BarsRequest{
		Ticker:   ticker,
		Interval: market.IntervalDay,
		From:     now.Add(-closeLookback),
		To:       now,
	})
	if err != nil {
		return 0, err
	}
	if len(bars) == 0 {
		return 0, nil
	}
	last := bars[len(bars)-1].Close
	f.Status.SetLatestClose(ctx, ticker, last)
	return last, nil
}

func (f *Fetcher) record(ctx context.Context, req Request, dataset string, keys options.DatasetKeys, res options.Result) {
	st := Status{
		Ticker:    strings.ToUpper(req.Ticker),
		Dataset:   dataset,
		Kind:      res.Kind.String(),
		Rows:      len(res.Batch),
		Conflicts: len(res.Conflicts),
		RedisKey:  keys.Redis,
		UpdatedAt: req.now().UTC(),
	}
	if res.Err != nil {
		st.Error = res.Err.Error()
	}
	f.Status.Record(ctx, st)
}
