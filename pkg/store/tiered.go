package store

import (
	"context"
	"errors"

	"github.com/zeromicro/go-zero/core/logx"

	"github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/pkg/options"
)

// TieredStore reads from the first tier holding data and writes to every
// tier. Typical order is Redis then the object store.
type TieredStore struct {
	tiers []BatchStore
}

// NewTieredStore skips nil tiers.
func NewTieredStore(tiers ...BatchStore) *TieredStore {
	t := &TieredStore{}
	for _, s := range tiers {
		if s != nil {
			t.tiers = append(t.tiers, s)
		}
	}
	return t
}

// Load implements BatchStore. A failing tier fails the load; it never falls
// through to a colder tier.
func (t *TieredStore) Load(ctx context.Context, key string) (options.Result, error) {
	return t.load(func(s BatchStore) (options.Result, error) {
		return s.Load(ctx, key)
	})
}

// LoadDataset implements DatasetLoader. Each tier is read under its own key,
// so an object store tier finds the ".json" copy of an overridden key after
// the cache entry has expired.
func (t *TieredStore) LoadDataset(ctx context.Context, keys options.DatasetKeys) (options.Result, error) {
	return t.load(func(s BatchStore) (options.Result, error) {
		return LoadDataset(ctx, s, keys)
	})
}

func (t *TieredStore) load(read func(BatchStore) (options.Result, error)) (options.Result, error) {
	if len(t.tiers) == 0 {
		return options.NotRun(), nil
	}
	for _, s := range t.tiers {
		res, err := read(s)
		if err != nil || res.Kind == options.KindError {
			return res, err
		}
		if res.IsOK() {
			return res, nil
		}
	}
	return options.Empty(), nil
}

// Save implements BatchStore. Every tier is attempted; the errors are joined.
func (t *TieredStore) Save(ctx context.Context, key string, batch options.Batch) error {
	var errs []error
	for _, s := range t.tiers {
		if err := s.Save(ctx, key, batch); err != nil {
			logx.WithContext(ctx).Errorf("store: tier save key=%s err=%v", key, err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
