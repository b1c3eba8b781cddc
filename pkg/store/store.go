// Package store persists option batches in the cache and the object store.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/pkg/options"
)

// BatchStore loads and saves whole batches under a key.
//
// Load returns KindSuccess with the batch, KindEmpty when nothing is stored
// under key, or KindError together with a *CacheError.
type BatchStore interface {
	Load(ctx context.Context, key string) (options.Result, error)
	Save(ctx context.Context, key string, batch options.Batch) error
}

// DatasetLoader is implemented by stores that read a dataset under one of
// its two keys instead of the cache key.
type DatasetLoader interface {
	LoadDataset(ctx context.Context, keys options.DatasetKeys) (options.Result, error)
}

// LoadDataset loads the batch of a dataset from s. Stores that do not
// implement DatasetLoader are read under the cache key.
func LoadDataset(ctx context.Context, s BatchStore, keys options.DatasetKeys) (options.Result, error) {
	if dl, ok := s.(DatasetLoader); ok {
		return dl.LoadDataset(ctx, keys)
	}
	return s.Load(ctx, keys.Redis)
}

// Lister enumerates stored keys under a prefix.
type Lister interface {
	List(ctx context.Context, prefix string) ([]string, error)
}

var (
	// ErrCache matches every *CacheError.
	ErrCache = errors.New("store: cache failure")
	// ErrNotFound is returned by raw reads of a missing key.
	ErrNotFound = errors.New("store: not found")
)

// CacheError reports a failed load or save against one backend.
type CacheError struct {
	Backend string
	Op      string
	Key     string
	Err     error
}

func (e *CacheError) Error() string {
	return fmt.Sprintf("store: %s %s key=%s: %v", e.Backend, e.Op, e.Key, e.Err)
}

func (e *CacheError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrCache) match any cache failure.
func (e *CacheError) Is(target error) bool { return target == ErrCache }

func loadFailed(backend, key string, err error) (options.Result, error) {
	cerr := &CacheError{Backend: backend, Op: "load", Key: key, Err: err}
	return options.Failed(cerr), cerr
}

func decodeResult(backend, key string, codec Codec, data []byte) (options.Result, error) {
	if len(data) == 0 {
		return options.Empty(), nil
	}
	batch, err := codec.Decode(data)
	if err != nil {
		return loadFailed(backend, key, fmt.Errorf("decode %s: %w", codec.Name(), err))
	}
	return options.Ok(batch), nil
}
