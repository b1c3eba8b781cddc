package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/pkg/options"
)

type failingStore struct{}

func (failingStore) Load(_ context.Context, key string) (options.Result, error) {
	return loadFailed("fake", key, errors.New("boom"))
}

func (failingStore) Save(_ context.Context, key string, _ options.Batch) error {
	return &CacheError{Backend: "fake", Op: "save", Key: key, Err: errors.New("boom")}
}

func TestObjectStore_MissingKeyIsEmpty(t *testing.T) {
	s := NewObjectStore(NewMemoryBlobs(), nil)
	res, err := s.Load(context.Background(), "SPY_2024-01-19_tdcalls")
	require.NoError(t, err)
	assert.Equal(t, options.KindEmpty, res.Kind)
}

func TestObjectStore_StoresPlainJSON(t *testing.T) {
	blobs := NewMemoryBlobs()
	s := NewObjectStore(blobs, nil)
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, "k.json", sampleBatch()))

	raw, err := blobs.Get(ctx, "k.json")
	require.NoError(t, err)
	assert.Equal(t, byte('['), raw[0])

	res, err := s.Load(ctx, "k.json")
	require.NoError(t, err)
	assert.Len(t, res.Batch, 2)
}

func TestTieredStore_ReadsFirstTierWithData(t *testing.T) {
	hot, cold := NewMemoryStore(), NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, cold.Save(ctx, "k", sampleBatch()))

	tiered := NewTieredStore(hot, nil, cold)
	res, err := tiered.Load(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, options.KindSuccess, res.Kind)

	require.NoError(t, tiered.Save(ctx, "k2", sampleBatch()[:1]))
	got, _ := hot.Load(ctx, "k2")
	assert.Len(t, got.Batch, 1)
	got, _ = cold.Load(ctx, "k2")
	assert.Len(t, got.Batch, 1)
}

func TestTieredStore_LoadDatasetReadsEachTierUnderItsOwnKey(t *testing.T) {
	ctx := context.Background()
	hot := NewMemoryStore()
	cold := NewObjectStore(NewMemoryBlobs(), nil)
	keys := options.KeysFor("SPY_2024-01-19", "tdcalls", "custom")
	require.NoError(t, cold.Save(ctx, keys.S3, sampleBatch()))

	tiered := NewTieredStore(hot, cold)
	res, err := tiered.Load(ctx, keys.Redis)
	require.NoError(t, err)
	assert.Equal(t, options.KindEmpty, res.Kind)

	res, err = LoadDataset(ctx, tiered, keys)
	require.NoError(t, err)
	require.Equal(t, options.KindSuccess, res.Kind)
	assert.Len(t, res.Batch, 2)

	require.NoError(t, hot.Save(ctx, keys.Redis, sampleBatch()[:1]))
	res, err = LoadDataset(ctx, tiered, keys)
	require.NoError(t, err)
	assert.Len(t, res.Batch, 1, "the hot tier wins when it holds data")

	_, err = LoadDataset(ctx, NewTieredStore(failingStore{}, cold), keys)
	assert.ErrorIs(t, err, ErrCache)
}

func TestTieredStore_FailingTierFailsLoadAndJoinsSaveErrors(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryStore()
	tiered := NewTieredStore(failingStore{}, mem)

	res, err := tiered.Load(ctx, "k")
	assert.ErrorIs(t, err, ErrCache)
	assert.Equal(t, options.KindError, res.Kind)

	err = tiered.Save(ctx, "k", sampleBatch())
	assert.ErrorIs(t, err, ErrCache)
	got, _ := mem.Load(ctx, "k")
	assert.Len(t, got.Batch, 2, "healthy tiers are still written")
}

func TestTieredStore_NoTiersIsNotRun(t *testing.T) {
	res, err := NewTieredStore().Load(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, options.KindNotRun, res.Kind)
}

func TestMemoryStore_IsolatesCallers(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	b := sampleBatch()
	require.NoError(t, m.Save(ctx, "k", b))
	b[0]["strike"] = 1.0

	res, _ := m.Load(ctx, "k")
	assert.Equal(t, 470.0, res.Batch[0]["strike"])
}
