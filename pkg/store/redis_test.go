package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeromicro/go-zero/core/stores/redis"

	"github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/pkg/options"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Redis) {
	t.Helper()
	mr := miniredis.RunT(t)
	return mr, redis.MustNewRedis(redis.RedisConf{Host: mr.Addr(), Type: redis.NodeType})
}

func TestRedisStore_SaveLoadWithTTL(t *testing.T) {
	mr, client := newRedis(t)
	s := NewRedisStore(client, WithTTL(time.Hour))
	ctx := context.Background()

	res, err := s.Load(ctx, "SPY_2024-01-19_tdcalls")
	require.NoError(t, err)
	assert.Equal(t, options.KindEmpty, res.Kind)

	require.NoError(t, s.Save(ctx, "SPY_2024-01-19_tdcalls", sampleBatch()))
	assert.Equal(t, time.Hour, mr.TTL("SPY_2024-01-19_tdcalls"))

	res, err = s.Load(ctx, "SPY_2024-01-19_tdcalls")
	require.NoError(t, err)
	require.Equal(t, options.KindSuccess, res.Kind)
	assert.Equal(t, keys(t, sampleBatch()), keys(t, res.Batch))

	raw, err := s.Raw(ctx, "SPY_2024-01-19_tdcalls")
	require.NoError(t, err)
	assert.True(t, isZlib(raw))

	_, err = s.Raw(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStore_CorruptPayloadIsCacheError(t *testing.T) {
	mr, client := newRedis(t)
	require.NoError(t, mr.Set("bad", "not json"))

	res, err := NewRedisStore(client).Load(context.Background(), "bad")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCache)
	assert.Equal(t, options.KindError, res.Kind)
	assert.Empty(t, res.Batch)
}

func TestRedisStore_ConnectionFailureIsCacheError(t *testing.T) {
	mr, client := newRedis(t)
	mr.Close()

	res, err := NewRedisStore(client).Load(context.Background(), "k")
	require.Error(t, err)
	var cerr *CacheError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "redis", cerr.Backend)
	assert.Equal(t, options.KindError, res.Kind)
}

func TestRedisStore_List(t *testing.T) {
	_, client := newRedis(t)
	s := NewRedisStore(client, WithCodec(JSONCodec{}))
	ctx := context.Background()
	for _, k := range []string{"SPY_2024-01-19_tdcalls", "SPY_2024-01-19_tdputs", "QQQ_2024-01-19_tdcalls"} {
		require.NoError(t, s.Save(ctx, k, sampleBatch()))
	}
	got, err := s.List(ctx, "SPY_")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"SPY_2024-01-19_tdcalls", "SPY_2024-01-19_tdputs"}, got)
}
