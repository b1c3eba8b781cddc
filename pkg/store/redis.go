package store

import (
	"context"
	"time"

	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/core/stores/redis"

	"github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/pkg/options"
)

const redisBackend = "redis"

// RedisStore keeps encoded batches as plain Redis strings.
type RedisStore struct {
	client *redis.Redis
	codec  Codec
	ttl    time.Duration
}

// RedisOption customises a RedisStore.
type RedisOption func(*RedisStore)

// WithCodec overrides the default zlib+json codec.
func WithCodec(c Codec) RedisOption {
	return func(s *RedisStore) {
		if c != nil {
			s.codec = c
		}
	}
}

// WithTTL expires saved keys after ttl; zero keeps them forever.
func WithTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) {
		if ttl >= 0 {
			s.ttl = ttl
		}
	}
}

// NewRedisStore wraps a go-zero Redis client.
func NewRedisStore(client *redis.Redis, opts ...RedisOption) *RedisStore {
	s := &RedisStore{client: client, codec: Compressed(JSONCodec{})}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load implements BatchStore.
func (s *RedisStore) Load(ctx context.Context, key string) (options.Result, error) {
	val, err := s.client.GetCtx(ctx, key)
	if err != nil {
		return loadFailed(redisBackend, key, err)
	}
	return decodeResult(redisBackend, key, s.codec, []byte(val))
}

// Save implements BatchStore.
func (s *RedisStore) Save(ctx context.Context, key string, batch options.Batch) error {
	data, err := s.codec.Encode(batch)
	if err != nil {
		return &CacheError{Backend: redisBackend, Op: "encode", Key: key, Err: err}
	}
	if s.ttl > 0 {
		err = s.client.SetexCtx(ctx, key, string(data), int(s.ttl/time.Second))
	} else {
		err = s.client.SetCtx(ctx, key, string(data))
	}
	if err != nil {
		return &CacheError{Backend: redisBackend, Op: "save", Key: key, Err: err}
	}
	logx.WithContext(ctx).Debugf("store: redis saved key=%s rows=%d bytes=%d", key, len(batch), len(data))
	return nil
}

// Raw returns the stored bytes of key, or ErrNotFound.
func (s *RedisStore) Raw(ctx context.Context, key string) ([]byte, error) {
	val, err := s.client.GetCtx(ctx, key)
	if err != nil {
		return nil, &CacheError{Backend: redisBackend, Op: "get", Key: key, Err: err}
	}
	if val == "" {
		return nil, ErrNotFound
	}
	return []byte(val), nil
}

// List implements Lister using SCAN.
func (s *RedisStore) List(ctx context.Context, prefix string) ([]string, error) {
	var (
		keys   []string
		cursor uint64
	)
	for {
		batch, next, err := s.client.ScanCtx(ctx, cursor, prefix+"*", 500)
		if err != nil {
			return nil, &CacheError{Backend: redisBackend, Op: "scan", Key: prefix, Err: err}
		}
		keys = append(keys, batch...)
		if next == 0 {
			return keys, nil
		}
		cursor = next
	}
}
