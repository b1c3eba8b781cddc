package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/core/stores/redis"

	cachekeys "github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/internal/cache"
)

// Status is the last recorded outcome of a dataset fetch.
type Status struct {
	Ticker    string    `json:"ticker"`
	Dataset   string    `json:"dataset"`
	Kind      string    `json:"kind"`
	Rows      int       `json:"rows"`
	Conflicts int       `json:"conflicts"`
	RedisKey  string    `json:"redis_key,omitempty"`
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StatusBoard records fetch outcomes and latest closes in Redis.
type StatusBoard struct {
	client *redis.Redis
	ttl    cachekeys.TTLSet
}

// NewStatusBoard returns nil when client is nil; a nil board ignores writes.
func NewStatusBoard(client *redis.Redis, ttl cachekeys.TTLSet) *StatusBoard {
	if client == nil {
		return nil
	}
	return &StatusBoard{client: client, ttl: ttl}
}

func (b *StatusBoard) Record(ctx context.Context, st Status) {
	if b == nil {
		return
	}
	payload, err := json.Marshal(st)
	if err != nil {
		return
	}
	key := cachekeys.FetchStatusKey(st.Ticker, st.Dataset)
	if err := setWithTTL(ctx, b.client, key, string(payload), cachekeys.FetchStatusTTL(b.ttl)); err != nil {
		logx.WithContext(ctx).Errorf("ingest: write status key=%s err=%v", key, err)
	}
}

// Lookup returns the stored status, or ok=false when none is recorded.
func (b *StatusBoard) Lookup(ctx context.Context, ticker, dataset string) (Status, bool, error) {
	var st Status
	if b == nil {
		return st, false, nil
	}
	raw, err := b.client.GetCtx(ctx, cachekeys.FetchStatusKey(ticker, dataset))
	if err != nil {
		return st, false, err
	}
	if raw == "" {
		return st, false, nil
	}
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		return st, false, fmt.Errorf("ingest: decode status: %w", err)
	}
	return st, true, nil
}

// SetLatestClose caches the underlying's last close.
func (b *StatusBoard) SetLatestClose(ctx context.Context, ticker string, price float64) {
	if b == nil || price <= 0 {
		return
	}
	key := cachekeys.LatestCloseKey(ticker)
	value := fmt.Sprintf("%g", price)
	if err := setWithTTL(ctx, b.client, key, value, cachekeys.LatestCloseTTL(b.ttl)); err != nil {
		logx.WithContext(ctx).Errorf("ingest: write close key=%s err=%v", key, err)
	}
}

// LatestClose returns the cached close, or 0 when unknown.
func (b *StatusBoard) LatestClose(ctx context.Context, ticker string) float64 {
	if b == nil {
		return 0
	}
	raw, err := b.client.GetCtx(ctx, cachekeys.LatestCloseKey(ticker))
	if err != nil || strings.TrimSpace(raw) == "" {
		return 0
	}
	var price float64
	if _, err := fmt.Sscan(raw, &price); err != nil {
		return 0
	}
	return price
}

func setWithTTL(ctx context.Context, client *redis.Redis, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		return client.SetCtx(ctx, key, value)
	}
	seconds := int(ttl / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	return client.SetexCtx(ctx, key, value, seconds)
}
