package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/pkg/options"
)

// MemoryStore is an in-process BatchStore. Saved batches are cloned so
// callers cannot mutate stored data.
type MemoryStore struct {
	mu      sync.RWMutex
	batches map[string]options.Batch
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{batches: make(map[string]options.Batch)}
}

func (m *MemoryStore) Load(_ context.Context, key string) (options.Result, error) {
	m.mu.RLock()
	b, ok := m.batches[key]
	m.mu.RUnlock()
	if !ok || len(b) == 0 {
		return options.Empty(), nil
	}
	return options.Ok(b.Clone()), nil
}

func (m *MemoryStore) Save(_ context.Context, key string, batch options.Batch) error {
	m.mu.Lock()
	m.batches[key] = batch.Clone()
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) List(_ context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var keys []string
	for k := range m.batches {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// MemoryBlobs implements Blobs in memory.
type MemoryBlobs struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewMemoryBlobs() *MemoryBlobs {
	return &MemoryBlobs{blobs: make(map[string][]byte)}
}

func (m *MemoryBlobs) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.blobs[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

func (m *MemoryBlobs) Put(_ context.Context, key string, data []byte, _ string) error {
	m.mu.Lock()
	m.blobs[key] = append([]byte(nil), data...)
	m.mu.Unlock()
	return nil
}

func (m *MemoryBlobs) List(_ context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var keys []string
	for k := range m.blobs {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}
