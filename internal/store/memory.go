package store

import (
	"context"
	"sync"

	"github.com/i474232898/farm-weather/internal/weather"
)

// MemoryStore is a concurrency-safe, process-local weather.CacheStore.
// It holds exactly one entry per cache key; writes overwrite.
type MemoryStore struct {
	mu sync.RWMutex

	// key: cache key, value: last written entry
	data map[string]weather.CacheEntry
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]weather.CacheEntry),
	}
}

// Read returns the entry for key, if any.
func (s *MemoryStore) Read(_ context.Context, key string) (weather.CacheEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.data[key]
	if !ok || entry.FetchedAt.IsZero() {
		return weather.CacheEntry{}, false
	}
	return entry, true
}

// Write upserts the entry for key (last write wins).
func (s *MemoryStore) Write(_ context.Context, key, locationKey string, payload weather.WeatherPayload, provider string, summary weather.SummaryProvider) error {
	entry := newEntry(key, locationKey, payload, provider, summary)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = entry
	return nil
}

// Len reports how many keys are stored.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
