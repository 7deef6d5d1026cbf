package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/i474232898/farm-weather/internal/weather"
)

// RedisStore is a weather.CacheStore keeping one JSON envelope per cache key.
type RedisStore struct {
	client    *redis.Client
	retention time.Duration
}

// NewRedisStore wraps an existing client. retention bounds how long redis keeps
// a key after its last write; zero keeps keys indefinitely.
func NewRedisStore(client *redis.Client, retention time.Duration) *RedisStore {
	return &RedisStore{client: client, retention: retention}
}

// ConnectRedis parses a redis URL and verifies the connection.
func ConnectRedis(ctx context.Context, redisURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	opt.MaxRetries = 2
	opt.DialTimeout = 3 * time.Second
	opt.ReadTimeout = 2 * time.Second
	opt.WriteTimeout = 2 * time.Second

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Println("INFO: [store] redis connected")
	return client, nil
}

func (s *RedisStore) Read(ctx context.Context, key string) (weather.CacheEntry, bool) {
	raw, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Printf("WARN: [store] redis GET failed key=%s: %v", key, err)
		}
		return weather.CacheEntry{}, false
	}
	entry, err := decodeEntry(raw)
	if err != nil {
		log.Printf("WARN: [store] ignoring malformed redis entry key=%s: %v", key, err)
		return weather.CacheEntry{}, false
	}
	return entry, true
}

func (s *RedisStore) Write(ctx context.Context, key, locationKey string, payload weather.WeatherPayload, provider string, summary weather.SummaryProvider) error {
	raw, err := encodeEntry(newEntry(key, locationKey, payload, provider, summary))
	if err != nil {
		return err
	}
	return s.client.Set(ctx, key, raw, s.retention).Err()
}
