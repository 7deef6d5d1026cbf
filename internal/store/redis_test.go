package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisStore(t *testing.T) {
	_, client := newTestRedis(t)
	exerciseCacheStore(t, NewRedisStore(client, 0))
}

func TestRedisStore_Retention(t *testing.T) {
	mr, client := newTestRedis(t)
	s := NewRedisStore(client, 4*time.Hour)

	require.NoError(t, s.Write(context.Background(), testKey, "loc", samplePayload(time.Now().UTC()), "open-meteo", "rule"))
	assert.Equal(t, 4*time.Hour, mr.TTL(testKey))

	mr.FastForward(5 * time.Hour)
	_, ok := s.Read(context.Background(), testKey)
	assert.False(t, ok)
}

func TestRedisStore_MalformedIsMiss(t *testing.T) {
	mr, client := newTestRedis(t)
	s := NewRedisStore(client, 0)

	require.NoError(t, mr.Set(testKey, "definitely not an envelope"))
	_, ok := s.Read(context.Background(), testKey)
	assert.False(t, ok)

	require.NoError(t, mr.Set(testKey, `{"version":99,"payload":{},"fetched_at":"2024-06-01T06:00:00Z"}`))
	_, ok = s.Read(context.Background(), testKey)
	assert.False(t, ok)
}

func TestRedisStore_ServerDownIsMiss(t *testing.T) {
	mr, client := newTestRedis(t)
	s := NewRedisStore(client, 0)
	mr.Close()

	_, ok := s.Read(context.Background(), testKey)
	assert.False(t, ok)
	assert.Error(t, s.Write(context.Background(), testKey, "loc", samplePayload(time.Now()), "open-meteo", "rule"))
}

func TestConnectRedis(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := ConnectRedis(context.Background(), "redis://"+mr.Addr())
	require.NoError(t, err)
	_ = client.Close()

	_, err = ConnectRedis(context.Background(), "::not a url")
	assert.Error(t, err)
}
