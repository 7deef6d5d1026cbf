package store

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestMongoStore needs a reachable server; set MONGO_TEST_URI to run it.
func TestMongoStore(t *testing.T) {
	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		t.Skip("MONGO_TEST_URI not set")
	}

	ctx := context.Background()
	client, err := ConnectMongo(ctx, uri)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Disconnect(context.Background()) })

	coll := client.Database("farm_weather_test").Collection("weather_cache_" + strconv.FormatInt(time.Now().UnixNano(), 36))
	t.Cleanup(func() { _ = coll.Drop(context.Background()) })

	s := NewMongoStore(coll)
	require.NoError(t, s.EnsureIndexes(ctx))
	exerciseCacheStore(t, s)
}
