package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/i474232898/farm-weather/internal/weather"
)

// mongoCacheDoc is one document in the weather_cache collection.
type mongoCacheDoc struct {
	CacheKey        string    `bson:"cache_key"`
	LocationKey     string    `bson:"location_key"`
	Payload         []byte    `bson:"payload"`
	FetchedAt       time.Time `bson:"fetched_at"`
	Provider        string    `bson:"provider"`
	SummaryProvider string    `bson:"summary_provider"`
	UpdatedAt       time.Time `bson:"updated_at"`
}

// MongoStore is a weather.CacheStore backed by a MongoDB collection.
type MongoStore struct {
	collection *mongo.Collection
}

func NewMongoStore(collection *mongo.Collection) *MongoStore {
	return &MongoStore{collection: collection}
}

// ConnectMongo connects and pings the server.
func ConnectMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect failed: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping failed: %w", err)
	}
	return client, nil
}

// EnsureIndexes creates the unique cache_key index backing the upsert.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "cache_key", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("cache_key_unique"),
	})
	if err != nil {
		return err
	}
	log.Printf("INFO: [store] mongo index ensured collection=%s index=cache_key_unique", s.collection.Name())
	return nil
}

func (s *MongoStore) Read(ctx context.Context, key string) (weather.CacheEntry, bool) {
	var doc mongoCacheDoc
	err := s.collection.FindOne(ctx, bson.M{"cache_key": key}).Decode(&doc)
	if err != nil {
		if !errors.Is(err, mongo.ErrNoDocuments) {
			log.Printf("WARN: [store] mongo read failed key=%s: %v", key, err)
		}
		return weather.CacheEntry{}, false
	}
	entry, err := decodeEntry(doc.Payload)
	if err != nil {
		log.Printf("WARN: [store] ignoring malformed mongo entry key=%s: %v", key, err)
		return weather.CacheEntry{}, false
	}
	return entry, true
}

func (s *MongoStore) Write(ctx context.Context, key, locationKey string, payload weather.WeatherPayload, provider string, summary weather.SummaryProvider) error {
	entry := newEntry(key, locationKey, payload, provider, summary)
	raw, err := encodeEntry(entry)
	if err != nil {
		return err
	}
	doc := mongoCacheDoc{
		CacheKey:        entry.CacheKey,
		LocationKey:     entry.LocationKey,
		Payload:         raw,
		FetchedAt:       entry.FetchedAt,
		Provider:        entry.Provider,
		SummaryProvider: string(entry.SummaryProvider),
		UpdatedAt:       time.Now().UTC(),
	}
	_, err = s.collection.UpdateOne(
		ctx,
		bson.M{"cache_key": key},
		bson.M{"$set": doc},
		options.Update().SetUpsert(true),
	)
	return err
}
