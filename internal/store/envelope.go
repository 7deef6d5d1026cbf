package store

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/i474232898/farm-weather/internal/weather"
)

// envelopeVersion is bumped whenever the serialized entry shape changes;
// entries written with another version are treated as misses.
const envelopeVersion = 1

var errMalformedEnvelope = errors.New("malformed cache envelope")

// envelope is the serialized form used by the remote backends.
type envelope struct {
	Version         int                     `json:"version"`
	CacheKey        string                  `json:"cache_key"`
	LocationKey     string                  `json:"location_key"`
	Payload         *weather.WeatherPayload `json:"payload"`
	FetchedAt       time.Time               `json:"fetched_at"`
	Provider        string                  `json:"provider"`
	SummaryProvider weather.SummaryProvider `json:"summary_provider"`
}

// newEntry stamps the entry with the payload's own fetch time so the two never drift.
func newEntry(key, locationKey string, payload weather.WeatherPayload, provider string, summary weather.SummaryProvider) weather.CacheEntry {
	payload.FetchedAt = payload.FetchedAt.UTC()
	return weather.CacheEntry{
		CacheKey:        key,
		LocationKey:     locationKey,
		Payload:         payload,
		FetchedAt:       payload.FetchedAt,
		Provider:        provider,
		SummaryProvider: summary,
	}
}

func encodeEntry(e weather.CacheEntry) ([]byte, error) {
	payload := e.Payload
	return json.Marshal(envelope{
		Version:         envelopeVersion,
		CacheKey:        e.CacheKey,
		LocationKey:     e.LocationKey,
		Payload:         &payload,
		FetchedAt:       e.FetchedAt,
		Provider:        e.Provider,
		SummaryProvider: e.SummaryProvider,
	})
}

func decodeEntry(raw []byte) (weather.CacheEntry, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return weather.CacheEntry{}, err
	}
	if env.Version != envelopeVersion || env.Payload == nil || env.FetchedAt.IsZero() {
		return weather.CacheEntry{}, errMalformedEnvelope
	}
	return weather.CacheEntry{
		CacheKey:        env.CacheKey,
		LocationKey:     env.LocationKey,
		Payload:         *env.Payload,
		FetchedAt:       env.FetchedAt,
		Provider:        env.Provider,
		SummaryProvider: env.SummaryProvider,
	}, nil
}
