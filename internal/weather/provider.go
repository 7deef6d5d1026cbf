package weather

import (
	"context"
	"errors"
)

// ErrInvalidCredential is returned by an Authenticator when the bearer token is missing or rejected.
var ErrInvalidCredential = errors.New("invalid credential")

// Authenticator verifies a bearer credential and returns the caller id.
type Authenticator interface {
	Verify(ctx context.Context, bearerToken string) (string, error)
}

// AddressStore loads the caller's stored address. ok is false when no record exists.
type AddressStore interface {
	GetAddress(ctx context.Context, callerID string) (rec AddressRecord, ok bool, err error)
}

// GeocodingProvider abstracts a geocoding source (e.g. Open-Meteo, OpenWeather, Google).
// An empty countryCode means an unfiltered search.
type GeocodingProvider interface {
	Name() string
	Search(ctx context.Context, query, countryCode string) ([]GeoPoint, error)
}

// ForecastProvider abstracts a weather source returning current and same-day readings.
type ForecastProvider interface {
	Name() string
	CurrentAndDaily(ctx context.Context, lat, lon float64) (Conditions, error)
}

// Summarizer produces an alternative one-line forecast description.
type Summarizer interface {
	Name() string
	Summarize(ctx context.Context, facts SummaryFacts) (string, error)
}

// CacheStore persists the last successful payload per cache key.
// Read reports a miss (ok=false) for missing or malformed entries; it never errors.
type CacheStore interface {
	Read(ctx context.Context, key string) (entry CacheEntry, ok bool)
	Write(ctx context.Context, key, locationKey string, payload WeatherPayload, provider string, summary SummaryProvider) error
}
