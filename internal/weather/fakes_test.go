package weather

import (
	"context"
	"errors"
	"sync"
	"time"
)

type fakeAuth struct {
	ids   map[string]string
	err   error
	calls int
}

func (f *fakeAuth) Verify(_ context.Context, token string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	id, ok := f.ids[token]
	if !ok {
		return "", ErrInvalidCredential
	}
	return id, nil
}

type fakeAddresses struct {
	records map[string]AddressRecord
	err     error
}

func (f *fakeAddresses) GetAddress(_ context.Context, callerID string) (AddressRecord, bool, error) {
	if f.err != nil {
		return AddressRecord{}, false, f.err
	}
	rec, ok := f.records[callerID]
	return rec, ok, nil
}

type searchCall struct {
	Query   string
	Country string
}

type fakeGeocoder struct {
	mu      sync.Mutex
	results map[string][]GeoPoint // keyed by query + "|" + country
	err     error
	calls   []searchCall
}

func (f *fakeGeocoder) Name() string { return "fake-geocoder" }

func (f *fakeGeocoder) Search(_ context.Context, query, countryCode string) ([]GeoPoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, searchCall{Query: query, Country: countryCode})
	if f.err != nil {
		return nil, f.err
	}
	return f.results[query+"|"+countryCode], nil
}

func (f *fakeGeocoder) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeForecast struct {
	name  string
	cond  Conditions
	err   error
	calls int
}

func (f *fakeForecast) Name() string { return f.name }

func (f *fakeForecast) CurrentAndDaily(_ context.Context, _, _ float64) (Conditions, error) {
	f.calls++
	if f.err != nil {
		return Conditions{}, f.err
	}
	return f.cond, nil
}

type fakeSummarizer struct {
	text  string
	err   error
	panic bool
	calls int
}

func (f *fakeSummarizer) Name() string { return "fake-ai" }

func (f *fakeSummarizer) Summarize(_ context.Context, _ SummaryFacts) (string, error) {
	f.calls++
	if f.panic {
		panic("summarizer exploded")
	}
	return f.text, f.err
}

type fakeCache struct {
	mu       sync.Mutex
	entries  map[string]CacheEntry
	writeErr error
	reads    int
	writes   int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: map[string]CacheEntry{}}
}

func (f *fakeCache) Read(_ context.Context, key string) (CacheEntry, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	e, ok := f.entries[key]
	return e, ok
}

func (f *fakeCache) Write(_ context.Context, key, locationKey string, payload WeatherPayload, provider string, summary SummaryProvider) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes++
	if f.writeErr != nil {
		return f.writeErr
	}
	f.entries[key] = CacheEntry{
		CacheKey:        key,
		LocationKey:     locationKey,
		Payload:         payload,
		FetchedAt:       payload.FetchedAt,
		Provider:        provider,
		SummaryProvider: summary,
	}
	return nil
}

func (f *fakeCache) seed(key string, fetchedAt time.Time, payload WeatherPayload) {
	payload.FetchedAt = fetchedAt
	f.entries[key] = CacheEntry{CacheKey: key, Payload: payload, FetchedAt: fetchedAt, Provider: "open-meteo", SummaryProvider: SummaryRule}
}

var errUpstream = errors.New("upstream unavailable")

func ptr(f float64) *float64 { return &f }

func sampleConditions() Conditions {
	return Conditions{
		Provider:      "open-meteo",
		TemperatureC:  29.6,
		HumidityPct:   61.2,
		WindKmh:       12.4,
		WeatherCode:   2,
		MaxTempC:      ptr(33.4),
		MinTempC:      ptr(22.5),
		PrecipProbMax: ptr(40),
	}
}
