package providers

import (
	"context"
	"fmt"
	"sync"

	"github.com/kelvins/geocoder"
	"golang.org/x/time/rate"

	"github.com/i474232898/farm-weather/internal/weather"
)

// googleKeyOnce guards the package-level key the geocoder library reads.
var googleKeyOnce sync.Once

// googleMaxInFlight bounds concurrent library calls.
const googleMaxInFlight = 4

// GoogleGeocoder implements weather.GeocodingProvider with the Google Maps Geocoding API.
// Google returns a single best match; a reverse lookup fills in place names.
//
// The library has no context support and its http.Client has no timeout, so a
// hung lookup keeps its goroutine until the connection fails. At most
// googleMaxInFlight lookups run at once; further searches wait for a slot or
// give up when their context ends.
type GoogleGeocoder struct {
	name    string
	limiter *rate.Limiter
	slots   chan struct{}
}

func NewGoogleGeocoder(apiKey string, rps float64) *GoogleGeocoder {
	googleKeyOnce.Do(func() {
		geocoder.ApiKey = apiKey
	})
	return &GoogleGeocoder{
		name:    "google-geocoding",
		limiter: newLimiter(rps),
		slots:   make(chan struct{}, googleMaxInFlight),
	}
}

func (g *GoogleGeocoder) Name() string {
	return g.name
}

type googleResult struct {
	point weather.GeoPoint
	err   error
}

// Search geocodes the query. The lookup runs in its own goroutine and is
// abandoned when ctx ends.
func (g *GoogleGeocoder) Search(ctx context.Context, query, countryCode string) ([]weather.GeoPoint, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	select {
	case g.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	done := make(chan googleResult, 1)
	go func() {
		defer func() { <-g.slots }()
		defer func() {
			if r := recover(); r != nil {
				done <- googleResult{err: fmt.Errorf("google geocoding panicked: %v", r)}
			}
		}()
		p, err := lookupGoogle(query, countryCode)
		done <- googleResult{point: p, err: redactURL(err)}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-done:
		if r.err != nil {
			return nil, r.err
		}
		return []weather.GeoPoint{r.point}, nil
	}
}

func lookupGoogle(query, countryCode string) (weather.GeoPoint, error) {
	loc, err := geocoder.Geocoding(geocoder.Address{
		Street:  query,
		Country: countryCode,
	})
	if err != nil {
		return weather.GeoPoint{}, err
	}

	point := weather.GeoPoint{
		Latitude:  loc.Latitude,
		Longitude: loc.Longitude,
	}
	addrs, err := geocoder.GeocodingReverse(loc)
	if err == nil && len(addrs) > 0 {
		a := addrs[0]
		point.Name = a.City
		point.Admin2 = a.County
		point.Admin1 = a.State
		point.Country = a.Country
	}
	return point, nil
}
