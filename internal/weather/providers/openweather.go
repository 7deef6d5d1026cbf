package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/i474232898/farm-weather/internal/weather"
)

const openWeatherGeocodingURL = "https://api.openweathermap.org/geo/1.0/direct"

// OpenWeatherGeocoder implements weather.GeocodingProvider using OpenWeatherMap direct geocoding.
type OpenWeatherGeocoder struct {
	name    string
	apiKey  string
	baseURL string
	limiter *rate.Limiter
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewOpenWeatherGeocoder(client *http.Client, apiKey, baseURL string, rps float64) *OpenWeatherGeocoder {
	if baseURL == "" {
		baseURL = openWeatherGeocodingURL
	}
	return &OpenWeatherGeocoder{
		name:    "openweathermap-geocoding",
		apiKey:  apiKey,
		baseURL: baseURL,
		limiter: newLimiter(rps),
		httpCfg: HTTPClientConfig{Client: client, Backoff: DefaultBackoff},
		circuit: newBreaker("openweather-geocoding"),
	}
}

func (g *OpenWeatherGeocoder) Name() string {
	return g.name
}

// Search resolves a free-form query. A country code is appended to q for strict lookups,
// which is how the direct geocoding API scopes results.
func (g *OpenWeatherGeocoder) Search(ctx context.Context, query, countryCode string) ([]weather.GeoPoint, error) {
	if g.apiKey == "" {
		return nil, fmt.Errorf("openweather: %w", errMissingAPIKey)
	}
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	q := query
	if countryCode != "" {
		q = fmt.Sprintf("%s,%s", query, countryCode)
	}
	values := url.Values{}
	values.Set("q", q)
	values.Set("limit", "3")
	values.Set("appid", g.apiKey)

	var payload []struct {
		Name    string   `json:"name"`
		Lat     *float64 `json:"lat"`
		Lon     *float64 `json:"lon"`
		Country string   `json:"country"`
		State   string   `json:"state"`
	}

	u := fmt.Sprintf("%s?%s", g.baseURL, values.Encode())
	if err := getJSON(ctx, g.httpCfg, g.circuit, u, &payload); err != nil {
		return nil, err
	}

	points := make([]weather.GeoPoint, 0, len(payload))
	for _, r := range payload {
		points = append(points, weather.GeoPoint{
			Name:      r.Name,
			Latitude:  orNaN(r.Lat),
			Longitude: orNaN(r.Lon),
			Country:   r.Country,
			Admin1:    r.State,
		})
	}
	return points, nil
}
