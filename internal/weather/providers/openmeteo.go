package providers

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/i474232898/farm-weather/internal/weather"
)

const (
	openMeteoForecastURL  = "https://api.open-meteo.com/v1/forecast"
	openMeteoGeocodingURL = "https://geocoding-api.open-meteo.com/v1/search"
)

// OpenMeteoProvider implements weather.ForecastProvider for Open-Meteo.
type OpenMeteoProvider struct {
	name    string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

// NewOpenMeteoProvider creates the forecast client. An empty baseURL uses the public endpoint.
func NewOpenMeteoProvider(client *http.Client, baseURL string) *OpenMeteoProvider {
	if baseURL == "" {
		baseURL = openMeteoForecastURL
	}
	return &OpenMeteoProvider{
		name:    "open-meteo",
		baseURL: baseURL,
		httpCfg: HTTPClientConfig{Client: client, Backoff: DefaultBackoff},
		circuit: newBreaker("open-meteo-forecast"),
	}
}

func (p *OpenMeteoProvider) Name() string {
	return p.name
}

// CurrentAndDaily fetches current conditions plus today's max/min temperature and rain probability.
func (p *OpenMeteoProvider) CurrentAndDaily(ctx context.Context, lat, lon float64) (weather.Conditions, error) {
	values := url.Values{}
	values.Set("latitude", strconv.FormatFloat(lat, 'f', 4, 64))
	values.Set("longitude", strconv.FormatFloat(lon, 'f', 4, 64))
	values.Set("current", "temperature_2m,relative_humidity_2m,wind_speed_10m,weather_code")
	values.Set("daily", "temperature_2m_max,temperature_2m_min,precipitation_probability_max")
	values.Set("wind_speed_unit", "kmh")
	values.Set("forecast_days", "1")
	values.Set("timezone", "auto")

	var payload struct {
		Current *struct {
			Temperature float64 `json:"temperature_2m"`
			Humidity    float64 `json:"relative_humidity_2m"`
			WindSpeed   float64 `json:"wind_speed_10m"`
			WeatherCode int     `json:"weather_code"`
		} `json:"current"`
		Daily struct {
			TempMax    []*float64 `json:"temperature_2m_max"`
			TempMin    []*float64 `json:"temperature_2m_min"`
			PrecipProb []*float64 `json:"precipitation_probability_max"`
		} `json:"daily"`
	}

	u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
	if err := getJSON(ctx, p.httpCfg, p.circuit, u, &payload); err != nil {
		return weather.Conditions{}, err
	}
	if payload.Current == nil {
		return weather.Conditions{}, fmt.Errorf("open-meteo response has no current block")
	}

	return weather.Conditions{
		Provider:      p.name,
		TemperatureC:  payload.Current.Temperature,
		HumidityPct:   payload.Current.Humidity,
		WindKmh:       payload.Current.WindSpeed,
		WeatherCode:   payload.Current.WeatherCode,
		MaxTempC:      first(payload.Daily.TempMax),
		MinTempC:      first(payload.Daily.TempMin),
		PrecipProbMax: first(payload.Daily.PrecipProb),
	}, nil
}

func first(vals []*float64) *float64 {
	if len(vals) == 0 {
		return nil
	}
	return vals[0]
}

// OpenMeteoGeocoder implements weather.GeocodingProvider using the Open-Meteo geocoding API.
type OpenMeteoGeocoder struct {
	name    string
	baseURL string
	limiter *rate.Limiter
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

// NewOpenMeteoGeocoder creates the geocoding client. rps paces outbound searches; zero disables pacing.
func NewOpenMeteoGeocoder(client *http.Client, baseURL string, rps float64) *OpenMeteoGeocoder {
	if baseURL == "" {
		baseURL = openMeteoGeocodingURL
	}
	return &OpenMeteoGeocoder{
		name:    "open-meteo-geocoding",
		baseURL: baseURL,
		limiter: newLimiter(rps),
		httpCfg: HTTPClientConfig{Client: client, Backoff: DefaultBackoff},
		circuit: newBreaker("open-meteo-geocoding"),
	}
}

func (g *OpenMeteoGeocoder) Name() string {
	return g.name
}

// Search looks up up to three places by name, optionally filtered to an ISO country code.
func (g *OpenMeteoGeocoder) Search(ctx context.Context, query, countryCode string) ([]weather.GeoPoint, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	values := url.Values{}
	values.Set("name", query)
	values.Set("count", "3")
	values.Set("language", "en")
	values.Set("format", "json")
	if countryCode != "" {
		values.Set("countryCode", countryCode)
	}

	var payload struct {
		Results []struct {
			Name      string   `json:"name"`
			Latitude  *float64 `json:"latitude"`
			Longitude *float64 `json:"longitude"`
			Country   string   `json:"country"`
			Admin1    string   `json:"admin1"`
			Admin2    string   `json:"admin2"`
		} `json:"results"`
	}

	u := fmt.Sprintf("%s?%s", g.baseURL, values.Encode())
	if err := getJSON(ctx, g.httpCfg, g.circuit, u, &payload); err != nil {
		return nil, err
	}

	points := make([]weather.GeoPoint, 0, len(payload.Results))
	for _, r := range payload.Results {
		points = append(points, weather.GeoPoint{
			Name:      r.Name,
			Latitude:  orNaN(r.Latitude),
			Longitude: orNaN(r.Longitude),
			Country:   r.Country,
			Admin1:    r.Admin1,
			Admin2:    r.Admin2,
		})
	}
	return points, nil
}

func orNaN(f *float64) float64 {
	if f == nil {
		return math.NaN()
	}
	return *f
}

func newLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	burst := int(math.Ceil(rps))
	return rate.NewLimiter(rate.Limit(rps), burst)
}
