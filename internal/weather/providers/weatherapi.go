package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/sony/gobreaker"

	"github.com/i474232898/farm-weather/internal/weather"
)

const weatherAPIForecastURL = "https://api.weatherapi.com/v1/forecast.json"

// WeatherAPIProvider implements weather.ForecastProvider for WeatherAPI.com.
// It is only used as a secondary source behind Open-Meteo.
type WeatherAPIProvider struct {
	name    string
	apiKey  string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewWeatherAPIProvider(client *http.Client, apiKey, baseURL string) *WeatherAPIProvider {
	if baseURL == "" {
		baseURL = weatherAPIForecastURL
	}
	return &WeatherAPIProvider{
		name:    "weatherapi",
		apiKey:  apiKey,
		baseURL: baseURL,
		httpCfg: HTTPClientConfig{Client: client, Backoff: DefaultBackoff},
		circuit: newBreaker("weatherapi"),
	}
}

func (p *WeatherAPIProvider) Name() string {
	return p.name
}

func (p *WeatherAPIProvider) CurrentAndDaily(ctx context.Context, lat, lon float64) (weather.Conditions, error) {
	if p.apiKey == "" {
		return weather.Conditions{}, fmt.Errorf("weatherapi: %w", errMissingAPIKey)
	}

	values := url.Values{}
	values.Set("key", p.apiKey)
	// WeatherAPI uses "q" for location; it accepts "lat,lon".
	values.Set("q", fmt.Sprintf("%.4f,%.4f", lat, lon))
	values.Set("days", "1")
	values.Set("aqi", "no")
	values.Set("alerts", "no")

	var payload struct {
		Current struct {
			TempC     float64 `json:"temp_c"`
			Humidity  float64 `json:"humidity"`
			WindKph   float64 `json:"wind_kph"`
			Condition struct {
				Text string `json:"text"`
			} `json:"condition"`
		} `json:"current"`
		Forecast struct {
			ForecastDay []struct {
				Day struct {
					MaxTempC          *float64 `json:"maxtemp_c"`
					MinTempC          *float64 `json:"mintemp_c"`
					DailyChanceOfRain *float64 `json:"daily_chance_of_rain"`
				} `json:"day"`
			} `json:"forecastday"`
		} `json:"forecast"`
	}

	u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
	if err := getJSON(ctx, p.httpCfg, p.circuit, u, &payload); err != nil {
		return weather.Conditions{}, err
	}

	cond := weather.Conditions{
		Provider:     p.name,
		TemperatureC: payload.Current.TempC,
		HumidityPct:  payload.Current.Humidity,
		WindKmh:      payload.Current.WindKph,
		WeatherCode:  wmoCodeFromText(payload.Current.Condition.Text),
	}
	if days := payload.Forecast.ForecastDay; len(days) > 0 {
		cond.MaxTempC = days[0].Day.MaxTempC
		cond.MinTempC = days[0].Day.MinTempC
		cond.PrecipProbMax = days[0].Day.DailyChanceOfRain
	}
	return cond, nil
}

// wmoCodeFromText translates WeatherAPI condition text into the equivalent WMO code
// so the shared code table applies. Unrecognized text yields -1.
func wmoCodeFromText(text string) int {
	switch {
	case text == "":
		return -1
	case contains(text, "thunder") || contains(text, "storm"):
		return 95
	case contains(text, "snow") || contains(text, "sleet") || contains(text, "blizzard") || contains(text, "ice"):
		return 71
	case contains(text, "drizzle"):
		return 51
	case contains(text, "shower"):
		return 80
	case contains(text, "rain"):
		return 61
	case contains(text, "fog") || contains(text, "mist"):
		return 45
	case contains(text, "overcast") || (contains(text, "cloudy") && !contains(text, "partly")):
		return 3
	case contains(text, "partly") || contains(text, "cloud"):
		return 2
	case contains(text, "sunny") || contains(text, "clear"):
		return 0
	default:
		return -1
	}
}

func contains(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
