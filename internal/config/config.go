package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/i474232898/farm-weather/internal/weather"
)

type AppConfig struct {
	Port        string        `validate:"required,numeric"`
	HTTPTimeout time.Duration `validate:"gt=0"`

	// Cache freshness policy.
	FreshTTL time.Duration `validate:"gt=0"`
	StaleTTL time.Duration `validate:"gt=0,gtefield=FreshTTL"`

	DefaultCountry     string `validate:"required"`
	DefaultCountryCode string `validate:"omitempty,len=2,alpha"`
	DefaultState       string

	Geocoder          string  `validate:"oneof=openmeteo openweather google"`
	GeocoderRPS       float64 `validate:"gte=0"`
	OpenWeatherAPIKey string  `validate:"required_if=Geocoder openweather"`
	GoogleMapsAPIKey  string  `validate:"required_if=Geocoder google"`
	WeatherAPIKey     string

	SummaryProvider string `validate:"oneof=rule gemini"`
	GeminiAPIKey    string `validate:"required_if=SummaryProvider gemini"`
	// GeminiModel left empty selects the summarizer default.
	GeminiModel     string
	SummaryTimeout  time.Duration `validate:"gt=0"`

	CacheBackend string `validate:"oneof=memory redis postgres mongo"`
	RedisURL     string `validate:"required_if=CacheBackend redis"`
	DatabaseURL  string `validate:"required_if=CacheBackend postgres"`
	MongoURI     string `validate:"required_if=CacheBackend mongo"`
	MongoDB      string

	AuthJWTSecret string
	AuthURL       string `validate:"omitempty,url"`
	AuthAPIKey    string

	KafkaBrokers        []string
	KafkaTelemetryTopic string

	// Districts whose cache entries the scheduler keeps warm.
	WarmDistricts []string
	WarmInterval  time.Duration `validate:"gt=0"`
	WarmOnStart   bool

	GeocodeTimeout  time.Duration `validate:"gt=0"`
	ForecastTimeout time.Duration `validate:"gt=0"`
	CacheTimeout    time.Duration `validate:"gt=0"`
	AuthTimeout     time.Duration `validate:"gt=0"`
	AddressTimeout  time.Duration `validate:"gt=0"`
}

var validate = validator.New()

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	return FromEnv()
}

// FromEnv builds and validates the configuration from the current process environment.
func FromEnv() (*AppConfig, error) {
	cfg := &AppConfig{
		Port:               getenvDefault("PORT", "8080"),
		DefaultCountry:     getenvDefault("DEFAULT_COUNTRY", "India"),
		DefaultCountryCode: strings.ToUpper(getenvDefault("DEFAULT_COUNTRY_CODE", "IN")),
		DefaultState:       os.Getenv("DEFAULT_STATE"),
		Geocoder:           strings.ToLower(getenvDefault("GEOCODER", "openmeteo")),
		OpenWeatherAPIKey:  os.Getenv("OPENWEATHER_API_KEY"),
		GoogleMapsAPIKey:   os.Getenv("GOOGLE_MAPS_API_KEY"),
		WeatherAPIKey:      os.Getenv("WEATHERAPI_API_KEY"),
		SummaryProvider:    strings.ToLower(getenvDefault("SUMMARY_PROVIDER", "rule")),
		GeminiAPIKey:       os.Getenv("GEMINI_API_KEY"),
		GeminiModel:        os.Getenv("GEMINI_MODEL"),
		CacheBackend:       strings.ToLower(getenvDefault("CACHE_BACKEND", "memory")),
		RedisURL:           os.Getenv("REDIS_URL"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		MongoURI:           os.Getenv("MONGO_URI"),
		MongoDB:            getenvDefault("MONGO_DB", "farm_weather"),
		AuthJWTSecret:      os.Getenv("AUTH_JWT_SECRET"),
		AuthURL:            os.Getenv("AUTH_URL"),
		AuthAPIKey:         os.Getenv("AUTH_API_KEY"),
		KafkaBrokers:       getenvList("KAFKA_BROKERS"),
		WarmDistricts:      getenvList("WARM_DISTRICTS"),
		WarmOnStart:        getenvBool("WARM_ON_START", true),
	}
	cfg.KafkaTelemetryTopic = getenvDefault("KAFKA_TELEMETRY_TOPIC", "farm-weather.requests")

	var err error
	// TTLs and the warm interval also take a bare number of minutes; timeouts need a unit.
	durations := []struct {
		key     string
		def     time.Duration
		dst     *time.Duration
		minutes bool
	}{
		{"HTTP_TIMEOUT", 10 * time.Second, &cfg.HTTPTimeout, false},
		{"FRESH_TTL", 30 * time.Minute, &cfg.FreshTTL, true},
		{"STALE_TTL", 120 * time.Minute, &cfg.StaleTTL, true},
		{"SUMMARY_TIMEOUT", 4 * time.Second, &cfg.SummaryTimeout, false},
		{"WARM_INTERVAL", 25 * time.Minute, &cfg.WarmInterval, true},
		{"GEOCODE_TIMEOUT", 5 * time.Second, &cfg.GeocodeTimeout, false},
		{"FORECAST_TIMEOUT", 8 * time.Second, &cfg.ForecastTimeout, false},
		{"CACHE_TIMEOUT", 3 * time.Second, &cfg.CacheTimeout, false},
		{"AUTH_TIMEOUT", 5 * time.Second, &cfg.AuthTimeout, false},
		{"ADDRESS_TIMEOUT", 5 * time.Second, &cfg.AddressTimeout, false},
	}
	for _, d := range durations {
		if *d.dst, err = getenvDuration(d.key, d.def, d.minutes); err != nil {
			return nil, err
		}
	}

	if cfg.GeocoderRPS, err = getenvFloat("GEOCODER_RPS", 5); err != nil {
		return nil, err
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Policy converts the configuration into the orchestrator's policy.
func (c *AppConfig) Policy() weather.Policy {
	return weather.Policy{
		FreshTTL:       c.FreshTTL,
		StaleTTL:       c.StaleTTL,
		Country:        c.DefaultCountry,
		DefaultState:   c.DefaultState,
		AuthTimeout:    c.AuthTimeout,
		AddressTimeout: c.AddressTimeout,
		CacheTimeout:   c.CacheTimeout,
	}
}

// NeedsDatabase reports whether a SQL connection is required at startup.
func (c *AppConfig) NeedsDatabase() bool {
	return c.DatabaseURL != ""
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

// getenvDuration accepts Go durations ("90s", "30m"). When bareMinutes is set a
// plain integer is read as minutes; otherwise a value without a unit is rejected.
func getenvDuration(key string, def time.Duration, bareMinutes bool) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	if n, err := strconv.Atoi(v); err == nil {
		if bareMinutes && n >= 0 {
			return time.Duration(n) * time.Minute, nil
		}
		if n != 0 {
			return 0, fmt.Errorf("invalid %s: %q needs a unit such as \"s\" or \"ms\"", key, v)
		}
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

// getenvList splits a comma separated variable, dropping blank items.
func getenvList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
