package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	httpapi "github.com/i474232898/farm-weather/internal/api/http"
	"github.com/i474232898/farm-weather/internal/auth"
	"github.com/i474232898/farm-weather/internal/config"
	"github.com/i474232898/farm-weather/internal/scheduler"
	"github.com/i474232898/farm-weather/internal/store"
	"github.com/i474232898/farm-weather/internal/telemetry"
	"github.com/i474232898/farm-weather/internal/weather"
	"github.com/i474232898/farm-weather/internal/weather/providers"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	var db *gorm.DB
	if cfg.NeedsDatabase() {
		if db, err = store.OpenPostgres(cfg.DatabaseURL); err != nil {
			log.Fatalf("failed to open database: %v", err)
		}
	}

	cache, closeCache, err := buildCache(ctx, cfg, db)
	if err != nil {
		log.Fatalf("failed to initialise cache backend %q: %v", cfg.CacheBackend, err)
	}
	defer closeCache()

	var addresses weather.AddressStore
	if db != nil {
		addresses = store.NewProfileAddressStore(db)
	} else {
		log.Println("WARN: DATABASE_URL not set; address store unavailable, weather requests will fail with 500")
	}

	authn := buildAuthenticator(cfg, httpClient)
	if authn == nil {
		log.Println("WARN: neither AUTH_JWT_SECRET nor AUTH_URL set; weather requests will fail with 500")
	}

	geocoder := buildGeocoder(cfg, httpClient)

	forecasters := []weather.ForecastProvider{providers.NewOpenMeteoProvider(httpClient, "")}
	if cfg.WeatherAPIKey != "" {
		forecasters = append(forecasters, providers.NewWeatherAPIProvider(httpClient, cfg.WeatherAPIKey, ""))
	}

	var summarizer weather.Summarizer
	if cfg.SummaryProvider == "gemini" {
		summarizer = providers.NewGeminiSummarizer(providers.GeminiConfig{
			APIKey:  cfg.GeminiAPIKey,
			Model:   cfg.GeminiModel,
			Timeout: cfg.SummaryTimeout,
		})
	}

	service := weather.NewService(cfg.Policy(), weather.Deps{
		Auth:      authn,
		Addresses: addresses,
		Resolver:  weather.NewResolver(geocoder, cfg.DefaultCountryCode, cfg.GeocodeTimeout),
		Fetcher:   weather.NewFetcher(forecasters, summarizer, cfg.ForecastTimeout, cfg.SummaryTimeout),
		Cache:     cache,
	})

	// Telemetry sinks.
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	zapLogger, err := telemetry.NewZapLogger()
	if err != nil {
		log.Fatalf("failed to build telemetry logger: %v", err)
	}
	defer func() { _ = zapLogger.Sync() }()

	sinks := telemetry.Multi{telemetry.NewZapSink(zapLogger), telemetry.NewMetrics(registry)}
	if len(cfg.KafkaBrokers) > 0 {
		writer := telemetry.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTelemetryTopic, 2*time.Second)
		defer func() {
			if err := writer.Close(); err != nil {
				log.Printf("WARN: kafka writer close failed: %v", err)
			}
		}()
		sinks = append(sinks, telemetry.NewKafkaSink(writer, 2*time.Second))
	}

	// Scheduler that keeps configured districts warm.
	sched, err := scheduler.New(cfg.WarmDistricts, cfg.DefaultState, cfg.WarmInterval, cfg.WarmOnStart, service)
	if err != nil {
		log.Fatalf("failed to create scheduler: %v", err)
	}
	if err := sched.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	app := fiber.New(fiber.Config{
		AppName:               "farm-weather",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          30 * time.Second,
		ErrorHandler:          httpapi.ErrorHandler,
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:  "*",
		AllowMethods:  "POST,OPTIONS",
		AllowHeaders:  "Authorization,Content-Type," + httpapi.HeaderRequestID,
		ExposeHeaders: httpapi.HeaderRequestID,
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "farm-weather",
		})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	httpapi.RegisterRoutes(app, service, sinks)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("fiber server stopped: %v", err)
		}
	}()
	log.Printf("INFO: farm-weather listening on :%s (cache=%s geocoder=%s summary=%s)",
		cfg.Port, cfg.CacheBackend, cfg.Geocoder, cfg.SummaryProvider)

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("error during shutdown: %v", err)
	}
}

func buildCache(ctx context.Context, cfg *config.AppConfig, db *gorm.DB) (weather.CacheStore, func(), error) {
	noop := func() {}
	switch cfg.CacheBackend {
	case "redis":
		client, err := store.ConnectRedis(ctx, cfg.RedisURL)
		if err != nil {
			return nil, noop, err
		}
		return store.NewRedisStore(client, cfg.StaleTTL*2), func() { _ = client.Close() }, nil
	case "postgres":
		if db == nil {
			return nil, noop, errors.New("postgres cache requires DATABASE_URL")
		}
		s := store.NewSQLStore(db)
		if err := s.Migrate(ctx); err != nil {
			return nil, noop, fmt.Errorf("migrate weather_cache: %w", err)
		}
		return s, noop, nil
	case "mongo":
		client, err := store.ConnectMongo(ctx, cfg.MongoURI)
		if err != nil {
			return nil, noop, err
		}
		s := store.NewMongoStore(client.Database(cfg.MongoDB).Collection("weather_cache"))
		if err := s.EnsureIndexes(ctx); err != nil {
			log.Printf("WARN: mongo index creation failed: %v", err)
		}
		return s, func() { _ = client.Disconnect(context.Background()) }, nil
	default:
		return store.NewMemoryStore(), noop, nil
	}
}

func buildAuthenticator(cfg *config.AppConfig, client *http.Client) weather.Authenticator {
	if cfg.AuthJWTSecret != "" {
		v, err := auth.NewJWTVerifier(cfg.AuthJWTSecret, "", "")
		if err != nil {
			log.Fatalf("failed to build jwt verifier: %v", err)
		}
		return v
	}
	if cfg.AuthURL != "" {
		v, err := auth.NewRemoteVerifier(client, cfg.AuthURL, cfg.AuthAPIKey)
		if err != nil {
			log.Fatalf("failed to build remote verifier: %v", err)
		}
		return v
	}
	return nil
}

func buildGeocoder(cfg *config.AppConfig, client *http.Client) weather.GeocodingProvider {
	switch cfg.Geocoder {
	case "openweather":
		return providers.NewOpenWeatherGeocoder(client, cfg.OpenWeatherAPIKey, "", cfg.GeocoderRPS)
	case "google":
		return providers.NewGoogleGeocoder(cfg.GoogleMapsAPIKey, cfg.GeocoderRPS)
	default:
		return providers.NewOpenMeteoGeocoder(client, "", cfg.GeocoderRPS)
	}
}
