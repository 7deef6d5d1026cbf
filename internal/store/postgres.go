package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/i474232898/farm-weather/internal/weather"
)

// OpenPostgres opens a gorm connection with slow-query logging and pool limits.
func OpenPostgres(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		return nil, errors.New("DATABASE_URL is empty")
	}

	lg := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: lg})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	log.Println("INFO: [store] connected to database")
	return db, nil
}

// WeatherCacheRow is the weather_cache table.
type WeatherCacheRow struct {
	CacheKey        string    `gorm:"primaryKey;size:140"`
	LocationKey     string    `gorm:"not null"`
	Payload         string    `gorm:"type:text;not null"`
	FetchedAt       time.Time `gorm:"not null"`
	Provider        string    `gorm:"size:64"`
	SummaryProvider string    `gorm:"size:16"`
	UpdatedAt       time.Time
}

func (WeatherCacheRow) TableName() string { return "weather_cache" }

// SQLStore is a weather.CacheStore backed by a SQL table through gorm.
type SQLStore struct {
	db *gorm.DB
}

// NewSQLStore wraps db. Call Migrate once before first use on a fresh database.
func NewSQLStore(db *gorm.DB) *SQLStore {
	return &SQLStore{db: db}
}

// Migrate creates or updates the weather_cache table.
func (s *SQLStore) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&WeatherCacheRow{})
}

func (s *SQLStore) Read(ctx context.Context, key string) (weather.CacheEntry, bool) {
	var row WeatherCacheRow
	err := s.db.WithContext(ctx).First(&row, "cache_key = ?", key).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("WARN: [store] weather_cache read failed key=%s: %v", key, err)
		}
		return weather.CacheEntry{}, false
	}

	var payload weather.WeatherPayload
	if err := json.Unmarshal([]byte(row.Payload), &payload); err != nil || row.FetchedAt.IsZero() {
		log.Printf("WARN: [store] ignoring malformed weather_cache row key=%s", key)
		return weather.CacheEntry{}, false
	}
	return weather.CacheEntry{
		CacheKey:        row.CacheKey,
		LocationKey:     row.LocationKey,
		Payload:         payload,
		FetchedAt:       row.FetchedAt.UTC(),
		Provider:        row.Provider,
		SummaryProvider: weather.SummaryProvider(row.SummaryProvider),
	}, true
}

func (s *SQLStore) Write(ctx context.Context, key, locationKey string, payload weather.WeatherPayload, provider string, summary weather.SummaryProvider) error {
	entry := newEntry(key, locationKey, payload, provider, summary)
	raw, err := json.Marshal(entry.Payload)
	if err != nil {
		return err
	}

	row := WeatherCacheRow{
		CacheKey:        entry.CacheKey,
		LocationKey:     entry.LocationKey,
		Payload:         string(raw),
		FetchedAt:       entry.FetchedAt,
		Provider:        entry.Provider,
		SummaryProvider: string(entry.SummaryProvider),
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "cache_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"location_key", "payload", "fetched_at", "provider", "summary_provider", "updated_at"}),
	}).Create(&row).Error
}
