package weather

import (
	"math"
	"time"
)

// Icon is the coarse weather pictogram shown next to a payload.
type Icon string

const (
	IconSun          Icon = "sun"
	IconCloud        Icon = "cloud"
	IconRain         Icon = "rain"
	IconDrizzle      Icon = "drizzle"
	IconSnow         Icon = "snow"
	IconThunderstorm Icon = "thunderstorm"
)

// SummaryProvider records which path produced forecast_short.
type SummaryProvider string

const (
	SummaryRule SummaryProvider = "rule"
	SummaryAI   SummaryProvider = "ai"
)

// CandidateLabel describes how a LocationCandidate was derived from an address.
type CandidateLabel string

const (
	LabelPincode         CandidateLabel = "pincode"
	LabelPincodeDistrict CandidateLabel = "pincode_district"
	LabelVillageDistrict CandidateLabel = "village_district"
	LabelDistrict        CandidateLabel = "district"
	LabelLocationText    CandidateLabel = "location_text"
)

// AddressRecord is the caller's stored address. Every field is optional.
type AddressRecord struct {
	Village  string `json:"village,omitempty"`
	District string `json:"district,omitempty"`
	State    string `json:"state,omitempty"`
	Pincode  string `json:"pincode,omitempty"`
	Location string `json:"location,omitempty"`
}

// LocationCandidate is one geocoding query derived from an address.
type LocationCandidate struct {
	Query string         `json:"query"`
	Label CandidateLabel `json:"label"`
}

// GeoPoint is a geocoded place.
type GeoPoint struct {
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Country   string  `json:"country,omitempty"`
	Admin1    string  `json:"admin1,omitempty"` // state
	Admin2    string  `json:"admin2,omitempty"` // district
}

// Valid reports whether both coordinates are finite numbers.
func (p GeoPoint) Valid() bool {
	return isFinite(p.Latitude) && isFinite(p.Longitude)
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// WeatherPayload is the unit returned to callers and stored in the cache.
// Numeric fields are rounded at construction time.
type WeatherPayload struct {
	TempC         int       `json:"temp_c"`
	Humidity      int       `json:"humidity"`
	WindKmh       int       `json:"wind_kmh"`
	Description   string    `json:"description"`
	Icon          Icon      `json:"icon"`
	ForecastShort string    `json:"forecast_short"`
	FetchedAt     time.Time `json:"fetched_at"` // always UTC
	Location      string    `json:"location"`
}

// CacheEntry is the last successful payload stored for a cache key.
type CacheEntry struct {
	CacheKey        string          `json:"cache_key"`
	LocationKey     string          `json:"location_key"`
	Payload         WeatherPayload  `json:"payload"`
	FetchedAt       time.Time       `json:"fetched_at"`
	Provider        string          `json:"provider"`
	SummaryProvider SummaryProvider `json:"summary_provider"`
}

// AgeMinutes returns whole minutes elapsed since the entry was fetched,
// floored at zero so clock skew never yields a negative age.
func (e CacheEntry) AgeMinutes(now time.Time) int {
	d := now.Sub(e.FetchedAt)
	if d <= 0 {
		return 0
	}
	return int(d / time.Minute)
}

// Conditions is the raw reading a forecast provider returns for a coordinate.
// Daily aggregates are nil when the provider did not report them.
type Conditions struct {
	Provider      string
	TemperatureC  float64
	HumidityPct   float64
	WindKmh       float64
	WeatherCode   int
	MaxTempC      *float64
	MinTempC      *float64
	PrecipProbMax *float64
}

// SummaryFacts are the inputs handed to a summary enhancer.
type SummaryFacts struct {
	Location      string `json:"location"`
	Description   string `json:"description"`
	TempC         int    `json:"temp_c"`
	Humidity      int    `json:"humidity"`
	WindKmh       int    `json:"wind_kmh"`
	MaxTempC      *int   `json:"max_temp_c,omitempty"`
	MinTempC      *int   `json:"min_temp_c,omitempty"`
	RainChancePct *int   `json:"rain_chance_pct,omitempty"`
	RuleSummary   string `json:"rule_summary"`
}
