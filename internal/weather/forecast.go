package weather

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"github.com/i474232898/farm-weather/internal/common"
)

// breezyWindKmh is the wind speed above which the summary mentions breeze.
const breezyWindKmh = 20

// ErrNoForecastProviders is returned when the Fetcher has nothing to call.
var ErrNoForecastProviders = errors.New("no forecast providers configured")

// CodeInfo is the icon and description for a WMO weather code.
type CodeInfo struct {
	Icon        Icon
	Description string
}

// WeatherCodeInfo maps a WMO weather code onto an icon and description.
// Unknown codes map to a generic cloud.
func WeatherCodeInfo(code int) CodeInfo {
	switch code {
	case 0:
		return CodeInfo{IconSun, "Clear sky"}
	case 1, 2:
		return CodeInfo{IconCloud, "Partly cloudy"}
	case 3:
		return CodeInfo{IconCloud, "Cloudy"}
	case 45, 48:
		return CodeInfo{IconCloud, "Foggy"}
	case 51, 53, 55, 56, 57:
		return CodeInfo{IconDrizzle, "Drizzle"}
	case 61, 63, 65, 66, 67:
		return CodeInfo{IconRain, "Rain"}
	case 80, 81, 82:
		return CodeInfo{IconRain, "Rain showers"}
	case 71, 73, 75, 77, 85, 86:
		return CodeInfo{IconSnow, "Snow"}
	case 95, 96, 99:
		return CodeInfo{IconThunderstorm, "Thunderstorm"}
	default:
		return CodeInfo{IconCloud, "Variable weather"}
	}
}

// FetchInfo describes how a payload was produced.
type FetchInfo struct {
	Provider string
	Summary  SummaryProvider
}

// Fetcher turns coordinates into a WeatherPayload.
type Fetcher struct {
	providers      []ForecastProvider
	summarizer     Summarizer
	timeout        time.Duration
	summaryTimeout time.Duration
	now            func() time.Time
}

// NewFetcher creates a Fetcher. Providers are tried in order; summarizer may be nil.
func NewFetcher(providers []ForecastProvider, summarizer Summarizer, timeout, summaryTimeout time.Duration) *Fetcher {
	return &Fetcher{
		providers:      providers,
		summarizer:     summarizer,
		timeout:        timeout,
		summaryTimeout: summaryTimeout,
		now:            time.Now,
	}
}

// Fetch queries the forecast providers and builds the payload.
// fallbackLabel names the location when the point carries no name parts.
func (f *Fetcher) Fetch(ctx context.Context, point GeoPoint, fallbackLabel string) (WeatherPayload, FetchInfo, error) {
	cond, err := f.conditions(ctx, point)
	if err != nil {
		return WeatherPayload{}, FetchInfo{}, err
	}

	info := WeatherCodeInfo(cond.WeatherCode)
	location := LocationLabel(point, fallbackLabel)
	facts := SummaryFacts{
		Location:      location,
		Description:   info.Description,
		TempC:         round(cond.TemperatureC),
		Humidity:      round(cond.HumidityPct),
		WindKmh:       round(cond.WindKmh),
		MaxTempC:      roundPtr(cond.MaxTempC),
		MinTempC:      roundPtr(cond.MinTempC),
		RainChancePct: roundPtr(cond.PrecipProbMax),
	}
	facts.RuleSummary = RuleSummary(facts)

	summary, source := facts.RuleSummary, SummaryRule
	if text, ok := f.enhance(ctx, facts); ok {
		summary, source = text, SummaryAI
	}

	payload := WeatherPayload{
		TempC:         facts.TempC,
		Humidity:      facts.Humidity,
		WindKmh:       facts.WindKmh,
		Description:   info.Description,
		Icon:          info.Icon,
		ForecastShort: summary,
		FetchedAt:     f.now().UTC(),
		Location:      location,
	}
	return payload, FetchInfo{Provider: cond.Provider, Summary: source}, nil
}

func (f *Fetcher) conditions(ctx context.Context, point GeoPoint) (Conditions, error) {
	if len(f.providers) == 0 {
		return Conditions{}, ErrNoForecastProviders
	}

	var errs []error
	for _, p := range f.providers {
		callCtx, cancel := withOptionalTimeout(ctx, f.timeout)
		cond, err := p.CurrentAndDaily(callCtx, point.Latitude, point.Longitude)
		cancel()
		if err == nil {
			if cond.Provider == "" {
				cond.Provider = p.Name()
			}
			return cond, nil
		}
		log.Printf("WARN: [forecast] provider %s failed lat=%.4f lon=%.4f: %v", p.Name(), point.Latitude, point.Longitude, err)
		errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
		if ctx.Err() != nil {
			break
		}
	}
	return Conditions{}, errors.Join(errs...)
}

// enhance asks the summarizer for alternative wording. Every failure collapses to ok=false.
func (f *Fetcher) enhance(ctx context.Context, facts SummaryFacts) (text string, ok bool) {
	if f.summarizer == nil {
		return "", false
	}
	defer func() {
		if r := recover(); r != nil {
			log.Printf("WARN: [summary] %s panicked: %v", f.summarizer.Name(), r)
			text, ok = "", false
		}
	}()

	callCtx, cancel := withOptionalTimeout(ctx, f.summaryTimeout)
	defer cancel()

	out, err := f.summarizer.Summarize(callCtx, facts)
	if err != nil {
		log.Printf("INFO: [summary] %s unavailable, keeping rule summary: %v", f.summarizer.Name(), err)
		return "", false
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", false
	}
	return out, true
}

// RuleSummary builds the deterministic one-line forecast.
func RuleSummary(f SummaryFacts) string {
	parts := []string{f.Description}
	if f.MaxTempC != nil && f.MinTempC != nil {
		parts = append(parts, fmt.Sprintf("High %d°C, low %d°C", *f.MaxTempC, *f.MinTempC))
	} else {
		parts = append(parts, fmt.Sprintf("Currently %d°C", f.TempC))
	}
	if f.RainChancePct != nil {
		parts = append(parts, fmt.Sprintf("Rain chance %d%%", *f.RainChancePct))
	}
	if f.WindKmh > breezyWindKmh {
		parts = append(parts, fmt.Sprintf("Breezy, winds around %d km/h", f.WindKmh))
	}
	return strings.Join(parts, ". ") + "."
}

// LocationLabel joins the point's name, district, state and country, dropping repeats.
func LocationLabel(p GeoPoint, fallback string) string {
	parts := common.DedupFold(p.Name, p.Admin2, p.Admin1, p.Country)
	if len(parts) == 0 {
		return fallback
	}
	return strings.Join(parts, ", ")
}

func round(f float64) int {
	if !isFinite(f) {
		return 0
	}
	return int(math.Round(f))
}

func roundPtr(f *float64) *int {
	if f == nil || !isFinite(*f) {
		return nil
	}
	v := round(*f)
	return &v
}

func withOptionalTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
