package weather

import (
	"context"
	"log"
	"strings"
	"time"
)

// maxGeocodeResults bounds how many results of one lookup are inspected.
const maxGeocodeResults = 3

// Resolver turns location candidates into a GeoPoint using a geocoding provider.
type Resolver struct {
	provider    GeocodingProvider
	countryCode string
	timeout     time.Duration
}

// NewResolver creates a Resolver. countryCode scopes strict lookups; timeout bounds each lookup.
func NewResolver(provider GeocodingProvider, countryCode string, timeout time.Duration) *Resolver {
	return &Resolver{
		provider:    provider,
		countryCode: countryCode,
		timeout:     timeout,
	}
}

// geocodeAttempt is one step of the fallback chain.
type geocodeAttempt struct {
	candidate LocationCandidate
	run       func(ctx context.Context) (GeoPoint, bool)
}

// attempts expands candidates into the ordered chain:
// for each candidate, the full query then (if it has a comma) its first segment,
// each tried strict (country-scoped) before relaxed (unfiltered).
// A query already tried for an earlier candidate is not repeated.
func (r *Resolver) attempts(candidates []LocationCandidate) []geocodeAttempt {
	var out []geocodeAttempt
	tried := make(map[string]struct{})
	for _, c := range candidates {
		variants := []string{c.Query}
		if head, _, found := strings.Cut(c.Query, ","); found {
			if head = strings.TrimSpace(head); head != "" && !strings.EqualFold(head, c.Query) {
				variants = append(variants, head)
			}
		}
		for _, q := range variants {
			k := strings.ToLower(strings.TrimSpace(q))
			if _, dup := tried[k]; dup {
				continue
			}
			tried[k] = struct{}{}
			out = append(out, geocodeAttempt{candidate: c, run: r.lookup(q, r.countryCode)})
			if r.countryCode != "" {
				out = append(out, geocodeAttempt{candidate: c, run: r.lookup(q, "")})
			}
		}
	}
	return out
}

func (r *Resolver) lookup(query, countryCode string) func(ctx context.Context) (GeoPoint, bool) {
	return func(ctx context.Context) (GeoPoint, bool) {
		ctx, cancel := withOptionalTimeout(ctx, r.timeout)
		defer cancel()

		points, err := r.provider.Search(ctx, query, countryCode)
		if err != nil {
			log.Printf("WARN: [geocode] %s search failed query=%q country=%q: %v", r.provider.Name(), query, countryCode, err)
			return GeoPoint{}, false
		}
		if len(points) > maxGeocodeResults {
			points = points[:maxGeocodeResults]
		}
		for _, p := range points {
			if p.Valid() {
				return p, true
			}
		}
		return GeoPoint{}, false
	}
}

// Resolve walks the fallback chain and stops at the first valid point.
// ok is false when no candidate resolves; that is a policy outcome, not an error.
func (r *Resolver) Resolve(ctx context.Context, candidates []LocationCandidate) (GeoPoint, LocationCandidate, bool) {
	if r == nil || r.provider == nil {
		return GeoPoint{}, LocationCandidate{}, false
	}
	for _, a := range r.attempts(candidates) {
		if ctx.Err() != nil {
			return GeoPoint{}, LocationCandidate{}, false
		}
		if p, ok := a.run(ctx); ok {
			return p, a.candidate, true
		}
	}
	return GeoPoint{}, LocationCandidate{}, false
}
