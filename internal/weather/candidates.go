package weather

import (
	"strings"
	"unicode"

	"github.com/i474232898/farm-weather/internal/common"
)

const (
	cacheKeyPrefix = "weather:"
	maxKeyLength   = 120
)

// BuildCandidates turns an address into ordered geocoding queries, most specific first.
// defaultState fills a blank State. An empty result means the caller has no usable location.
func BuildCandidates(rec AddressRecord, country, defaultState string) []LocationCandidate {
	village := strings.TrimSpace(rec.Village)
	district := strings.TrimSpace(rec.District)
	pincode := strings.TrimSpace(rec.Pincode)
	location := strings.TrimSpace(rec.Location)
	state := strings.TrimSpace(rec.State)
	if state == "" {
		state = strings.TrimSpace(defaultState)
	}

	var out []LocationCandidate
	seen := make(map[string]struct{})
	add := func(label CandidateLabel, parts ...string) {
		q := common.JoinNonBlank(", ", parts...)
		if q == "" {
			return
		}
		k := strings.ToLower(q)
		if _, ok := seen[k]; ok {
			return
		}
		seen[k] = struct{}{}
		out = append(out, LocationCandidate{Query: q, Label: label})
	}

	if pincode != "" {
		add(LabelPincode, pincode, country)
	}
	if pincode != "" && district != "" {
		add(LabelPincodeDistrict, pincode, district, state, country)
	}
	if village != "" && district != "" {
		add(LabelVillageDistrict, village, district, state, country)
	}
	if district != "" {
		add(LabelDistrict, district, state, country)
	}
	if location != "" {
		if country != "" && !common.HasAnyFold(location, country) {
			add(LabelLocationText, location, country)
		} else {
			add(LabelLocationText, location)
		}
	}
	return out
}

// CacheKey derives the deterministic cache key for a primary candidate query.
func CacheKey(query string) string {
	return cacheKeyPrefix + normalizeKey(query)
}

// normalizeKey lower-cases, keeps letters, digits, spaces and hyphens,
// collapses whitespace runs into single hyphens and caps the result.
func normalizeKey(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '-':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	key := strings.Join(strings.Fields(b.String()), "-")
	if r := []rune(key); len(r) > maxKeyLength {
		key = string(r[:maxKeyLength])
	}
	if key == "" {
		return "unknown"
	}
	return key
}
