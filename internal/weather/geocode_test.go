package weather

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolver_AttemptOrder(t *testing.T) {
	geo := &fakeGeocoder{}
	r := NewResolver(geo, "IN", 0)
	candidates := []LocationCandidate{
		{Query: "509228, India", Label: LabelPincode},
		{Query: "Rangareddy, Telangana, India", Label: LabelDistrict},
	}

	_, _, ok := r.Resolve(context.Background(), candidates)
	require.False(t, ok)

	assert.Equal(t, []searchCall{
		{"509228, India", "IN"},
		{"509228, India", ""},
		{"509228", "IN"},
		{"509228", ""},
		{"Rangareddy, Telangana, India", "IN"},
		{"Rangareddy, Telangana, India", ""},
		{"Rangareddy", "IN"},
		{"Rangareddy", ""},
	}, geo.calls)
}

func TestResolver_SkipsRepeatedQueries(t *testing.T) {
	geo := &fakeGeocoder{}
	r := NewResolver(geo, "IN", 0)
	candidates := []LocationCandidate{
		{Query: "509228, India", Label: LabelPincode},
		{Query: "509228, Rangareddy, Telangana, India", Label: LabelPincodeDistrict},
	}

	_, _, ok := r.Resolve(context.Background(), candidates)
	require.False(t, ok)

	assert.Equal(t, []searchCall{
		{"509228, India", "IN"},
		{"509228, India", ""},
		{"509228", "IN"},
		{"509228", ""},
		{"509228, Rangareddy, Telangana, India", "IN"},
		{"509228, Rangareddy, Telangana, India", ""},
	}, geo.calls)
}

func TestResolver_StopsAtFirstValidPoint(t *testing.T) {
	geo := &fakeGeocoder{results: map[string][]GeoPoint{
		"Rangareddy|": {{Name: "Ranga Reddy", Latitude: 17.3, Longitude: 78.2}},
	}}
	r := NewResolver(geo, "IN", 0)
	candidates := []LocationCandidate{
		{Query: "509228, India", Label: LabelPincode},
		{Query: "Rangareddy, Telangana, India", Label: LabelDistrict},
		{Query: "Somewhere else, India", Label: LabelLocationText},
	}

	p, matched, ok := r.Resolve(context.Background(), candidates)
	require.True(t, ok)
	assert.Equal(t, "Ranga Reddy", p.Name)
	assert.Equal(t, LabelDistrict, matched.Label)
	assert.Equal(t, 8, geo.callCount())
}

func TestResolver_SkipsInvalidCoordinates(t *testing.T) {
	geo := &fakeGeocoder{results: map[string][]GeoPoint{
		"Guntur|": {
			{Name: "bad", Latitude: math.NaN(), Longitude: 80},
			{Name: "Guntur", Latitude: 16.3, Longitude: 80.4},
		},
	}}
	r := NewResolver(geo, "", 0)

	p, _, ok := r.Resolve(context.Background(), []LocationCandidate{{Query: "Guntur", Label: LabelDistrict}})
	require.True(t, ok)
	assert.Equal(t, "Guntur", p.Name)
	// without a country code there is no relaxed retry
	assert.Equal(t, 1, geo.callCount())
}

func TestResolver_OnlyTopThreeInspected(t *testing.T) {
	bad := GeoPoint{Latitude: math.Inf(1)}
	geo := &fakeGeocoder{results: map[string][]GeoPoint{
		"Guntur|": {bad, bad, bad, {Name: "fourth", Latitude: 1, Longitude: 1}},
	}}
	r := NewResolver(geo, "", 0)

	_, _, ok := r.Resolve(context.Background(), []LocationCandidate{{Query: "Guntur"}})
	assert.False(t, ok)
}

func TestResolver_SearchErrorsFallThrough(t *testing.T) {
	geo := &fakeGeocoder{err: errUpstream}
	r := NewResolver(geo, "IN", 0)

	_, _, ok := r.Resolve(context.Background(), []LocationCandidate{{Query: "Guntur, India"}})
	assert.False(t, ok)
	assert.Equal(t, 4, geo.callCount())
}

func TestResolver_CancelledContext(t *testing.T) {
	geo := &fakeGeocoder{}
	r := NewResolver(geo, "IN", 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, ok := r.Resolve(ctx, []LocationCandidate{{Query: "Guntur, India"}})
	assert.False(t, ok)
	assert.Zero(t, geo.callCount())
}
