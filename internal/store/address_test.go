package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedTime() time.Time { return time.Date(2024, 6, 1, 6, 0, 0, 0, time.UTC) }

func strPtr(s string) *string { return &s }

func TestProfileAddressStore(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.AutoMigrate(&Profile{}))
	require.NoError(t, db.Create(&Profile{
		ID:       "farmer-1",
		Village:  strPtr("Kothur"),
		District: strPtr("Rangareddy"),
		State:    strPtr("Telangana"),
		Pincode:  strPtr("509228"),
	}).Error)
	require.NoError(t, db.Create(&Profile{ID: "farmer-2"}).Error)

	s := NewProfileAddressStore(db)

	rec, ok, err := s.GetAddress(context.Background(), "farmer-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Kothur", rec.Village)
	assert.Equal(t, "Rangareddy", rec.District)
	assert.Equal(t, "Telangana", rec.State)
	assert.Equal(t, "509228", rec.Pincode)
	assert.Empty(t, rec.Location)

	rec, ok, err = s.GetAddress(context.Background(), "farmer-2")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Empty(t, rec.District)

	_, ok, err = s.GetAddress(context.Background(), "nobody")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestProfileAddressStore_QueryError(t *testing.T) {
	// no profiles table
	s := NewProfileAddressStore(newTestDB(t))
	_, ok, err := s.GetAddress(context.Background(), "farmer-1")
	assert.Error(t, err)
	assert.False(t, ok)
}
