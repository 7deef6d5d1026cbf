package store

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/i474232898/farm-weather/internal/weather"
)

// Profile is the subset of the profiles table the weather service reads.
type Profile struct {
	ID       string  `gorm:"column:id;primaryKey"`
	Village  *string `gorm:"column:village"`
	District *string `gorm:"column:district"`
	State    *string `gorm:"column:state"`
	Pincode  *string `gorm:"column:pincode"`
	Location *string `gorm:"column:location"`
}

func (Profile) TableName() string { return "profiles" }

// ProfileAddressStore implements weather.AddressStore over the profiles table.
type ProfileAddressStore struct {
	db *gorm.DB
}

func NewProfileAddressStore(db *gorm.DB) *ProfileAddressStore {
	return &ProfileAddressStore{db: db}
}

// GetAddress returns the caller's address; ok is false when no profile row exists.
func (s *ProfileAddressStore) GetAddress(ctx context.Context, callerID string) (weather.AddressRecord, bool, error) {
	var p Profile
	err := s.db.WithContext(ctx).
		Select("id", "village", "district", "state", "pincode", "location").
		First(&p, "id = ?", callerID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return weather.AddressRecord{}, false, nil
	}
	if err != nil {
		return weather.AddressRecord{}, false, err
	}

	return weather.AddressRecord{
		Village:  deref(p.Village),
		District: deref(p.District),
		State:    deref(p.State),
		Pincode:  deref(p.Pincode),
		Location: deref(p.Location),
	}, true, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
