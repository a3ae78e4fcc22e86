package entity

import (
	"errors"
	"time"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidFix       = errors.New("invalid fix")
	ErrMalformedGeohash = errors.New("malformed geohash")
)

// Fix is a single GPS observation sent by a client, plus the enrichment
// fields the worker fills in later.
type Fix struct {
	ID          int64      `json:"id"`
	UserID      int64      `json:"user_id"`
	Latitude    float64    `json:"latitude"`
	Longitude   float64    `json:"longitude"`
	Accuracy    *float64   `json:"accuracy,omitempty"`
	Altitude    *float64   `json:"altitude,omitempty"`
	Speed       *float64   `json:"speed,omitempty"`
	Timestamp   time.Time  `json:"timestamp"`
	Geohash     string     `json:"geohash"`
	CityID      *int64     `json:"city_id,omitempty"`
	CountryID   *int64     `json:"country_id,omitempty"`
	LocationID  *int64     `json:"location_id,omitempty"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
}

// PendingWork is the lightweight reference to a persisted fix handed to the worker.
type PendingWork struct {
	FixID     int64     `json:"fix_id"`
	Geohash   string    `json:"geohash"`
	UserID    int64     `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
}

// Enrichment holds the fields resolved for one fix. Nil means unresolved.
type Enrichment struct {
	CityID      *int64
	CountryID   *int64
	LocationID  *int64
	ProcessedAt time.Time
}

// Any reports whether at least one of the region fields was resolved.
func (e Enrichment) Any() bool {
	return e.CityID != nil || e.CountryID != nil || e.LocationID != nil
}

// RegionKind selects a reference table.
type RegionKind string

const (
	RegionCity     RegionKind = "city"
	RegionCountry  RegionKind = "country"
	RegionLocation RegionKind = "location"
)

func (k RegionKind) Valid() bool {
	switch k {
	case RegionCity, RegionCountry, RegionLocation:
		return true
	}
	return false
}

// ReferenceMatch is the best reference row found for a set of candidate prefixes.
type ReferenceMatch struct {
	RegionID int64
	Geohash  string
}

// LocationGeohash is one prefix of a user-defined named location.
type LocationGeohash struct {
	UserID     int64
	LocationID int64
	Geohash    string
}

// RegionGeohash is one reference prefix of a city, country or named
// location. UserID is only set for named locations.
type RegionGeohash struct {
	Kind     RegionKind
	RegionID int64
	UserID   int64
	Geohash  string
}

type TransitionKind string

const (
	TransitionEntered TransitionKind = "entered"
	TransitionExited  TransitionKind = "exited"
)

// Transition is emitted when a user's resolved named location changes.
type Transition struct {
	Event      string         `json:"event"`
	UserID     int64          `json:"user_id"`
	Kind       TransitionKind `json:"kind"`
	LocationID int64          `json:"location_id"`
	FixID      int64          `json:"fix_id"`
	At         time.Time      `json:"at"`
}

// Presence is the last known named location of a user.
type Presence struct {
	UserID     int64     `json:"user_id"`
	LocationID *int64    `json:"location_id"`
	Timestamp  time.Time `json:"timestamp"`
}
