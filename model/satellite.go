package model

import (
	"math"
	"time"
)

// SatelliteInfo is the static identity attached to a position series.
type SatelliteInfo struct {
	ID   int    // NORAD catalog number
	Name string // e.g. "NOAA 19", "STARLINK-1007"
}

// PositionSample is one timestamped sub-satellite point. Longitude and
// Latitude are pointers because upstream sources may omit them; a sample
// with either coordinate absent is not drawable.
type PositionSample struct {
	Longitude *float64 // degrees, east positive
	Latitude  *float64 // degrees, north positive
	Altitude  float64  // km above the ellipsoid

	// Look angles from the observer, degrees.
	Azimuth   float64
	Elevation float64

	Timestamp time.Time
	// Offset is the position of the sample inside the observation window.
	Offset   time.Duration
	Eclipsed bool
}

// Coordinates returns the sample's longitude and latitude. ok is false when
// either value is absent, zero or not finite; upstream sources use zero as a
// "no fix" marker, so such samples are treated as missing.
func (s PositionSample) Coordinates() (lon, lat float64, ok bool) {
	if s.Longitude == nil || s.Latitude == nil {
		return 0, 0, false
	}
	lon, lat = *s.Longitude, *s.Latitude
	if lon == 0 || lat == 0 || !finite(lon) || !finite(lat) {
		return 0, 0, false
	}
	return lon, lat, true
}

// NewSample is a convenience constructor for a sample with both coordinates set.
func NewSample(lon, lat float64, offset time.Duration) PositionSample {
	return PositionSample{Longitude: &lon, Latitude: &lat, Offset: offset}
}

// SatelliteSeries is the ordered position history of one satellite over an
// observation window. All series in one animation run are expected to be
// sampled at matching offsets.
type SatelliteSeries struct {
	Info      SatelliteInfo
	Positions []PositionSample
}

// Len returns the number of samples in the series.
func (s SatelliteSeries) Len() int { return len(s.Positions) }

// At returns the sample at index i, or false once the series is exhausted.
func (s SatelliteSeries) At(i int) (PositionSample, bool) {
	if i < 0 || i >= len(s.Positions) {
		return PositionSample{}, false
	}
	return s.Positions[i], true
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
