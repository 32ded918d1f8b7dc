package model

import (
	"fmt"
	"time"
)

// ObserverConfig describes the ground observer and the requested tracking
// window.
type ObserverConfig struct {
	Latitude        float64 // degrees
	Longitude       float64 // degrees
	Elevation       float64 // metres above sea level
	DurationMinutes int     // length of the observation window
}

// Validate checks that the observer lies on the globe and that the window
// is non-empty.
func (o ObserverConfig) Validate() error {
	if o.Latitude < -90 || o.Latitude > 90 {
		return fmt.Errorf("observer latitude %v out of range [-90, 90]", o.Latitude)
	}
	if o.Longitude < -180 || o.Longitude > 180 {
		return fmt.Errorf("observer longitude %v out of range [-180, 180]", o.Longitude)
	}
	if o.Elevation < 0 {
		return fmt.Errorf("observer elevation %v must not be negative", o.Elevation)
	}
	if o.DurationMinutes <= 0 {
		return fmt.Errorf("observation duration %d must be positive", o.DurationMinutes)
	}
	return nil
}

// Window returns the observation window as a duration.
func (o ObserverConfig) Window() time.Duration {
	return time.Duration(o.DurationMinutes) * time.Minute
}

// WindowSeconds is the number of one-second samples covering the window.
func (o ObserverConfig) WindowSeconds() int {
	return o.DurationMinutes * 60
}
