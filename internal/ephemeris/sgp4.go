package ephemeris

import (
	"context"
	"fmt"
	"math"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"
	"github.com/signalsfoundry/satmap/kb"
	"github.com/signalsfoundry/satmap/model"
	"github.com/signalsfoundry/satmap/timectrl"
)

// SGP4Source propagates catalogued TLEs locally, so no API key is needed.
type SGP4Source struct {
	catalog *kb.Catalog
	clock   timectrl.Clock
	step    time.Duration
}

type SGP4Option func(*SGP4Source)

// WithSGP4Clock sets the clock that anchors the start of the window.
func WithSGP4Clock(c timectrl.Clock) SGP4Option {
	return func(s *SGP4Source) { s.clock = c }
}

// WithSGP4Step changes the sample spacing. It defaults to one second,
// matching the animator's sample-per-second model.
func WithSGP4Step(d time.Duration) SGP4Option {
	return func(s *SGP4Source) {
		if d > 0 {
			s.step = d
		}
	}
}

func NewSGP4Source(catalog *kb.Catalog, opts ...SGP4Option) *SGP4Source {
	s := &SGP4Source{catalog: catalog, clock: timectrl.SystemClock{}, step: time.Second}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *SGP4Source) Positions(ctx context.Context, satID int, observer model.ObserverConfig) (model.SatelliteSeries, error) {
	entry, err := s.catalog.Get(satID)
	if err != nil {
		return model.SatelliteSeries{}, err
	}
	// go-satellite exits the process on malformed input.
	if len(entry.Line1) != kb.TLELineLength || len(entry.Line2) != kb.TLELineLength {
		return model.SatelliteSeries{}, fmt.Errorf("satellite %d: %w", satID, kb.ErrMalformedTLE)
	}
	sat := satellite.TLEToSat(entry.Line1, entry.Line2, satellite.GravityWGS72)
	if sat.Error != 0 {
		return model.SatelliteSeries{}, fmt.Errorf("sgp4 init for %d: code=%d %s", satID, sat.Error, sat.ErrorStr)
	}

	obs := satellite.LatLong{
		Latitude:  observer.Latitude * satellite.DEG2RAD,
		Longitude: observer.Longitude * satellite.DEG2RAD,
	}
	obsAltKm := observer.Elevation / 1000

	n := int(observer.Window() / s.step)
	start := s.clock.Now().UTC().Truncate(time.Second)
	series := model.SatelliteSeries{
		Info:      model.SatelliteInfo{ID: satID, Name: DisplayName(entry.Info.Name, satID)},
		Positions: make([]model.PositionSample, 0, n),
	}
	for i := 0; i < n; i++ {
		if i%60 == 0 {
			if err := ctx.Err(); err != nil {
				return model.SatelliteSeries{}, err
			}
		}
		offset := time.Duration(i) * s.step
		series.Positions = append(series.Positions, propagate(sat, start.Add(offset), obs, obsAltKm, offset))
	}
	return series, nil
}

// propagate computes one sample. A failed propagation yields a sample
// without coordinates, which the renderer skips.
func propagate(sat satellite.Satellite, t time.Time, obs satellite.LatLong, obsAltKm float64, offset time.Duration) model.PositionSample {
	year, month, day := t.Date()
	hour, min, sec := t.Clock()
	sample := model.PositionSample{Timestamp: t, Offset: offset}

	pos, _ := satellite.Propagate(sat, year, int(month), day, hour, min, sec)
	if !finite(pos.X) || !finite(pos.Y) || !finite(pos.Z) {
		return sample
	}
	gmst := satellite.GSTimeFromDate(year, int(month), day, hour, min, sec)
	alt, _, lla := satellite.ECIToLLA(pos, gmst)
	lat := lla.Latitude * satellite.RAD2DEG
	lon := wrapLongitude(lla.Longitude * satellite.RAD2DEG)
	if !finite(lat) || !finite(lon) {
		return sample
	}

	jd := satellite.JDay(year, int(month), day, hour, min, sec)
	look := satellite.ECIToLookAngles(pos, obs, obsAltKm, jd)

	sample.Latitude = &lat
	sample.Longitude = &lon
	sample.Altitude = alt
	sample.Azimuth = look.Az * satellite.RAD2DEG
	sample.Elevation = look.El * satellite.RAD2DEG
	return sample
}

func wrapLongitude(lon float64) float64 {
	lon = math.Mod(lon+180, 360)
	if lon < 0 {
		lon += 360
	}
	return lon - 180
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
