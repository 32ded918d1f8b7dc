package core

import (
	"fmt"
	"image/color"
	"math"

	"github.com/signalsfoundry/satmap/canvas"
	"github.com/signalsfoundry/satmap/model"
	"github.com/signalsfoundry/satmap/projection"
)

const (
	markerRadius = 4
	labelOffset  = 14
)

var labelFont = canvas.Font{Size: 11, Bold: true}

// Marker describes one satellite drawn on the overlay.
type Marker struct {
	SatelliteID int                  `json:"satid"`
	Label       string               `json:"label"`
	X           float64              `json:"x"`
	Y           float64              `json:"y"`
	Color       string               `json:"color"`
	Sample      model.PositionSample `json:"-"`
}

// PointRenderer draws satellite positions as labelled dots.
type PointRenderer struct {
	proj   *projection.Kavrayskiy7
	colors *ColorAssigner
}

func NewPointRenderer(proj *projection.Kavrayskiy7, colors *ColorAssigner) *PointRenderer {
	return &PointRenderer{proj: proj, colors: colors}
}

// DrawSatellite draws sample onto s. Samples without usable coordinates are
// skipped: drawn is false and err is nil. A name without digits yields
// ErrNoIdentifier and draws nothing.
func (r *PointRenderer) DrawSatellite(s canvas.Surface, info model.SatelliteInfo, sample model.PositionSample) (m Marker, drawn bool, err error) {
	lon, lat, ok := sample.Coordinates()
	if !ok {
		return Marker{}, false, nil
	}
	id, err := SatelliteID(info.Name)
	if err != nil {
		return Marker{}, false, fmt.Errorf("satellite %d: %w", info.ID, err)
	}

	x, y := r.proj.Project(lon, lat)
	c := r.colors.Color(id)

	s.SetFillColor(c)
	s.BeginPath()
	s.Arc(x, y, markerRadius, 0, 2*math.Pi)
	s.Fill()

	s.SetFont(labelFont)
	s.SetTextAlign(canvas.AlignCenter)
	s.FillText(id, x, y+labelOffset)

	return Marker{
		SatelliteID: info.ID,
		Label:       id,
		X:           x,
		Y:           y,
		Color:       hexColor(c),
		Sample:      sample,
	}, true, nil
}

func hexColor(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}
