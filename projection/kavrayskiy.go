// Package projection maps geographic coordinates onto the map canvas using
// the Kavrayskiy VII projection and generates the graticule drawn over it.
package projection

import (
	"math"

	"github.com/paulmach/orb"
)

const (
	// DefaultScale is the pixel scale used for a 960×600 world map.
	DefaultScale = 170
	// DefaultPrecision is the resampling threshold in pixels.
	DefaultPrecision = 0.1

	epsilon = 1e-6
	radians = math.Pi / 180
	degrees = 180 / math.Pi
)

// Kavrayskiy7 is an immutable Kavrayskiy VII projection with a d3-style
// scale and translate. Screen y grows downward.
type Kavrayskiy7 struct {
	scale     float64
	tx, ty    float64
	precision float64
}

// Option customises a projection at construction.
type Option func(*Kavrayskiy7)

func WithScale(k float64) Option {
	return func(p *Kavrayskiy7) { p.scale = k }
}

func WithTranslate(x, y float64) Option {
	return func(p *Kavrayskiy7) { p.tx, p.ty = x, y }
}

func WithPrecision(px float64) Option {
	return func(p *Kavrayskiy7) { p.precision = px }
}

// New returns a projection centred on a width×height canvas.
func New(width, height int, opts ...Option) *Kavrayskiy7 {
	p := &Kavrayskiy7{
		scale:     DefaultScale,
		tx:        float64(width) / 2,
		ty:        float64(height) / 2,
		precision: DefaultPrecision,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Kavrayskiy7) Scale() float64                { return p.scale }
func (p *Kavrayskiy7) Translate() (float64, float64) { return p.tx, p.ty }
func (p *Kavrayskiy7) Precision() float64            { return p.precision }

// Project maps lon/lat degrees to canvas pixels. Longitudes outside
// [-180, 180] are wrapped once.
func (p *Kavrayskiy7) Project(lon, lat float64) (x, y float64) {
	lambda := lon * radians
	switch {
	case lambda > math.Pi:
		lambda -= 2 * math.Pi
	case lambda < -math.Pi:
		lambda += 2 * math.Pi
	}
	return p.screen(lambda, lat*radians)
}

// Point is Project for orb points.
func (p *Kavrayskiy7) Point(pt orb.Point) orb.Point {
	x, y := p.Project(pt.Lon(), pt.Lat())
	return orb.Point{x, y}
}

// Invert maps canvas pixels back to lon/lat degrees. ok is false for
// pixels outside the projected sphere.
func (p *Kavrayskiy7) Invert(x, y float64) (lon, lat float64, ok bool) {
	rx := (x - p.tx) / p.scale
	phi := (p.ty - y) / p.scale
	if math.Abs(phi) > math.Pi/2+epsilon {
		return 0, 0, false
	}
	lambda := 2 * math.Pi * rx / (3 * math.Sqrt(math.Pi*math.Pi/3-phi*phi))
	if math.Abs(lambda) > math.Pi+epsilon {
		return 0, 0, false
	}
	return lambda * degrees, phi * degrees, true
}

// screen projects radians without wrapping, so unwrapped longitudes land
// off the sphere's outline.
func (p *Kavrayskiy7) screen(lambda, phi float64) (float64, float64) {
	x, y := raw(lambda, phi)
	return p.tx + p.scale*x, p.ty - p.scale*y
}

func raw(lambda, phi float64) (float64, float64) {
	return 3 * lambda / (2 * math.Pi) * math.Sqrt(math.Pi*math.Pi/3-phi*phi), phi
}
