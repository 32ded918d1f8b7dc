package projection

import (
	"math"

	"github.com/paulmach/orb"
)

// Graticule generates a grid of meridians and parallels. The zero value is
// not usable; use NewGraticule.
type Graticule struct {
	// Major and minor extents as [west, south, east, north] in degrees.
	Major, Minor [4]float64
	// Major and minor steps as [longitude, latitude] in degrees.
	MajorStep, MinorStep [2]float64
	// Precision is the longitude spacing of parallel vertices in degrees.
	Precision float64
}

// NewGraticule returns a graticule with the conventional d3 defaults:
// 10° minor lines up to ±80°, 90° meridians reaching the poles and the
// equator.
func NewGraticule() *Graticule {
	return &Graticule{
		Major:     [4]float64{-180, -90 + epsilon, 180, 90 - epsilon},
		Minor:     [4]float64{-180, -80 - epsilon, 180, 80 + epsilon},
		MajorStep: [2]float64{90, 360},
		MinorStep: [2]float64{10, 10},
		Precision: 2.5,
	}
}

// Lines returns the grid: major meridians, major parallels, then the minor
// ones not already covered by a major line.
func (g *Graticule) Lines() orb.MultiLineString {
	X0, Y0, X1, Y1 := g.Major[0], g.Major[1], g.Major[2], g.Major[3]
	x0, y0, x1, y1 := g.Minor[0], g.Minor[1], g.Minor[2], g.Minor[3]
	DX, DY := g.MajorStep[0], g.MajorStep[1]
	dx, dy := g.MinorStep[0], g.MinorStep[1]

	var out orb.MultiLineString
	for _, x := range stepRange(math.Ceil(X0/DX)*DX, X1, DX) {
		out = append(out, meridian(x, Y0, Y1))
	}
	for _, y := range stepRange(math.Ceil(Y0/DY)*DY, Y1, DY) {
		out = append(out, g.parallel(y, X0, X1))
	}
	for _, x := range stepRange(math.Ceil(x0/dx)*dx, x1, dx) {
		if math.Abs(math.Mod(x, DX)) > epsilon {
			out = append(out, meridian(x, y0, y1))
		}
	}
	for _, y := range stepRange(math.Ceil(y0/dy)*dy, y1, dy) {
		if math.Abs(math.Mod(y, DY)) > epsilon {
			out = append(out, g.parallel(y, x0, x1))
		}
	}
	return out
}

// Outline returns the polygon bounding the major extent, traced along the
// western meridian, the northern parallel, the eastern meridian and the
// southern parallel.
func (g *Graticule) Outline() orb.Polygon {
	X0, Y0, X1, Y1 := g.Major[0], g.Major[1], g.Major[2], g.Major[3]

	ring := orb.Ring(meridian(X0, Y0, Y1))
	ring = append(ring, g.parallel(Y1, X0, X1)[1:]...)
	ring = append(ring, reversed(meridian(X1, Y0, Y1))[1:]...)
	ring = append(ring, reversed(g.parallel(Y0, X0, X1))[1:]...)
	return orb.Polygon{ring}
}

// meridian vertices are 90° apart; the path resampler fills in the curve.
func meridian(x, y0, y1 float64) orb.LineString {
	ys := append(stepRange(y0, y1-epsilon, 90), y1)
	ls := make(orb.LineString, len(ys))
	for i, y := range ys {
		ls[i] = orb.Point{x, y}
	}
	return ls
}

func (g *Graticule) parallel(y, x0, x1 float64) orb.LineString {
	xs := append(stepRange(x0, x1-epsilon, g.Precision), x1)
	ls := make(orb.LineString, len(xs))
	for i, x := range xs {
		ls[i] = orb.Point{x, y}
	}
	return ls
}

func reversed(ls orb.LineString) orb.LineString {
	out := make(orb.LineString, len(ls))
	for i, p := range ls {
		out[len(ls)-1-i] = p
	}
	return out
}

// stepRange returns start, start+step, ... up to but excluding stop.
func stepRange(start, stop, step float64) []float64 {
	n := int(math.Max(0, math.Ceil((stop-start)/step)))
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}
