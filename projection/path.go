package projection

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/signalsfoundry/satmap/canvas"
)

const (
	maxDepth = 16
	// Rings touching a pole may jump across the antimeridian along the
	// flat pole line; such edges are drawn, not unwrapped.
	poleTolerance = 0.01
)

var cosMinDistance = math.Cos(30 * radians)

// Path traces geographic geometry onto a surface's current path, adaptively
// resampling edges so curves stay within the projection's precision.
type Path struct {
	proj   *Kavrayskiy7
	delta2 float64
}

func NewPath(p *Kavrayskiy7) *Path {
	return &Path{proj: p, delta2: p.precision * p.precision}
}

// Trace appends g to s's current path. It never begins a new path, fills or
// strokes. Points are ignored.
func (p *Path) Trace(s canvas.Surface, g orb.Geometry) {
	switch g := g.(type) {
	case orb.LineString:
		p.traceLine(s, g, false)
	case orb.MultiLineString:
		for _, ls := range g {
			p.traceLine(s, ls, false)
		}
	case orb.Ring:
		p.traceLine(s, orb.LineString(g), true)
	case orb.Polygon:
		for _, r := range g {
			p.traceLine(s, orb.LineString(r), true)
		}
	case orb.MultiPolygon:
		for _, poly := range g {
			p.Trace(s, poly)
		}
	case orb.Collection:
		for _, sub := range g {
			p.Trace(s, sub)
		}
	}
}

// traceLine draws an unwrapped copy of pts and, when it spills over the
// antimeridian, shifted copies for the clip region to cut.
func (p *Path) traceLine(s canvas.Surface, pts orb.LineString, closed bool) {
	if len(pts) == 0 {
		return
	}
	unwrapped, minLon, maxLon := unwrap(pts)
	p.traceShifted(s, unwrapped, 0, closed)
	if maxLon > 180+epsilon {
		p.traceShifted(s, unwrapped, -360, closed)
	}
	if minLon < -180-epsilon {
		p.traceShifted(s, unwrapped, 360, closed)
	}
}

func (p *Path) traceShifted(s canvas.Surface, pts []orb.Point, shift float64, closed bool) {
	var prev vertex
	for i, pt := range pts {
		v := p.vertex((pt[0]+shift)*radians, pt[1]*radians)
		if i == 0 {
			s.MoveTo(v.x, v.y)
		} else {
			p.resample(s, prev, v, maxDepth)
			s.LineTo(v.x, v.y)
		}
		prev = v
	}
	if closed {
		s.ClosePath()
	}
}

type vertex struct {
	x, y    float64
	lambda  float64
	a, b, c float64 // unit vector on the sphere
}

func (p *Path) vertex(lambda, phi float64) vertex {
	x, y := p.proj.screen(lambda, phi)
	cosPhi := math.Cos(phi)
	return vertex{
		x: x, y: y, lambda: lambda,
		a: cosPhi * math.Cos(lambda),
		b: cosPhi * math.Sin(lambda),
		c: math.Sin(phi),
	}
}

// resample emits the points strictly between v0 and v1 needed to follow the
// great-circle edge within precision.
func (p *Path) resample(s canvas.Surface, v0, v1 vertex, depth int) {
	dx, dy := v1.x-v0.x, v1.y-v0.y
	d2 := dx*dx + dy*dy
	if d2 <= 4*p.delta2 || depth == 0 {
		return
	}
	depth--

	a, b, c := v0.a+v1.a, v0.b+v1.b, v0.c+v1.c
	m := math.Sqrt(a*a + b*b + c*c)
	if m == 0 {
		return
	}
	a, b, c = a/m, b/m, c/m
	phi2 := math.Asin(c)
	mid := (v0.lambda + v1.lambda) / 2
	lambda2 := mid
	if math.Abs(math.Abs(c)-1) >= epsilon && math.Abs(v0.lambda-v1.lambda) >= epsilon {
		lambda2 = math.Atan2(b, a)
		lambda2 += 2 * math.Pi * math.Round((mid-lambda2)/(2*math.Pi))
	}
	x2, y2 := p.proj.screen(lambda2, phi2)
	dx2, dy2 := x2-v0.x, y2-v0.y
	dz := dy*dx2 - dx*dy2

	if dz*dz/d2 > p.delta2 ||
		math.Abs((dx*dx2+dy*dy2)/d2-0.5) > 0.3 ||
		v0.a*v1.a+v0.b*v1.b+v0.c*v1.c < cosMinDistance {
		v2 := vertex{x: x2, y: y2, lambda: lambda2, a: a, b: b, c: c}
		p.resample(s, v0, v2, depth)
		s.LineTo(x2, y2)
		p.resample(s, v2, v1, depth)
	}
}

// unwrap removes antimeridian jumps so consecutive longitudes differ by at
// most 180°, except along edges that run between two polar vertices.
func unwrap(pts orb.LineString) ([]orb.Point, float64, float64) {
	out := make([]orb.Point, len(pts))
	shift := 0.0
	minLon, maxLon := math.Inf(1), math.Inf(-1)
	for i, pt := range pts {
		if i > 0 {
			prev := pts[i-1]
			d := pt[0] - prev[0]
			if !(polar(pt) && polar(prev)) {
				switch {
				case d > 180:
					shift -= 360
				case d < -180:
					shift += 360
				}
			}
		}
		lon := pt[0] + shift
		out[i] = orb.Point{lon, pt[1]}
		minLon = math.Min(minLon, lon)
		maxLon = math.Max(maxLon, lon)
	}
	return out, minLon, maxLon
}

func polar(pt orb.Point) bool {
	return math.Abs(math.Abs(pt[1])-90) < poleTolerance
}
