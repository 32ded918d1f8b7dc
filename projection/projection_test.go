package projection

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/signalsfoundry/satmap/canvas"
)

func approx(a, b, tol float64) bool { return math.Abs(a-b) <= tol }

func TestProjectKnownPoints(t *testing.T) {
	p := New(960, 600)

	cases := []struct {
		lon, lat float64
		x, y     float64
	}{
		{0, 0, 480, 300},
		{180, 0, 480 + 170*1.5*math.Pi/math.Sqrt(3), 300},
		{-180, 0, 480 - 170*1.5*math.Pi/math.Sqrt(3), 300},
		{0, 90, 480, 300 - 170*math.Pi/2},
		{0, -90, 480, 300 + 170*math.Pi/2},
	}
	for _, tc := range cases {
		x, y := p.Project(tc.lon, tc.lat)
		if !approx(x, tc.x, 1e-9) || !approx(y, tc.y, 1e-9) {
			t.Errorf("Project(%v, %v) = (%v, %v), want (%v, %v)", tc.lon, tc.lat, x, y, tc.x, tc.y)
		}
	}
}

func TestProjectDeterministic(t *testing.T) {
	a := New(960, 600)
	b := New(960, 600)
	for _, pt := range [][2]float64{{-122.4, 37.8}, {151.2, -33.9}, {0.1, 51.5}} {
		ax, ay := a.Project(pt[0], pt[1])
		bx, by := b.Project(pt[0], pt[1])
		ax2, ay2 := a.Project(pt[0], pt[1])
		if ax != bx || ay != by || ax != ax2 || ay != ay2 {
			t.Fatalf("Project(%v) not deterministic", pt)
		}
	}
}

func TestProjectWrapsLongitude(t *testing.T) {
	p := New(960, 600)
	x1, y1 := p.Project(190, 10)
	x2, y2 := p.Project(-170, 10)
	if !approx(x1, x2, 1e-9) || !approx(y1, y2, 1e-9) {
		t.Fatalf("Project(190) = (%v,%v), Project(-170) = (%v,%v)", x1, y1, x2, y2)
	}
}

func TestOptions(t *testing.T) {
	p := New(960, 600, WithScale(100), WithTranslate(10, 20), WithPrecision(0.5))
	if p.Scale() != 100 || p.Precision() != 0.5 {
		t.Fatalf("unexpected projection %+v", p)
	}
	if x, y := p.Project(0, 0); x != 10 || y != 20 {
		t.Fatalf("Project(0,0) = (%v,%v), want (10,20)", x, y)
	}
	if pt := p.Point(orb.Point{0, 0}); pt != (orb.Point{10, 20}) {
		t.Fatalf("Point = %v", pt)
	}
}

func TestInvertRoundTrip(t *testing.T) {
	p := New(960, 600)
	for _, pt := range [][2]float64{{25, 40}, {-179.5, -60}, {100, 85}} {
		x, y := p.Project(pt[0], pt[1])
		lon, lat, ok := p.Invert(x, y)
		if !ok || !approx(lon, pt[0], 1e-9) || !approx(lat, pt[1], 1e-9) {
			t.Errorf("Invert(Project(%v)) = (%v, %v, %v)", pt, lon, lat, ok)
		}
	}
	if _, _, ok := p.Invert(0, 0); ok {
		t.Fatal("expected corner pixel to be off the sphere")
	}
}

func TestGraticuleLines(t *testing.T) {
	lines := NewGraticule().Lines()
	if len(lines) != 53 {
		t.Fatalf("len(Lines) = %d, want 53", len(lines))
	}
	for i, lon := range []float64{-180, -90, 0, 90} {
		if lines[i][0][0] != lon || len(lines[i]) != 3 {
			t.Errorf("major meridian %d = %v", i, lines[i])
		}
	}
	equator := lines[4]
	if len(equator) != 145 || equator[0] != (orb.Point{-180, 0}) || equator[144] != (orb.Point{180, 0}) {
		t.Fatalf("equator = %d points from %v to %v", len(equator), equator[0], equator[len(equator)-1])
	}
	equators := 0
	for _, ls := range lines {
		if ls[0][1] == 0 && ls[len(ls)-1][1] == 0 {
			equators++
		}
	}
	if equators != 1 {
		t.Fatalf("found %d equators, want 1", equators)
	}
}

func TestGraticuleOutlineClosed(t *testing.T) {
	ring := NewGraticule().Outline()[0]
	if len(ring) != 293 {
		t.Fatalf("outline has %d points, want 293", len(ring))
	}
	if ring[0] != ring[len(ring)-1] {
		t.Fatalf("outline not closed: %v != %v", ring[0], ring[len(ring)-1])
	}
}

func TestPathShortEdgeNotResampled(t *testing.T) {
	rec := canvas.NewRecorder(960, 600)
	NewPath(New(960, 600)).Trace(rec, orb.LineString{{0, 0}, {10, 0}})

	if rec.Count(canvas.OpMoveTo) != 1 || rec.Count(canvas.OpLineTo) != 1 {
		t.Fatalf("unexpected commands: %+v", rec.Commands())
	}
}

func TestPathResamplesLongEdges(t *testing.T) {
	rec := canvas.NewRecorder(960, 600)
	NewPath(New(960, 600)).Trace(rec, orb.LineString{{0, -90 + epsilon}, {0, epsilon}, {0, 90 - epsilon}})

	lines := rec.Filter(canvas.OpLineTo)
	if len(lines) != 8 {
		t.Fatalf("lineTo count = %d, want 8", len(lines))
	}
	prevY := math.Inf(1)
	for _, c := range lines {
		if !approx(c.Args[0], 480, 1e-9) {
			t.Fatalf("resampled meridian point off x=480: %v", c.Args)
		}
		if c.Args[1] >= prevY {
			t.Fatalf("meridian points not monotonic: %v after %v", c.Args[1], prevY)
		}
		prevY = c.Args[1]
	}
}

func TestPathAntimeridianCopies(t *testing.T) {
	rec := canvas.NewRecorder(960, 600)
	ring := orb.Ring{{170, 10}, {-170, 10}, {-170, -10}, {170, -10}, {170, 10}}
	NewPath(New(960, 600)).Trace(rec, orb.Polygon{ring})

	moves := rec.Filter(canvas.OpMoveTo)
	if len(moves) != 2 || rec.Count(canvas.OpClosePath) != 2 {
		t.Fatalf("want two closed copies, got %d moves", len(moves))
	}
	right := 480 + 170*1.5*math.Pi/math.Sqrt(3)
	for _, c := range rec.Filter(canvas.OpLineTo) {
		if c.Args[0] > right+100 || c.Args[0] < -100 {
			t.Fatalf("copy vertex far outside the map: %v", c.Args)
		}
	}
}

func TestPathPolarEdgeNotUnwrapped(t *testing.T) {
	rec := canvas.NewRecorder(960, 600)
	ring := orb.Ring{
		{-180, -90}, {-180, -80}, {-90, -75}, {0, -78}, {90, -75}, {180, -80}, {180, -90}, {-180, -90},
	}
	NewPath(New(960, 600)).Trace(rec, orb.Polygon{ring})

	if got := rec.Count(canvas.OpMoveTo); got != 1 {
		t.Fatalf("moveTo count = %d, want 1", got)
	}
}

func TestUnwrap(t *testing.T) {
	out, minLon, maxLon := unwrap(orb.LineString{{179, 0}, {-179, 0}, {-178, 1}})
	if out[1][0] != 181 || out[2][0] != 182 {
		t.Fatalf("unwrap = %v", out)
	}
	if minLon != 179 || maxLon != 182 {
		t.Fatalf("bounds = %v, %v", minLon, maxLon)
	}
}
