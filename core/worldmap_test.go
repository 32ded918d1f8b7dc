package core

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/signalsfoundry/satmap/canvas"
)

func testLand() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	fc.Append(geojson.NewFeature(orb.Polygon{{
		{-17, 15}, {10, 35}, {35, 30}, {50, 10}, {40, -30}, {20, -35}, {-17, 15},
	}}))
	fc.Append(geojson.NewFeature(orb.MultiPolygon{
		{{{170, -40}, {178, -35}, {-178, -38}, {175, -46}, {170, -40}}},
		{{{-80, 10}, {-35, -5}, {-70, -55}, {-80, 10}}},
	}))
	return fc
}

func TestDrawBaseStyling(t *testing.T) {
	base := canvas.NewRecorder(canvas.DefaultWidth, canvas.DefaultHeight)
	m := NewMap(base, canvas.NewRecorder(canvas.DefaultWidth, canvas.DefaultHeight))

	if err := m.DrawBase(context.Background(), testLand()); err != nil {
		t.Fatalf("DrawBase: %v", err)
	}
	if !m.Drawn() {
		t.Fatal("Drawn() = false after DrawBase")
	}

	cmds := base.Commands()
	firstDraw := -1
	clip := -1
	for i, c := range cmds {
		if c.Op == canvas.OpClip && clip < 0 {
			clip = i
		}
		if (c.Op == canvas.OpFill || c.Op == canvas.OpStroke) && firstDraw < 0 {
			firstDraw = i
		}
	}
	if clip < 0 || clip > firstDraw {
		t.Fatalf("expected clip before drawing (clip=%d, first draw=%d)", clip, firstDraw)
	}

	fills := base.Filter(canvas.OpFill)
	if len(fills) != 2 {
		t.Fatalf("fill count = %d, want one per feature", len(fills))
	}
	for _, f := range fills {
		if f.Fill != LandColor || f.Alpha != 0.7 {
			t.Fatalf("land fill style = %+v", f)
		}
	}

	strokes := base.Filter(canvas.OpStroke)
	if len(strokes) != 4 {
		t.Fatalf("stroke count = %d, want 2 borders + grid + outline", len(strokes))
	}
	if strokes[0].Stroke != BorderColor {
		t.Fatalf("border stroke = %v", strokes[0].Stroke)
	}
	grid, edge := strokes[2], strokes[3]
	if grid.Stroke != GraticuleColor || grid.LineWidth != 0.1 {
		t.Fatalf("grid stroke = %+v", grid)
	}
	if edge.Stroke != GraticuleColor || edge.LineWidth != 0.5 {
		t.Fatalf("outline stroke = %+v", edge)
	}
	if cmds[len(cmds)-1].Op != canvas.OpRestore {
		t.Fatalf("last command = %s, want restore", cmds[len(cmds)-1].Op)
	}
}

func TestDrawBaseOnce(t *testing.T) {
	base := canvas.NewRecorder(960, 600)
	m := NewMap(base, canvas.NewRecorder(960, 600))
	if err := m.DrawBase(context.Background(), testLand()); err != nil {
		t.Fatalf("DrawBase: %v", err)
	}
	n := base.Len()
	if err := m.DrawBase(context.Background(), testLand()); !errors.Is(err, ErrBaseDrawn) {
		t.Fatalf("second DrawBase = %v, want ErrBaseDrawn", err)
	}
	if base.Len() != n {
		t.Fatal("second DrawBase issued draw calls")
	}
}

func TestDrawBasePixelIdentical(t *testing.T) {
	render := func() []byte {
		base := canvas.NewRaster(canvas.DefaultWidth, canvas.DefaultHeight)
		m := NewMap(base, canvas.NewRaster(canvas.DefaultWidth, canvas.DefaultHeight))
		if err := m.DrawBase(context.Background(), testLand()); err != nil {
			t.Fatalf("DrawBase: %v", err)
		}
		return base.Image().Pix
	}

	a, b := render(), render()
	if !bytes.Equal(a, b) {
		t.Fatal("two maps from the same input differ")
	}
	if bytes.Count(a, []byte{0}) == len(a) {
		t.Fatal("base map is empty")
	}
}

func TestDrawBaseSkipsEmptyFeatures(t *testing.T) {
	fc := testLand()
	fc.Features = append(fc.Features, &geojson.Feature{Type: "Feature"})
	base := canvas.NewRecorder(960, 600)
	m := NewMap(base, canvas.NewRecorder(960, 600))

	if err := m.DrawBase(context.Background(), fc); err != nil {
		t.Fatalf("DrawBase: %v", err)
	}
	if got := base.Count(canvas.OpFill); got != 2 {
		t.Fatalf("fill count = %d, want 2", got)
	}
}
