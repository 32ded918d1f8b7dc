package core

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"sync"
	"testing"

	"github.com/signalsfoundry/satmap/canvas"
	"github.com/signalsfoundry/satmap/model"
	"github.com/signalsfoundry/satmap/projection"
)

func TestSatelliteID(t *testing.T) {
	cases := map[string]string{
		"NOAA 15":        "15",
		"STARLINK-1007":  "1007",
		"ISS 25544":      "25544",
		"GOES 16 (2016)": "162016",
	}
	for name, want := range cases {
		got, err := SatelliteID(name)
		if err != nil || got != want {
			t.Errorf("SatelliteID(%q) = %q, %v; want %q", name, got, err, want)
		}
	}
	if _, err := SatelliteID("SPACE STATION"); !errors.Is(err, ErrNoIdentifier) {
		t.Fatalf("expected ErrNoIdentifier, got %v", err)
	}
}

func TestCategory10(t *testing.T) {
	p := Category10()
	if len(p) != 10 {
		t.Fatalf("palette has %d colours", len(p))
	}
	if p[0] != (color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff}) {
		t.Fatalf("first colour = %v", p[0])
	}
	if p[9] != (color.RGBA{R: 0x17, G: 0xbe, B: 0xcf, A: 0xff}) {
		t.Fatalf("last colour = %v", p[9])
	}
}

func TestColorAssignerStableAndCycling(t *testing.T) {
	a := NewColorAssigner()
	palette := Category10()

	first := a.Color("25544")
	if first != palette[0] {
		t.Fatalf("first assignment = %v, want %v", first, palette[0])
	}
	for i := 1; i < 10; i++ {
		if got := a.Color(fmt.Sprint(i)); got != palette[i] {
			t.Fatalf("assignment %d = %v, want %v", i, got, palette[i])
		}
	}
	if got := a.Color("eleventh"); got != palette[0] {
		t.Fatalf("eleventh identifier = %v, want palette to cycle", got)
	}
	if got := a.Color("25544"); got != first {
		t.Fatalf("repeat lookup = %v, want %v", got, first)
	}
	if a.Len() != 11 {
		t.Fatalf("Len = %d, want 11", a.Len())
	}
}

func TestColorAssignerConcurrent(t *testing.T) {
	a := NewColorAssigner()
	var wg sync.WaitGroup
	results := make([]color.RGBA, 50)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = a.Color("same")
		}(i)
	}
	wg.Wait()
	for _, c := range results {
		if c != results[0] {
			t.Fatalf("concurrent lookups disagree: %v vs %v", c, results[0])
		}
	}
}

func TestDrawSatellite(t *testing.T) {
	proj := projection.New(canvas.DefaultWidth, canvas.DefaultHeight)
	r := NewPointRenderer(proj, NewColorAssigner())
	rec := canvas.NewRecorder(canvas.DefaultWidth, canvas.DefaultHeight)

	info := model.SatelliteInfo{ID: 25544, Name: "ISS 25544"}
	m, drawn, err := r.DrawSatellite(rec, info, model.NewSample(-73.9, 40.7, 0))
	if err != nil || !drawn {
		t.Fatalf("DrawSatellite = %v, %v", drawn, err)
	}
	x, y := proj.Project(-73.9, 40.7)
	if m.X != x || m.Y != y || m.Label != "25544" || m.Color != "#1f77b4" {
		t.Fatalf("marker = %+v", m)
	}

	arcs := rec.Filter(canvas.OpArc)
	if len(arcs) != 1 {
		t.Fatalf("arc count = %d", len(arcs))
	}
	if a := arcs[0].Args; a[0] != x || a[1] != y || a[2] != 4 || a[3] != 0 || a[4] != 2*math.Pi {
		t.Fatalf("arc args = %v", a)
	}
	if fills := rec.Filter(canvas.OpFill); len(fills) != 1 || fills[0].Fill != Category10()[0] {
		t.Fatalf("fill = %+v", fills)
	}
	texts := rec.Filter(canvas.OpFillText)
	if len(texts) != 1 {
		t.Fatalf("text count = %d", len(texts))
	}
	label := texts[0]
	if label.Text != "25544" || label.Args[0] != x || label.Args[1] != y+14 {
		t.Fatalf("label = %+v", label)
	}
	if label.Font != (canvas.Font{Size: 11, Bold: true}) || label.Align != canvas.AlignCenter {
		t.Fatalf("label style = %+v / %v", label.Font, label.Align)
	}
}

func TestDrawSatelliteSkipsMissingCoordinates(t *testing.T) {
	r := NewPointRenderer(projection.New(960, 600), NewColorAssigner())
	rec := canvas.NewRecorder(960, 600)
	info := model.SatelliteInfo{ID: 1, Name: "SAT 1"}

	lon := 10.0
	samples := []model.PositionSample{
		{},
		{Longitude: &lon},
		model.NewSample(0, 45, 0),
		model.NewSample(45, 0, 0),
		model.NewSample(math.NaN(), 45, 0),
		model.NewSample(45, math.NaN(), 0),
		model.NewSample(math.Inf(1), 45, 0),
		model.NewSample(45, math.Inf(-1), 0),
	}
	for _, s := range samples {
		_, drawn, err := r.DrawSatellite(rec, info, s)
		if err != nil || drawn {
			t.Fatalf("DrawSatellite(%+v) = %v, %v; want skipped", s, drawn, err)
		}
	}
	if rec.Len() != 0 {
		t.Fatalf("expected no draw calls, got %d", rec.Len())
	}
}

func TestDrawSatelliteReportsMissingIdentifier(t *testing.T) {
	r := NewPointRenderer(projection.New(960, 600), NewColorAssigner())
	rec := canvas.NewRecorder(960, 600)

	_, drawn, err := r.DrawSatellite(rec, model.SatelliteInfo{ID: 7, Name: "SPACE STATION"}, model.NewSample(10, 10, 0))
	if !errors.Is(err, ErrNoIdentifier) || drawn {
		t.Fatalf("DrawSatellite = %v, %v; want ErrNoIdentifier", drawn, err)
	}
	if rec.Len() != 0 {
		t.Fatalf("expected no draw calls, got %d", rec.Len())
	}
}
