package topo

import (
	"errors"
	"testing"

	"github.com/paulmach/orb"
)

const quantized = `{
  "type": "Topology",
  "transform": {"scale": [0.5, 2], "translate": [-5, 1]},
  "objects": {
    "countries": {"type": "GeometryCollection", "geometries": [
      {"type": "Polygon", "id": "A", "arcs": [[0, 1]], "properties": {"name": "Alpha"}},
      {"type": "MultiPolygon", "id": "B", "arcs": [[[-2]]]},
      {"type": null}
    ]},
    "rivers": {"type": "LineString", "arcs": [0, 1]},
    "cities": {"type": "MultiPoint", "coordinates": [[10, 0], [0, 10]]}
  },
  "arcs": [
    [[0, 0], [10, 0], [0, 10]],
    [[10, 10], [-10, 0], [0, -10]]
  ]
}`

func pt(x, y float64) orb.Point {
	return orb.Point{x*0.5 - 5, y*2 + 1}
}

func TestDecodeTopologyPolygon(t *testing.T) {
	fc, err := Decode([]byte(quantized), "")
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(fc.Features) != 3 {
		t.Fatalf("features = %d, want 3", len(fc.Features))
	}

	a := fc.Features[0]
	if a.ID != "A" || a.Properties.MustString("name") != "Alpha" {
		t.Fatalf("feature A metadata = %v / %v", a.ID, a.Properties)
	}
	poly, ok := a.Geometry.(orb.Polygon)
	if !ok {
		t.Fatalf("feature A geometry = %T", a.Geometry)
	}
	want := orb.Ring{pt(0, 0), pt(10, 0), pt(10, 10), pt(0, 10), pt(0, 0)}
	if !poly[0].Equal(want) {
		t.Fatalf("ring = %v, want %v", poly[0], want)
	}

	if fc.Features[2].Geometry != nil {
		t.Fatalf("null geometry decoded as %v", fc.Features[2].Geometry)
	}
}

func TestDecodeTopologyReversedArc(t *testing.T) {
	fc, err := Decode([]byte(quantized), "countries")
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	mp, ok := fc.Features[1].Geometry.(orb.MultiPolygon)
	if !ok {
		t.Fatalf("feature B geometry = %T", fc.Features[1].Geometry)
	}
	ring := mp[0][0]
	want := orb.Ring{pt(0, 0), pt(0, 10), pt(10, 10), pt(0, 0)}
	if !ring.Equal(want) {
		t.Fatalf("reversed ring = %v, want %v", ring, want)
	}
}

func TestDecodeTopologyLineAndPoints(t *testing.T) {
	fc, err := Decode([]byte(quantized), "rivers")
	if err != nil {
		t.Fatalf("Decode rivers: %v", err)
	}
	ls := fc.Features[0].Geometry.(orb.LineString)
	if len(ls) != 5 || ls[4] != pt(0, 0) {
		t.Fatalf("line = %v", ls)
	}

	fc, err = Decode([]byte(quantized), "cities")
	if err != nil {
		t.Fatalf("Decode cities: %v", err)
	}
	mp := fc.Features[0].Geometry.(orb.MultiPoint)
	if mp[0] != pt(10, 0) || mp[1] != pt(0, 10) {
		t.Fatalf("points = %v, want absolute (non-delta) positions", mp)
	}
}

func TestDecodeTopologyWithoutTransform(t *testing.T) {
	doc := `{"type":"Topology","objects":{"land":{"type":"Polygon","arcs":[[0]]}},
	  "arcs":[[[0,0],[5,0],[5,5],[0,0]]]}`
	fc, err := Decode([]byte(doc), "")
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	ring := fc.Features[0].Geometry.(orb.Polygon)[0]
	if ring[2] != (orb.Point{5, 5}) {
		t.Fatalf("ring = %v", ring)
	}
}

func TestDecodeUnknownObject(t *testing.T) {
	if _, err := Decode([]byte(quantized), "oceans"); !errors.Is(err, ErrUnknownObject) {
		t.Fatalf("err = %v, want ErrUnknownObject", err)
	}
}

func TestDecodeBadArcIndex(t *testing.T) {
	doc := `{"type":"Topology","objects":{"land":{"type":"Polygon","arcs":[[7]]}},"arcs":[]}`
	if _, err := Decode([]byte(doc), "land"); !errors.Is(err, ErrBadArc) {
		t.Fatalf("err = %v, want ErrBadArc", err)
	}
}

func TestDecodeGeoJSON(t *testing.T) {
	doc := `{"type":"FeatureCollection","features":[
	  {"type":"Feature","properties":{},"geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]}}]}`
	fc, err := Decode([]byte(doc), "")
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if _, ok := fc.Features[0].Geometry.(orb.Polygon); !ok {
		t.Fatalf("geometry = %T", fc.Features[0].Geometry)
	}

	single := `{"type":"Feature","properties":{},"geometry":{"type":"Point","coordinates":[1,2]}}`
	fc, err = Decode([]byte(single), "")
	if err != nil || len(fc.Features) != 1 {
		t.Fatalf("Decode feature = %v, %v", fc, err)
	}
}

func TestDecodeUnsupported(t *testing.T) {
	if _, err := Decode([]byte(`{"type":"Sphere"}`), ""); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("err = %v, want ErrUnsupported", err)
	}
	if _, err := Decode([]byte(`not json`), ""); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}
