// Package topo decodes world geometry delivered as TopoJSON or GeoJSON into
// an orb FeatureCollection.
package topo

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

var (
	ErrUnsupported   = errors.New("unsupported geometry document")
	ErrUnknownObject = errors.New("topology object not found")
	ErrBadArc        = errors.New("arc index out of range")
)

// DefaultObjects are tried in order when no object name is given.
var DefaultObjects = []string{"countries", "land"}

// Decode parses a TopoJSON Topology or a GeoJSON FeatureCollection/Feature.
// For topologies, object selects the member of "objects" to convert; an
// empty name falls back to DefaultObjects and then the first object by name.
func Decode(data []byte, object string) (*geojson.FeatureCollection, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("decode geometry: %w", err)
	}

	switch head.Type {
	case "Topology":
		var t Topology
		if err := json.Unmarshal(data, &t); err != nil {
			return nil, fmt.Errorf("decode topology: %w", err)
		}
		return t.Feature(object)
	case "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return nil, fmt.Errorf("decode feature collection: %w", err)
		}
		return fc, nil
	case "Feature":
		f, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return nil, fmt.Errorf("decode feature: %w", err)
		}
		fc := geojson.NewFeatureCollection()
		fc.Append(f)
		return fc, nil
	default:
		return nil, fmt.Errorf("%w: type %q", ErrUnsupported, head.Type)
	}
}

// Topology is a TopoJSON document.
type Topology struct {
	Type      string               `json:"type"`
	Transform *Transform           `json:"transform,omitempty"`
	Objects   map[string]*Geometry `json:"objects"`
	Arcs      [][][]float64        `json:"arcs"`
	BBox      []float64            `json:"bbox,omitempty"`

	decoded [][]orb.Point
}

// Transform dequantises integer coordinates.
type Transform struct {
	Scale     [2]float64 `json:"scale"`
	Translate [2]float64 `json:"translate"`
}

func (tr *Transform) apply(x, y float64) orb.Point {
	if tr == nil {
		return orb.Point{x, y}
	}
	return orb.Point{x*tr.Scale[0] + tr.Translate[0], y*tr.Scale[1] + tr.Translate[1]}
}

// Geometry is a TopoJSON geometry object. Arcs and Coordinates are kept raw
// because their nesting depends on Type.
type Geometry struct {
	Type        string          `json:"type"`
	ID          any             `json:"id,omitempty"`
	Properties  map[string]any  `json:"properties,omitempty"`
	Arcs        json.RawMessage `json:"arcs,omitempty"`
	Coordinates json.RawMessage `json:"coordinates,omitempty"`
	Geometries  []*Geometry     `json:"geometries,omitempty"`
}

// ObjectNames returns the topology's object names, sorted.
func (t *Topology) ObjectNames() []string {
	names := make([]string, 0, len(t.Objects))
	for name := range t.Objects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (t *Topology) pick(name string) (*Geometry, error) {
	if name != "" {
		if g, ok := t.Objects[name]; ok {
			return g, nil
		}
		return nil, fmt.Errorf("%w: %q", ErrUnknownObject, name)
	}
	for _, candidate := range DefaultObjects {
		if g, ok := t.Objects[candidate]; ok {
			return g, nil
		}
	}
	if names := t.ObjectNames(); len(names) > 0 {
		return t.Objects[names[0]], nil
	}
	return nil, ErrUnknownObject
}

// Feature converts one named object into features. A GeometryCollection
// yields one feature per member.
func (t *Topology) Feature(object string) (*geojson.FeatureCollection, error) {
	obj, err := t.pick(object)
	if err != nil {
		return nil, err
	}
	t.decodeArcs()

	fc := geojson.NewFeatureCollection()
	members := []*Geometry{obj}
	if obj.Type == "GeometryCollection" {
		members = obj.Geometries
	}
	for i, g := range members {
		geom, err := t.geometry(g)
		if err != nil {
			return nil, fmt.Errorf("object %d: %w", i, err)
		}
		f := &geojson.Feature{
			Type:       "Feature",
			ID:         g.ID,
			Geometry:   geom,
			Properties: geojson.Properties(g.Properties),
		}
		if f.Properties == nil {
			f.Properties = geojson.Properties{}
		}
		fc.Features = append(fc.Features, f)
	}
	return fc, nil
}

// decodeArcs resolves delta encoding and the transform once.
func (t *Topology) decodeArcs() {
	if t.decoded != nil {
		return
	}
	t.decoded = make([][]orb.Point, len(t.Arcs))
	for i, arc := range t.Arcs {
		pts := make([]orb.Point, 0, len(arc))
		var x, y float64
		for _, p := range arc {
			if len(p) < 2 {
				continue
			}
			if t.Transform != nil {
				x += p[0]
				y += p[1]
				pts = append(pts, t.Transform.apply(x, y))
			} else {
				pts = append(pts, orb.Point{p[0], p[1]})
			}
		}
		t.decoded[i] = pts
	}
}

func (t *Topology) geometry(g *Geometry) (orb.Geometry, error) {
	switch g.Type {
	case "", "null":
		return nil, nil
	case "Point":
		var c []float64
		if err := json.Unmarshal(g.Coordinates, &c); err != nil {
			return nil, fmt.Errorf("point: %w", err)
		}
		return t.position(c), nil
	case "MultiPoint":
		var cs [][]float64
		if err := json.Unmarshal(g.Coordinates, &cs); err != nil {
			return nil, fmt.Errorf("multipoint: %w", err)
		}
		mp := make(orb.MultiPoint, 0, len(cs))
		for _, c := range cs {
			mp = append(mp, t.position(c))
		}
		return mp, nil
	case "LineString":
		var arcs []int
		if err := json.Unmarshal(g.Arcs, &arcs); err != nil {
			return nil, fmt.Errorf("linestring: %w", err)
		}
		return t.line(arcs)
	case "MultiLineString":
		var arcs [][]int
		if err := json.Unmarshal(g.Arcs, &arcs); err != nil {
			return nil, fmt.Errorf("multilinestring: %w", err)
		}
		mls := make(orb.MultiLineString, 0, len(arcs))
		for _, a := range arcs {
			ls, err := t.line(a)
			if err != nil {
				return nil, err
			}
			mls = append(mls, ls)
		}
		return mls, nil
	case "Polygon":
		var arcs [][]int
		if err := json.Unmarshal(g.Arcs, &arcs); err != nil {
			return nil, fmt.Errorf("polygon: %w", err)
		}
		return t.polygon(arcs)
	case "MultiPolygon":
		var arcs [][][]int
		if err := json.Unmarshal(g.Arcs, &arcs); err != nil {
			return nil, fmt.Errorf("multipolygon: %w", err)
		}
		mp := make(orb.MultiPolygon, 0, len(arcs))
		for _, p := range arcs {
			poly, err := t.polygon(p)
			if err != nil {
				return nil, err
			}
			mp = append(mp, poly)
		}
		return mp, nil
	case "GeometryCollection":
		col := make(orb.Collection, 0, len(g.Geometries))
		for _, sub := range g.Geometries {
			geom, err := t.geometry(sub)
			if err != nil {
				return nil, err
			}
			if geom != nil {
				col = append(col, geom)
			}
		}
		return col, nil
	default:
		return nil, fmt.Errorf("%w: geometry type %q", ErrUnsupported, g.Type)
	}
}

// position dequantises a Point coordinate; these are absolute, not deltas.
func (t *Topology) position(c []float64) orb.Point {
	if len(c) < 2 {
		return orb.Point{}
	}
	return t.Transform.apply(c[0], c[1])
}

// stitch joins arcs end to end. Consecutive arcs share an endpoint, which is
// kept once; a negative index ~i walks arc i backwards.
func (t *Topology) stitch(arcs []int) ([]orb.Point, error) {
	var pts []orb.Point
	for _, i := range arcs {
		idx := i
		if i < 0 {
			idx = ^i
		}
		if idx >= len(t.decoded) {
			return nil, fmt.Errorf("%w: %d", ErrBadArc, i)
		}
		arc := t.decoded[idx]
		if len(pts) > 0 {
			pts = pts[:len(pts)-1]
		}
		start := len(pts)
		pts = append(pts, arc...)
		if i < 0 {
			for l, r := start, len(pts)-1; l < r; l, r = l+1, r-1 {
				pts[l], pts[r] = pts[r], pts[l]
			}
		}
	}
	return pts, nil
}

func (t *Topology) line(arcs []int) (orb.LineString, error) {
	pts, err := t.stitch(arcs)
	if err != nil {
		return nil, err
	}
	if len(pts) == 1 {
		pts = append(pts, pts[0])
	}
	return orb.LineString(pts), nil
}

func (t *Topology) polygon(rings [][]int) (orb.Polygon, error) {
	poly := make(orb.Polygon, 0, len(rings))
	for _, arcs := range rings {
		pts, err := t.stitch(arcs)
		if err != nil {
			return nil, err
		}
		for len(pts) > 0 && len(pts) < 4 {
			pts = append(pts, pts[0])
		}
		poly = append(poly, orb.Ring(pts))
	}
	return poly, nil
}
