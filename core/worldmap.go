package core

import (
	"context"
	"errors"
	"image/color"
	"sync"

	"github.com/paulmach/orb/geojson"
	"github.com/signalsfoundry/satmap/canvas"
	"github.com/signalsfoundry/satmap/internal/logging"
	"github.com/signalsfoundry/satmap/internal/observability"
	"github.com/signalsfoundry/satmap/projection"
	"go.opentelemetry.io/otel/attribute"
)

// ErrBaseDrawn is returned when DrawBase is called more than once on a Map.
var ErrBaseDrawn = errors.New("base map already drawn")

// Base map styling. The alpha applies to every base layer.
var (
	LandColor      = color.RGBA{R: 0xb3, G: 0xdd, B: 0xef, A: 0xff}
	BorderColor    = color.RGBA{A: 0xff}
	GraticuleColor = color.NRGBA{R: 220, G: 220, B: 220, A: 51}
)

const (
	baseAlpha          = 0.7
	borderWidth        = 1
	graticuleWidth     = 0.1
	graticuleEdgeWidth = 0.5
)

// Map owns the projection, the two drawing layers and the colour state for
// one loaded world map. The base layer is drawn once; the overlay belongs
// to the Animator.
type Map struct {
	base    canvas.Surface
	overlay canvas.Surface

	proj      *projection.Kavrayskiy7
	graticule *projection.Graticule
	path      *projection.Path
	colors    *ColorAssigner
	points    *PointRenderer
	log       logging.Logger

	mu    sync.Mutex
	drawn bool
}

// MapOption customises a Map.
type MapOption func(*mapConfig)

type mapConfig struct {
	projOpts []projection.Option
	colors   *ColorAssigner
	log      logging.Logger
}

func WithProjectionOptions(opts ...projection.Option) MapOption {
	return func(c *mapConfig) { c.projOpts = append(c.projOpts, opts...) }
}

func WithColors(a *ColorAssigner) MapOption {
	return func(c *mapConfig) { c.colors = a }
}

func WithMapLogger(l logging.Logger) MapOption {
	return func(c *mapConfig) { c.log = l }
}

// NewMap builds the projection and graticule for the base surface's size.
// Nothing is drawn until DrawBase.
func NewMap(base, overlay canvas.Surface, opts ...MapOption) *Map {
	cfg := mapConfig{log: logging.Noop()}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.colors == nil {
		cfg.colors = NewColorAssigner()
	}

	proj := projection.New(base.Width(), base.Height(), cfg.projOpts...)
	return &Map{
		base:      base,
		overlay:   overlay,
		proj:      proj,
		graticule: projection.NewGraticule(),
		path:      projection.NewPath(proj),
		colors:    cfg.colors,
		points:    NewPointRenderer(proj, cfg.colors),
		log:       cfg.log,
	}
}

func (m *Map) Projection() *projection.Kavrayskiy7 { return m.proj }
func (m *Map) Base() canvas.Surface                { return m.base }
func (m *Map) Overlay() canvas.Surface             { return m.overlay }
func (m *Map) Colors() *ColorAssigner              { return m.colors }
func (m *Map) Points() *PointRenderer              { return m.points }

// Drawn reports whether DrawBase has completed.
func (m *Map) Drawn() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.drawn
}

// DrawBase fills and outlines every land feature in order, then strokes the
// graticule and its outline, all clipped to the outline.
func (m *Map) DrawBase(ctx context.Context, fc *geojson.FeatureCollection) (err error) {
	if fc == nil {
		return errors.New("nil feature collection")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.drawn {
		return ErrBaseDrawn
	}

	ctx, span := observability.StartSpan(ctx, "satmap.DrawBase",
		attribute.Int("features", len(fc.Features)))
	defer func() { observability.EndSpan(span, err) }()

	s := m.base
	outline := m.graticule.Outline()

	s.Save()
	s.BeginPath()
	m.path.Trace(s, outline)
	s.Clip()

	s.SetGlobalAlpha(baseAlpha)
	s.SetFillColor(LandColor)
	s.SetStrokeColor(BorderColor)
	s.SetLineWidth(borderWidth)
	skipped := 0
	for _, f := range fc.Features {
		if f == nil || f.Geometry == nil {
			skipped++
			continue
		}
		s.BeginPath()
		m.path.Trace(s, f.Geometry)
		s.Fill()
		s.Stroke()
	}

	s.SetStrokeColor(GraticuleColor)
	s.BeginPath()
	m.path.Trace(s, m.graticule.Lines())
	s.SetLineWidth(graticuleWidth)
	s.Stroke()

	s.BeginPath()
	m.path.Trace(s, outline)
	s.SetLineWidth(graticuleEdgeWidth)
	s.Stroke()
	s.Restore()

	m.drawn = true
	if skipped > 0 {
		m.log.Warn(ctx, "skipped features without geometry", logging.Int("skipped", skipped))
	}
	m.log.Info(ctx, "base map drawn", logging.Int("features", len(fc.Features)-skipped))
	return nil
}
