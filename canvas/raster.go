package canvas

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"sync"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
)

type pathOp struct {
	kind      byte // 'M', 'L', 'Z', 'A'
	x, y      float64
	r, a1, a2 float64
}

type rasterState struct {
	state
	clips [][]pathOp
}

// Raster is a Surface that rasterises into an RGBA image through gg.
// Raster is not safe for concurrent use.
type Raster struct {
	dc    *gg.Context
	cur   rasterState
	stack []rasterState
	path  []pathOp
	faces map[Font]font.Face
}

var _ Surface = (*Raster)(nil)

// NewRaster returns a transparent w×h raster.
func NewRaster(w, h int) *Raster {
	r := &Raster{
		dc:    gg.NewContext(w, h),
		cur:   rasterState{state: defaultState()},
		faces: map[Font]font.Face{},
	}
	r.dc.SetLineCapRound()
	r.dc.SetLineJoinRound()
	r.applyFont()
	return r
}

func (r *Raster) Width() int  { return r.dc.Width() }
func (r *Raster) Height() int { return r.dc.Height() }

// Image returns the backing image. It aliases the raster's pixels.
func (r *Raster) Image() *image.RGBA {
	return r.dc.Image().(*image.RGBA)
}

// EncodePNG writes the current pixels as PNG.
func (r *Raster) EncodePNG(w io.Writer) error {
	if err := r.dc.EncodePNG(w); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}

// ClearRect resets the pixels in the rectangle to transparent black,
// ignoring the clip region.
func (r *Raster) ClearRect(x, y, w, h float64) {
	rect := image.Rect(int(x), int(y), int(x+w+0.999), int(y+h+0.999))
	draw.Draw(r.Image(), rect, image.Transparent, image.Point{}, draw.Src)
}

func (r *Raster) BeginPath() {
	r.path = r.path[:0]
	r.dc.ClearPath()
}

func (r *Raster) MoveTo(x, y float64) {
	r.path = append(r.path, pathOp{kind: 'M', x: x, y: y})
	r.dc.MoveTo(x, y)
}

func (r *Raster) LineTo(x, y float64) {
	r.path = append(r.path, pathOp{kind: 'L', x: x, y: y})
	r.dc.LineTo(x, y)
}

func (r *Raster) ClosePath() {
	r.path = append(r.path, pathOp{kind: 'Z'})
	r.dc.ClosePath()
}

func (r *Raster) Arc(x, y, radius, start, end float64) {
	r.path = append(r.path, pathOp{kind: 'A', x: x, y: y, r: radius, a1: start, a2: end})
	r.dc.DrawArc(x, y, radius, start, end)
}

func (r *Raster) Fill() {
	r.dc.SetColor(withAlpha(r.cur.fill, r.cur.alpha))
	r.dc.FillPreserve()
}

func (r *Raster) Stroke() {
	r.dc.SetColor(withAlpha(r.cur.stroke, r.cur.alpha))
	r.dc.SetLineWidth(r.cur.lineWidth)
	r.dc.StrokePreserve()
}

func (r *Raster) Clip() {
	clip := append([]pathOp(nil), r.path...)
	r.cur.clips = append(r.cur.clips, clip)
	r.dc.ClipPreserve()
}

func (r *Raster) SetFillColor(c color.Color)   { r.cur.fill = c }
func (r *Raster) SetStrokeColor(c color.Color) { r.cur.stroke = c }
func (r *Raster) SetGlobalAlpha(a float64)     { r.cur.alpha = a }
func (r *Raster) SetLineWidth(w float64)       { r.cur.lineWidth = w }
func (r *Raster) SetTextAlign(a TextAlign)     { r.cur.align = a }

func (r *Raster) SetFont(f Font) {
	r.cur.font = f
	r.applyFont()
}

func (r *Raster) FillText(s string, x, y float64) {
	r.dc.SetColor(withAlpha(r.cur.fill, r.cur.alpha))
	r.dc.DrawStringAnchored(s, x, y, r.cur.align.anchor(), 0)
}

func (r *Raster) Save() {
	saved := r.cur
	saved.clips = append([][]pathOp(nil), r.cur.clips...)
	r.stack = append(r.stack, saved)
}

func (r *Raster) Restore() {
	if len(r.stack) == 0 {
		return
	}
	prev := r.cur
	r.cur = r.stack[len(r.stack)-1]
	r.stack = r.stack[:len(r.stack)-1]
	if r.cur.font != prev.font {
		r.applyFont()
	}
	if len(r.cur.clips) != len(prev.clips) {
		r.rebuildClip()
	}
}

// rebuildClip resets gg's mask and re-applies the saved clip paths, keeping
// the current path intact.
func (r *Raster) rebuildClip() {
	r.dc.ResetClip()
	r.dc.ClearPath()
	for _, clip := range r.cur.clips {
		r.replay(clip)
		r.dc.Clip()
	}
	r.replay(r.path)
}

func (r *Raster) replay(ops []pathOp) {
	for _, op := range ops {
		switch op.kind {
		case 'M':
			r.dc.MoveTo(op.x, op.y)
		case 'L':
			r.dc.LineTo(op.x, op.y)
		case 'Z':
			r.dc.ClosePath()
		case 'A':
			r.dc.DrawArc(op.x, op.y, op.r, op.a1, op.a2)
		}
	}
}

// Faces carry a glyph cache, so each raster keeps its own.
func (r *Raster) applyFont() {
	f := r.cur.font
	face, ok := r.faces[f]
	if !ok {
		face = newFace(f)
		r.faces[f] = face
	}
	r.dc.SetFontFace(face)
}

var (
	fontsOnce sync.Once
	regular   *truetype.Font
	bold      *truetype.Font
)

func newFace(f Font) font.Face {
	fontsOnce.Do(func() {
		regular = mustParse(goregular.TTF)
		bold = mustParse(gobold.TTF)
	})

	ttf := regular
	if f.Bold {
		ttf = bold
	}
	size := f.Size
	if size <= 0 {
		size = 10
	}
	// Canvas font sizes are pixels; truetype sizes are points at 72 DPI.
	return truetype.NewFace(ttf, &truetype.Options{Size: size, DPI: 72, Hinting: font.HintingFull})
}

func mustParse(ttf []byte) *truetype.Font {
	f, err := truetype.Parse(ttf)
	if err != nil {
		panic(fmt.Sprintf("canvas: parse embedded font: %v", err))
	}
	return f
}

// Composite draws layers over one another into a new image the size of the
// first layer.
func Composite(layers ...image.Image) *image.RGBA {
	if len(layers) == 0 {
		return image.NewRGBA(image.Rect(0, 0, 0, 0))
	}
	out := image.NewRGBA(layers[0].Bounds())
	for _, l := range layers {
		draw.Draw(out, out.Bounds(), l, l.Bounds().Min, draw.Over)
	}
	return out
}
