// Package canvas defines the 2D drawing surface the map renders into and two
// implementations: a raster backed by fogleman/gg and a command recorder.
package canvas

import (
	"image/color"
)

// Default surface dimensions.
const (
	DefaultWidth  = 960
	DefaultHeight = 600
)

// TextAlign controls horizontal anchoring of FillText.
type TextAlign int

const (
	AlignLeft TextAlign = iota
	AlignCenter
	AlignRight
)

func (a TextAlign) String() string {
	switch a {
	case AlignCenter:
		return "center"
	case AlignRight:
		return "right"
	default:
		return "left"
	}
}

// anchor returns the fraction of the text width left of the anchor point.
func (a TextAlign) anchor() float64 {
	switch a {
	case AlignCenter:
		return 0.5
	case AlignRight:
		return 1
	default:
		return 0
	}
}

// Font describes the face used by FillText. Only the Go font family is
// available.
type Font struct {
	Size float64
	Bold bool
}

// Surface is an immediate-mode drawing target with canvas-style path
// semantics: Fill and Stroke leave the current path intact and BeginPath
// discards it.
type Surface interface {
	Width() int
	Height() int

	ClearRect(x, y, w, h float64)

	BeginPath()
	MoveTo(x, y float64)
	LineTo(x, y float64)
	ClosePath()
	Arc(x, y, r, start, end float64)
	Fill()
	Stroke()
	// Clip intersects the clip region with the current path.
	Clip()

	SetFillColor(c color.Color)
	SetStrokeColor(c color.Color)
	SetGlobalAlpha(a float64)
	SetLineWidth(w float64)
	SetFont(f Font)
	SetTextAlign(a TextAlign)
	// FillText draws s with its alphabetic baseline at y.
	FillText(s string, x, y float64)

	// Save and Restore push and pop colours, alpha, line width, font,
	// alignment and clip.
	Save()
	Restore()
}

// Black is the initial fill and stroke colour of a fresh surface.
var Black = color.RGBA{A: 0xff}

// withAlpha scales the alpha of c by a, returning a non-premultiplied colour.
func withAlpha(c color.Color, a float64) color.NRGBA {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	if a < 0 {
		a = 0
	}
	if a < 1 {
		n.A = uint8(float64(n.A)*a + 0.5)
	}
	return n
}

// state is the Save/Restore-able part of a surface.
type state struct {
	fill      color.Color
	stroke    color.Color
	alpha     float64
	lineWidth float64
	font      Font
	align     TextAlign
}

func defaultState() state {
	return state{
		fill:      Black,
		stroke:    Black,
		alpha:     1,
		lineWidth: 1,
		font:      Font{Size: 10},
		align:     AlignLeft,
	}
}
