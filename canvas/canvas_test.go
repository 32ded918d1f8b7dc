package canvas

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
)

var (
	red  = color.RGBA{R: 0xff, A: 0xff}
	blue = color.RGBA{B: 0xff, A: 0xff}
)

func rect(s Surface, x0, y0, x1, y1 float64) {
	s.BeginPath()
	s.MoveTo(x0, y0)
	s.LineTo(x1, y0)
	s.LineTo(x1, y1)
	s.LineTo(x0, y1)
	s.ClosePath()
}

func TestRasterFillAndClearRect(t *testing.T) {
	r := NewRaster(20, 20)
	r.SetFillColor(red)
	rect(r, 0, 0, 10, 10)
	r.Fill()

	if got := r.Image().RGBAAt(5, 5); got != red {
		t.Fatalf("pixel inside fill = %v, want %v", got, red)
	}
	if got := r.Image().RGBAAt(15, 15); got.A != 0 {
		t.Fatalf("pixel outside fill = %v, want transparent", got)
	}

	r.ClearRect(0, 0, 20, 20)
	if got := r.Image().RGBAAt(5, 5); got.A != 0 {
		t.Fatalf("pixel after ClearRect = %v, want transparent", got)
	}
}

func TestRasterGlobalAlpha(t *testing.T) {
	r := NewRaster(10, 10)
	r.SetFillColor(red)
	r.SetGlobalAlpha(0.5)
	rect(r, 0, 0, 10, 10)
	r.Fill()

	got := r.Image().RGBAAt(5, 5)
	if got.A < 126 || got.A > 129 {
		t.Fatalf("alpha = %d, want ~128", got.A)
	}
}

func TestRasterClipRestore(t *testing.T) {
	r := NewRaster(20, 20)
	r.Save()
	rect(r, 0, 0, 10, 10)
	r.Clip()
	r.SetFillColor(red)
	rect(r, 0, 0, 20, 20)
	r.Fill()

	if got := r.Image().RGBAAt(15, 15); got.A != 0 {
		t.Fatalf("pixel outside clip = %v, want transparent", got)
	}
	if got := r.Image().RGBAAt(5, 5); got != red {
		t.Fatalf("pixel inside clip = %v, want red", got)
	}

	r.Restore()
	r.SetFillColor(blue)
	r.Fill()
	if got := r.Image().RGBAAt(15, 15); got != blue {
		t.Fatalf("pixel after restore = %v, want blue", got)
	}
}

func TestRasterFillTextMarksPixels(t *testing.T) {
	r := NewRaster(80, 30)
	r.SetFont(Font{Size: 14, Bold: true})
	r.SetTextAlign(AlignCenter)
	r.FillText("25544", 40, 20)

	if n := opaquePixels(r.Image()); n == 0 {
		t.Fatal("expected text to mark pixels")
	}
}

func TestRasterEncodePNG(t *testing.T) {
	r := NewRaster(4, 3)
	var buf bytes.Buffer
	if err := r.EncodePNG(&buf); err != nil {
		t.Fatalf("EncodePNG: %v", err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 4 || b.Dy() != 3 {
		t.Fatalf("bounds = %v, want 4x3", b)
	}
}

func TestComposite(t *testing.T) {
	base := NewRaster(10, 10)
	base.SetFillColor(red)
	rect(base, 0, 0, 10, 10)
	base.Fill()

	overlay := NewRaster(10, 10)
	overlay.SetFillColor(blue)
	rect(overlay, 0, 0, 5, 10)
	overlay.Fill()

	out := Composite(base.Image(), overlay.Image())
	if got := out.RGBAAt(2, 5); got != blue {
		t.Fatalf("overlay pixel = %v, want blue", got)
	}
	if got := out.RGBAAt(8, 5); got != red {
		t.Fatalf("base pixel = %v, want red", got)
	}
}

func TestRecorderCapturesStyle(t *testing.T) {
	r := NewRecorder(DefaultWidth, DefaultHeight)
	r.SetFillColor(red)
	r.SetGlobalAlpha(0.7)
	rect(r, 0, 0, 1, 1)
	r.Fill()

	r.Save()
	r.SetFont(Font{Size: 11, Bold: true})
	r.SetTextAlign(AlignCenter)
	r.FillText("ISS 25544", 10, 24)
	r.Restore()
	r.FillText("after", 0, 0)

	fills := r.Filter(OpFill)
	if len(fills) != 1 || fills[0].Alpha != 0.7 || fills[0].Fill != red {
		t.Fatalf("fill command = %+v", fills)
	}
	texts := r.Filter(OpFillText)
	if len(texts) != 2 {
		t.Fatalf("fillText count = %d, want 2", len(texts))
	}
	if texts[0].Text != "ISS 25544" || texts[0].Align != AlignCenter || !texts[0].Font.Bold {
		t.Fatalf("first text = %+v", texts[0])
	}
	if texts[1].Align != AlignLeft || texts[1].Font.Bold {
		t.Fatalf("style not restored: %+v", texts[1])
	}
	if got := r.Count(OpLineTo); got != 3 {
		t.Fatalf("lineTo count = %d, want 3", got)
	}

	r.Reset()
	if r.Len() != 0 {
		t.Fatalf("Len after Reset = %d", r.Len())
	}
}

func TestWithAlpha(t *testing.T) {
	got := withAlpha(color.RGBA{R: 0xb3, G: 0xdd, B: 0xef, A: 0xff}, 0.7)
	if got.R != 0xb3 || got.A != 179 {
		t.Fatalf("withAlpha = %+v", got)
	}
}

func opaquePixels(img *image.RGBA) int {
	n := 0
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if img.RGBAAt(x, y).A > 0 {
				n++
			}
		}
	}
	return n
}
