package canvas

import (
	"image/color"
	"sync"
)

// Op names a recorded drawing call.
type Op string

const (
	OpClearRect Op = "clearRect"
	OpBeginPath Op = "beginPath"
	OpMoveTo    Op = "moveTo"
	OpLineTo    Op = "lineTo"
	OpClosePath Op = "closePath"
	OpArc       Op = "arc"
	OpFill      Op = "fill"
	OpStroke    Op = "stroke"
	OpClip      Op = "clip"
	OpFillText  Op = "fillText"
	OpSave      Op = "save"
	OpRestore   Op = "restore"
)

// Command is one recorded call together with the style in effect when it
// was made. Style setters are not recorded on their own.
type Command struct {
	Op        Op
	Args      []float64
	Text      string
	Fill      color.Color
	Stroke    color.Color
	Alpha     float64
	LineWidth float64
	Font      Font
	Align     TextAlign
}

// Recorder is a Surface that keeps a log of drawing calls instead of pixels.
// It is safe for concurrent use.
type Recorder struct {
	w, h int

	mu    sync.Mutex
	cur   state
	stack []state
	cmds  []Command
}

var _ Surface = (*Recorder)(nil)

// NewRecorder returns an empty recorder reporting the given dimensions.
func NewRecorder(w, h int) *Recorder {
	return &Recorder{w: w, h: h, cur: defaultState()}
}

func (r *Recorder) Width() int  { return r.w }
func (r *Recorder) Height() int { return r.h }

func (r *Recorder) record(op Op, text string, args ...float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cmds = append(r.cmds, Command{
		Op:        op,
		Args:      args,
		Text:      text,
		Fill:      r.cur.fill,
		Stroke:    r.cur.stroke,
		Alpha:     r.cur.alpha,
		LineWidth: r.cur.lineWidth,
		Font:      r.cur.font,
		Align:     r.cur.align,
	})
}

func (r *Recorder) ClearRect(x, y, w, h float64) { r.record(OpClearRect, "", x, y, w, h) }
func (r *Recorder) BeginPath()                   { r.record(OpBeginPath, "") }
func (r *Recorder) MoveTo(x, y float64)          { r.record(OpMoveTo, "", x, y) }
func (r *Recorder) LineTo(x, y float64)          { r.record(OpLineTo, "", x, y) }
func (r *Recorder) ClosePath()                   { r.record(OpClosePath, "") }
func (r *Recorder) Fill()                        { r.record(OpFill, "") }
func (r *Recorder) Stroke()                      { r.record(OpStroke, "") }
func (r *Recorder) Clip()                        { r.record(OpClip, "") }

func (r *Recorder) Arc(x, y, radius, start, end float64) {
	r.record(OpArc, "", x, y, radius, start, end)
}

func (r *Recorder) FillText(s string, x, y float64) { r.record(OpFillText, s, x, y) }

func (r *Recorder) SetFillColor(c color.Color)   { r.set(func(s *state) { s.fill = c }) }
func (r *Recorder) SetStrokeColor(c color.Color) { r.set(func(s *state) { s.stroke = c }) }
func (r *Recorder) SetGlobalAlpha(a float64)     { r.set(func(s *state) { s.alpha = a }) }
func (r *Recorder) SetLineWidth(w float64)       { r.set(func(s *state) { s.lineWidth = w }) }
func (r *Recorder) SetFont(f Font)               { r.set(func(s *state) { s.font = f }) }
func (r *Recorder) SetTextAlign(a TextAlign)     { r.set(func(s *state) { s.align = a }) }

func (r *Recorder) set(fn func(*state)) {
	r.mu.Lock()
	fn(&r.cur)
	r.mu.Unlock()
}

func (r *Recorder) Save() {
	r.record(OpSave, "")
	r.mu.Lock()
	r.stack = append(r.stack, r.cur)
	r.mu.Unlock()
}

func (r *Recorder) Restore() {
	r.record(OpRestore, "")
	r.mu.Lock()
	if n := len(r.stack); n > 0 {
		r.cur = r.stack[n-1]
		r.stack = r.stack[:n-1]
	}
	r.mu.Unlock()
}

// Commands returns a copy of the log.
func (r *Recorder) Commands() []Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Command(nil), r.cmds...)
}

// Filter returns the recorded commands with the given op, in order.
func (r *Recorder) Filter(op Op) []Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Command
	for _, c := range r.cmds {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// Count returns how many commands with the given op were recorded.
func (r *Recorder) Count(op Op) int {
	return len(r.Filter(op))
}

// Len returns the total number of recorded commands.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.cmds)
}

// Reset discards the log but keeps the current style.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.cmds = nil
	r.mu.Unlock()
}
