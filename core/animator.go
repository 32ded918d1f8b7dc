package core

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"sync"
	"time"

	"github.com/signalsfoundry/satmap/canvas"
	"github.com/signalsfoundry/satmap/internal/logging"
	"github.com/signalsfoundry/satmap/internal/observability"
	"github.com/signalsfoundry/satmap/model"
	"github.com/signalsfoundry/satmap/timectrl"
)

var (
	ErrNoSeries      = errors.New("no satellite series")
	ErrNoPositions   = errors.New("satellite series has no positions")
	ErrRunInProgress = errors.New("animation run in progress")
	ErrRunQueued     = errors.New("animation run queued behind active run")
)

const (
	DefaultInterval  = time.Second
	DefaultTimeScale = 60
	DefaultStep      = 60
	// TimestampLayout formats the simulated time drawn on every tick.
	TimestampLayout = "2006-01-02 15:04:05 MST"
)

var (
	timestampFont  = canvas.Font{Size: 14, Bold: true}
	timestampColor = color.RGBA{R: 0x33, G: 0x33, B: 0x33, A: 0xff}
)

// DeferPolicy decides what Start does while a run is active.
type DeferPolicy int

const (
	// DeferDrop rejects the new request and shows the busy hint.
	DeferDrop DeferPolicy = iota
	// DeferQueueLatest keeps the newest request and starts it when the
	// active run completes.
	DeferQueueLatest
)

// Metrics receives animator events. *observability.AnimatorCollector
// implements it.
type Metrics interface {
	RunStarted()
	RunFinished(reason string)
	RunDeferred()
	TickObserved(d time.Duration)
	MarkerDrawn()
	MarkerSkipped()
	RenderError(kind string)
}

type noopMetrics struct{}

func (noopMetrics) RunStarted()                {}
func (noopMetrics) RunFinished(string)         {}
func (noopMetrics) RunDeferred()               {}
func (noopMetrics) TickObserved(time.Duration) {}
func (noopMetrics) MarkerDrawn()               {}
func (noopMetrics) MarkerSkipped()             {}
func (noopMetrics) RenderError(string)         {}

// AnimationState is a snapshot of the animator.
type AnimationState struct {
	Index   int       `json:"index"`
	Start   time.Time `json:"start"`
	Running bool      `json:"running"`
	RunID   string    `json:"run_id,omitempty"`
	Length  int       `json:"length"`
	Ticks   int       `json:"ticks"`
}

// Frame is published to OnFrame observers after every tick.
type Frame struct {
	RunID     string    `json:"run_id"`
	Tick      int       `json:"tick"`
	Index     int       `json:"index"`
	SimTime   time.Time `json:"sim_time"`
	Timestamp string    `json:"timestamp"`
	Markers   []Marker  `json:"markers"`
	Final     bool      `json:"final"`
}

// AnimatorOption customises an Animator.
type AnimatorOption func(*Animator)

func WithScheduler(s timectrl.Scheduler) AnimatorOption {
	return func(a *Animator) { a.sched = s }
}

func WithClock(c timectrl.Clock) AnimatorOption {
	return func(a *Animator) { a.clock = c }
}

func WithStatus(s StatusSink) AnimatorOption {
	return func(a *Animator) { a.status = s }
}

func WithLogger(l logging.Logger) AnimatorOption {
	return func(a *Animator) { a.log = l }
}

func WithMetrics(m Metrics) AnimatorOption {
	return func(a *Animator) { a.metrics = m }
}

func WithInterval(d time.Duration) AnimatorOption {
	return func(a *Animator) { a.interval = d }
}

func WithTimeScale(f float64) AnimatorOption {
	return func(a *Animator) { a.timeScale = f }
}

func WithStep(n int) AnimatorOption {
	return func(a *Animator) { a.step = n }
}

func WithDeferPolicy(p DeferPolicy) AnimatorOption {
	return func(a *Animator) { a.policy = p }
}

// WithTimestampLayout sets the time layout and zone of the drawn timestamp.
func WithTimestampLayout(layout string, loc *time.Location) AnimatorOption {
	return func(a *Animator) {
		a.layout = layout
		if loc != nil {
			a.loc = loc
		}
	}
}

// Animator replays satellite series onto a map's overlay, one tick per
// interval, advancing Step samples and TimeScale× wall-clock time per tick.
// At most one run is active; all state is guarded by a single mutex, which
// also serialises overlay drawing.
type Animator struct {
	overlay canvas.Surface
	points  *PointRenderer

	sched     timectrl.Scheduler
	clock     timectrl.Clock
	status    StatusSink
	log       logging.Logger
	metrics   Metrics
	interval  time.Duration
	timeScale float64
	step      int
	policy    DeferPolicy
	layout    string
	loc       *time.Location

	mu      sync.Mutex
	state   AnimationState
	series  []model.SatelliteSeries
	task    timectrl.Task
	done    chan struct{}
	pending []model.SatelliteSeries
	runCtx  context.Context
	runLog  logging.Logger

	observers map[int]func(Frame)
	nextObs   int
}

// NewAnimator draws onto m's overlay with m's projection and colours.
func NewAnimator(m *Map, opts ...AnimatorOption) *Animator {
	a := &Animator{
		overlay:   m.Overlay(),
		points:    m.Points(),
		sched:     timectrl.NewIntervalScheduler(),
		clock:     timectrl.SystemClock{},
		status:    discardStatus{},
		log:       logging.Noop(),
		metrics:   noopMetrics{},
		interval:  DefaultInterval,
		timeScale: DefaultTimeScale,
		step:      DefaultStep,
		layout:    TimestampLayout,
		loc:       time.UTC,
		observers: make(map[int]func(Frame)),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.step <= 0 {
		a.step = DefaultStep
	}
	a.done = make(chan struct{})
	close(a.done)
	a.runLog = a.log
	a.runCtx = context.Background()
	return a
}

// Start begins replaying series. It fails with ErrNoSeries or ErrNoPositions
// on unusable input. While a run is active it returns ErrRunInProgress
// (DeferDrop) or ErrRunQueued (DeferQueueLatest) and shows StatusBusy.
func (a *Animator) Start(ctx context.Context, series []model.SatelliteSeries) error {
	if err := validateSeries(series); err != nil {
		a.mu.Lock()
		running := a.state.Running
		a.mu.Unlock()
		if !running {
			a.status.SetStatus("")
		}
		a.metrics.RenderError("no_positions")
		a.log.Error(ctx, "animation run aborted", logging.Err(err))
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state.Running {
		a.metrics.RunDeferred()
		a.status.SetStatus(StatusBusy)
		if a.policy == DeferQueueLatest {
			if a.pending != nil {
				a.runLog.Info(ctx, "queued run request superseded")
			}
			a.pending = cloneSeries(series)
			a.runLog.Info(ctx, "run request queued", logging.Int("satellites", len(series)))
			return ErrRunQueued
		}
		a.runLog.Info(ctx, "run request dropped", logging.Int("satellites", len(series)))
		return ErrRunInProgress
	}

	a.startLocked(ctx, cloneSeries(series))
	return nil
}

func validateSeries(series []model.SatelliteSeries) error {
	if len(series) == 0 {
		return ErrNoSeries
	}
	for _, s := range series {
		if s.Len() == 0 {
			return fmt.Errorf("satellite %d (%s): %w", s.Info.ID, s.Info.Name, ErrNoPositions)
		}
	}
	return nil
}

func cloneSeries(series []model.SatelliteSeries) []model.SatelliteSeries {
	return append([]model.SatelliteSeries(nil), series...)
}

func (a *Animator) startLocked(ctx context.Context, series []model.SatelliteSeries) {
	length := 0
	for _, s := range series {
		length = max(length, s.Len())
	}

	runID := logging.NewRunID()
	a.runCtx, a.runLog = logging.WithRunLogger(context.WithoutCancel(ctx), a.log, runID)
	a.series = series
	a.state = AnimationState{
		Start:   a.clock.Now(),
		Running: true,
		RunID:   runID,
		Length:  length,
	}
	a.done = make(chan struct{})
	a.overlay.ClearRect(0, 0, float64(a.overlay.Width()), float64(a.overlay.Height()))
	a.metrics.RunStarted()
	a.runLog.Info(a.runCtx, "animation run started",
		logging.Int("satellites", len(series)),
		logging.Int("samples", length),
		logging.Duration("interval", a.interval),
	)

	a.task = a.sched.Every(a.interval, func(now time.Time) { a.tick(runID, now) })
}

// tick renders one frame of run runID. Ticks from any other run are ignored.
func (a *Animator) tick(runID string, now time.Time) {
	began := time.Now()

	a.mu.Lock()
	if !a.state.Running || a.state.RunID != runID {
		a.mu.Unlock()
		return
	}

	a.state.Ticks++
	var elapsed time.Duration
	if a.state.Ticks > 1 {
		elapsed = now.Sub(a.state.Start)
	}
	simTime := timectrl.Scaled(a.state.Start, elapsed, a.timeScale)
	stamp := simTime.In(a.loc).Format(a.layout)

	s := a.overlay
	s.ClearRect(0, 0, float64(s.Width()), float64(s.Height()))
	s.SetFont(timestampFont)
	s.SetFillColor(timestampColor)
	s.SetTextAlign(canvas.AlignCenter)
	s.FillText(stamp, float64(s.Width())/2, 10)

	frame := Frame{
		RunID:     runID,
		Tick:      a.state.Ticks,
		Index:     a.state.Index,
		SimTime:   simTime,
		Timestamp: stamp,
	}

	if a.state.Index < a.state.Length {
		frame.Markers = a.drawLocked(a.state.Index)
		a.state.Index += a.step
	}
	if a.state.Index >= a.state.Length {
		frame.Final = true
		a.finishLocked(observability.ReasonCompleted)
	}
	observers := a.observersLocked()
	a.mu.Unlock()

	a.metrics.TickObserved(time.Since(began))
	for _, fn := range observers {
		fn(frame)
	}
}

func (a *Animator) drawLocked(index int) []Marker {
	var markers []Marker
	for _, series := range a.series {
		sample, ok := series.At(index)
		if !ok {
			continue
		}
		m, drawn, err := a.points.DrawSatellite(a.overlay, series.Info, sample)
		switch {
		case err != nil:
			a.metrics.RenderError("identifier")
			a.runLog.Error(a.runCtx, "cannot draw satellite",
				logging.Int("satid", series.Info.ID),
				logging.String("name", series.Info.Name),
				logging.Err(err),
			)
		case !drawn:
			a.metrics.MarkerSkipped()
		default:
			a.metrics.MarkerDrawn()
			markers = append(markers, m)
		}
	}
	return markers
}

func (a *Animator) finishLocked(reason string) {
	if a.task != nil {
		a.task.Stop()
		a.task = nil
	}
	a.state.Running = false
	a.status.SetStatus("")
	close(a.done)
	a.metrics.RunFinished(reason)
	a.runLog.Info(a.runCtx, "animation run finished",
		logging.String("reason", reason),
		logging.Int("ticks", a.state.Ticks),
	)

	if reason == observability.ReasonCompleted && a.pending != nil {
		next := a.pending
		a.pending = nil
		a.startLocked(a.runCtx, next)
	}
}

// Stop cancels the active run, dropping any queued request. It reports
// whether a run was active.
func (a *Animator) Stop() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.state.Running {
		return false
	}
	a.pending = nil
	a.finishLocked(observability.ReasonStopped)
	return true
}

// State returns a copy of the current animation state.
func (a *Animator) State() AnimationState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Done returns a channel closed when the current (or most recent) run ends.
func (a *Animator) Done() <-chan struct{} {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.done
}

// Snapshot copies the overlay pixels. It returns nil when the overlay is not
// backed by an image.
func (a *Animator) Snapshot() *image.RGBA {
	a.mu.Lock()
	defer a.mu.Unlock()
	src, ok := a.overlay.(interface{ Image() *image.RGBA })
	if !ok {
		return nil
	}
	img := src.Image()
	out := image.NewRGBA(img.Bounds())
	copy(out.Pix, img.Pix)
	return out
}

// OnFrame registers fn to receive every rendered frame. Observers run on
// the ticking goroutine after the animator lock is released.
func (a *Animator) OnFrame(fn func(Frame)) (unsubscribe func()) {
	a.mu.Lock()
	defer a.mu.Unlock()
	id := a.nextObs
	a.nextObs++
	a.observers[id] = fn
	return func() {
		a.mu.Lock()
		delete(a.observers, id)
		a.mu.Unlock()
	}
}

func (a *Animator) observersLocked() []func(Frame) {
	out := make([]func(Frame), 0, len(a.observers))
	for i := 0; i < a.nextObs; i++ {
		if fn, ok := a.observers[i]; ok {
			out = append(out, fn)
		}
	}
	return out
}
