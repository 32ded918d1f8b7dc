package observability

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// Finish reasons reported by the animator.
const (
	ReasonCompleted = "completed"
	ReasonStopped   = "stopped"
)

// AnimatorCollector bundles Prometheus metrics for the track animator and
// the HTTP/gRPC surfaces around it.
type AnimatorCollector struct {
	gatherer prometheus.Gatherer

	RunsStarted   prometheus.Counter
	RunsFinished  *prometheus.CounterVec
	RunsDeferred  prometheus.Counter
	Ticks         prometheus.Counter
	TickDurations prometheus.Histogram
	Markers       *prometheus.CounterVec
	RenderErrors  *prometheus.CounterVec
	Running       prometheus.Gauge

	RPCRequests *prometheus.CounterVec
}

// NewAnimatorCollector registers animator metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewAnimatorCollector(reg prometheus.Registerer) (*AnimatorCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	started, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "satmap_runs_started_total",
		Help: "Number of animation runs started.",
	}), "satmap_runs_started_total")
	if err != nil {
		return nil, err
	}

	finished, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "satmap_runs_finished_total",
		Help: "Number of animation runs that ended, labeled by reason.",
	}, []string{"reason"}), "satmap_runs_finished_total")
	if err != nil {
		return nil, err
	}

	deferred, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "satmap_runs_deferred_total",
		Help: "Number of run requests received while another run was active.",
	}), "satmap_runs_deferred_total")
	if err != nil {
		return nil, err
	}

	ticks, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "satmap_ticks_total",
		Help: "Number of animation ticks processed.",
	}), "satmap_ticks_total")
	if err != nil {
		return nil, err
	}

	tickDurations, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "satmap_tick_duration_seconds",
		Help:    "Time spent rendering one animation tick.",
		Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
	}), "satmap_tick_duration_seconds")
	if err != nil {
		return nil, err
	}

	markers, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "satmap_markers_total",
		Help: "Satellite markers considered per tick, labeled by outcome (drawn, skipped).",
	}, []string{"outcome"}), "satmap_markers_total")
	if err != nil {
		return nil, err
	}

	renderErrors, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "satmap_render_errors_total",
		Help: "Rendering errors, labeled by kind.",
	}, []string{"kind"}), "satmap_render_errors_total")
	if err != nil {
		return nil, err
	}

	running, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "satmap_run_active",
		Help: "1 while an animation run is in progress.",
	}), "satmap_run_active")
	if err != nil {
		return nil, err
	}

	requests, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "satmap_grpc_requests_total",
		Help: "Total number of handled gRPC calls, labeled by service, method, and gRPC status code.",
	}, []string{"service", "method", "code"}), "satmap_grpc_requests_total")
	if err != nil {
		return nil, err
	}

	return &AnimatorCollector{
		gatherer:      gatherer,
		RunsStarted:   started,
		RunsFinished:  finished,
		RunsDeferred:  deferred,
		Ticks:         ticks,
		TickDurations: tickDurations,
		Markers:       markers,
		RenderErrors:  renderErrors,
		Running:       running,
		RPCRequests:   requests,
	}, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *AnimatorCollector) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if c != nil && c.gatherer != nil {
		gatherer = c.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func (c *AnimatorCollector) RunStarted() {
	if c == nil {
		return
	}
	c.RunsStarted.Inc()
	c.Running.Set(1)
}

func (c *AnimatorCollector) RunFinished(reason string) {
	if c == nil {
		return
	}
	c.RunsFinished.WithLabelValues(reason).Inc()
	c.Running.Set(0)
}

func (c *AnimatorCollector) RunDeferred() {
	if c == nil {
		return
	}
	c.RunsDeferred.Inc()
}

// TickObserved records one processed tick and how long it took to render.
func (c *AnimatorCollector) TickObserved(d time.Duration) {
	if c == nil {
		return
	}
	c.Ticks.Inc()
	c.TickDurations.Observe(d.Seconds())
}

func (c *AnimatorCollector) MarkerDrawn() {
	if c == nil {
		return
	}
	c.Markers.WithLabelValues("drawn").Inc()
}

func (c *AnimatorCollector) MarkerSkipped() {
	if c == nil {
		return
	}
	c.Markers.WithLabelValues("skipped").Inc()
}

func (c *AnimatorCollector) RenderError(kind string) {
	if c == nil {
		return
	}
	c.RenderErrors.WithLabelValues(kind).Inc()
}

// UnaryServerInterceptor records request counts for unary RPCs.
func (c *AnimatorCollector) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		resp, err := handler(ctx, req)
		if c == nil || c.RPCRequests == nil {
			return resp, err
		}

		fullMethod := ""
		if info != nil {
			fullMethod = info.FullMethod
		}
		service, method := SplitMethod(fullMethod)
		c.RPCRequests.WithLabelValues(service, method, status.Code(err).String()).Inc()
		return resp, err
	}
}

// SplitMethod parses a fully-qualified gRPC method name into service and method
// components. It tolerates empty strings and partial paths, returning
// "unknown"/"unknown" when parsing fails.
func SplitMethod(fullMethod string) (string, string) {
	if fullMethod == "" {
		return "unknown", "unknown"
	}
	fullMethod = strings.TrimPrefix(fullMethod, "/")
	parts := strings.Split(fullMethod, "/")
	if len(parts) < 2 {
		return "unknown", "unknown"
	}
	service := parts[len(parts)-2]
	method := parts[len(parts)-1]
	if dot := strings.LastIndex(service, "."); dot >= 0 && dot+1 < len(service) {
		service = service[dot+1:]
	}
	if service == "" {
		service = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	return service, method
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
