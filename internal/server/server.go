package server

import (
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"net/http"

	"github.com/signalsfoundry/satmap/canvas"
	"github.com/signalsfoundry/satmap/core"
	"github.com/signalsfoundry/satmap/internal/ephemeris"
	"github.com/signalsfoundry/satmap/internal/logging"
	"github.com/signalsfoundry/satmap/kb"
	"github.com/signalsfoundry/satmap/model"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// Options wires a Server.
type Options struct {
	Map      *core.Map
	Animator *core.Animator
	Tracker  *Tracker
	Status   *core.StatusText
	Catalog  *kb.Catalog
	Hub      *Hub
	// Metrics is mounted at /metrics when set.
	Metrics  http.Handler
	Observer model.ObserverConfig
	Logger   logging.Logger
}

// Server serves the rendered map and the animation controls.
type Server struct {
	m        *core.Map
	anim     *core.Animator
	tracker  *Tracker
	status   *core.StatusText
	catalog  *kb.Catalog
	hub      *Hub
	metrics  http.Handler
	observer model.ObserverConfig
	log      logging.Logger
}

func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = logging.Noop()
	}
	if opts.Status == nil {
		opts.Status = &core.StatusText{}
	}
	if opts.Hub == nil {
		opts.Hub = NewHub(opts.Logger)
	}
	if opts.Catalog == nil {
		opts.Catalog = kb.NewCatalog()
	}
	return &Server{
		m:        opts.Map,
		anim:     opts.Animator,
		tracker:  opts.Tracker,
		status:   opts.Status,
		catalog:  opts.Catalog,
		hub:      opts.Hub,
		metrics:  opts.Metrics,
		observer: opts.Observer,
		log:      opts.Logger,
	}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /map.png", s.handleMap)
	mux.HandleFunc("GET /overlay.png", s.handleOverlay)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /satellites", s.handleSatellites)
	mux.HandleFunc("POST /track", s.handleTrack)
	mux.HandleFunc("POST /stop", s.handleStop)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /ws", s.hub)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics)
	}
	return mux
}

func (s *Server) handleMap(w http.ResponseWriter, r *http.Request) {
	if !s.m.Drawn() {
		writeError(w, http.StatusServiceUnavailable, "map is not ready")
		return
	}
	base, ok := s.m.Base().(*canvas.Raster)
	if !ok {
		writeError(w, http.StatusNotImplemented, "map is not rasterised")
		return
	}
	layers := []image.Image{base.Image()}
	if overlay := s.anim.Snapshot(); overlay != nil {
		layers = append(layers, overlay)
	}
	s.writePNG(w, r, canvas.Composite(layers...))
}

func (s *Server) handleOverlay(w http.ResponseWriter, r *http.Request) {
	overlay := s.anim.Snapshot()
	if overlay == nil {
		writeError(w, http.StatusNotImplemented, "overlay is not rasterised")
		return
	}
	s.writePNG(w, r, overlay)
}

func (s *Server) writePNG(w http.ResponseWriter, r *http.Request, img image.Image) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if err := png.Encode(w, img); err != nil {
		s.log.Warn(r.Context(), "failed to write PNG", logging.Err(err))
	}
}

type statusResponse struct {
	Status    string              `json:"status"`
	Loading   bool                `json:"loading"`
	MapReady  bool                `json:"map_ready"`
	Animation core.AnimationState `json:"animation"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{
		Status:    s.status.Text(),
		Loading:   s.tracker.Loading(),
		MapReady:  s.m.Drawn(),
		Animation: s.anim.State(),
	})
}

type satelliteJSON struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

func (s *Server) handleSatellites(w http.ResponseWriter, r *http.Request) {
	entries := s.catalog.List()
	out := make([]satelliteJSON, 0, len(entries))
	for _, e := range entries {
		out = append(out, satelliteJSON{ID: e.Info.ID, Name: e.Info.Name})
	}
	writeJSON(w, http.StatusOK, out)
}

type observerJSON struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Elevation *float64 `json:"elevation"`
	Duration  *int     `json:"duration"`
}

type trackRequest struct {
	Satellites []int        `json:"satellites"`
	Observer   observerJSON `json:"observer"`
}

type trackResponse struct {
	Queued    bool                `json:"queued,omitempty"`
	Animation core.AnimationState `json:"animation"`
}

// observer overlays the request's fields on the configured defaults.
func (req trackRequest) observer(defaults model.ObserverConfig) model.ObserverConfig {
	o := defaults
	if req.Observer.Latitude != nil {
		o.Latitude = *req.Observer.Latitude
	}
	if req.Observer.Longitude != nil {
		o.Longitude = *req.Observer.Longitude
	}
	if req.Observer.Elevation != nil {
		o.Elevation = *req.Observer.Elevation
	}
	if req.Observer.Duration != nil {
		o.DurationMinutes = *req.Observer.Duration
	}
	return o
}

func (s *Server) handleTrack(w http.ResponseWriter, r *http.Request) {
	var req trackRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if len(req.Satellites) == 0 {
		writeError(w, http.StatusBadRequest, ephemeris.ErrNoSatellites.Error())
		return
	}
	observer := req.observer(s.observer)
	if err := observer.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !s.m.Drawn() {
		writeError(w, http.StatusServiceUnavailable, "map is not ready")
		return
	}

	state, err := s.tracker.Track(r.Context(), req.Satellites, observer)
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, trackResponse{Animation: state})
	case errors.Is(err, core.ErrRunQueued):
		writeJSON(w, http.StatusAccepted, trackResponse{Queued: true, Animation: state})
	case errors.Is(err, core.ErrRunInProgress):
		writeError(w, http.StatusConflict, core.StatusBusy)
	case errors.Is(err, kb.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, core.ErrNoPositions), errors.Is(err, core.ErrNoSeries):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		writeError(w, http.StatusBadGateway, err.Error())
	}
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	stopped := s.anim.Stop()
	writeJSON(w, http.StatusOK, map[string]bool{"stopped": stopped})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !s.m.Drawn() {
		writeError(w, http.StatusServiceUnavailable, "map is not ready")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
