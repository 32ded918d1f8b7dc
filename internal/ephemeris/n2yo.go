package ephemeris

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/signalsfoundry/satmap/internal/fetch"
	"github.com/signalsfoundry/satmap/internal/logging"
	"github.com/signalsfoundry/satmap/internal/observability"
	"github.com/signalsfoundry/satmap/model"
	"golang.org/x/time/rate"
)

// DefaultN2YOBaseURL is the public N2YO REST root.
const DefaultN2YOBaseURL = "https://api.n2yo.com/rest/v1/satellite"

// N2YOConfig configures the position API client.
type N2YOConfig struct {
	BaseURL string
	APIKey  string
	// RequestsPerSecond limits outbound calls; zero disables limiting.
	RequestsPerSecond float64
	Burst             int

	Logger  logging.Logger
	Metrics *observability.FetchCollector
}

// N2YO fetches predicted positions from an N2YO-compatible API.
type N2YO struct {
	client  *fetch.Client
	base    string
	apiKey  string
	limiter *rate.Limiter
	log     logging.Logger
	metrics *observability.FetchCollector
}

func NewN2YO(client *fetch.Client, cfg N2YOConfig) *N2YO {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultN2YOBaseURL
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Noop()
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RequestsPerSecond > 0 {
		if cfg.Burst <= 0 {
			cfg.Burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst)
	}
	return &N2YO{
		client:  client,
		base:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		limiter: limiter,
		log:     cfg.Logger,
		metrics: cfg.Metrics,
	}
}

type n2yoResponse struct {
	Info struct {
		SatName           string `json:"satname"`
		SatID             int    `json:"satid"`
		TransactionsCount int    `json:"transactionscount"`
	} `json:"info"`
	Positions []json.RawMessage `json:"positions"`
	Error     string            `json:"error"`
}

type n2yoPosition struct {
	SatLatitude  *float64 `json:"satlatitude"`
	SatLongitude *float64 `json:"satlongitude"`
	SatAltitude  float64  `json:"sataltitude"`
	Azimuth      float64  `json:"azimuth"`
	Elevation    float64  `json:"elevation"`
	RA           float64  `json:"ra"`
	Dec          float64  `json:"dec"`
	Timestamp    int64    `json:"timestamp"`
	Eclipsed     bool     `json:"eclipsed"`
}

// URL builds the positions request for one satellite.
func (n *N2YO) URL(satID int, o model.ObserverConfig) string {
	return fmt.Sprintf("%s/positions/%d/%s/%s/%s/%d/&apiKey=%s",
		n.base, satID,
		formatFloat(o.Latitude), formatFloat(o.Longitude), formatFloat(o.Elevation),
		o.WindowSeconds(), n.apiKey)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func (n *N2YO) Positions(ctx context.Context, satID int, observer model.ObserverConfig) (model.SatelliteSeries, error) {
	if err := n.limiter.Wait(ctx); err != nil {
		return model.SatelliteSeries{}, fmt.Errorf("rate limit: %w", err)
	}

	var resp n2yoResponse
	if err := n.client.GetJSON(ctx, "n2yo", n.URL(satID, observer), &resp); err != nil {
		return model.SatelliteSeries{}, err
	}
	if resp.Error != "" {
		return model.SatelliteSeries{}, fmt.Errorf("%w: %s", ErrUpstream, resp.Error)
	}

	id := resp.Info.SatID
	if id == 0 {
		id = satID
	}
	series := model.SatelliteSeries{
		Info: model.SatelliteInfo{ID: id, Name: DisplayName(resp.Info.SatName, id)},
	}
	// A rejected entry keeps its slot without coordinates so every series
	// stays aligned on the same per-second offsets.
	series.Positions = make([]model.PositionSample, len(resp.Positions))
	dropped := 0
	for i, raw := range resp.Positions {
		sample, ok := decodeSample(raw)
		if !ok {
			dropped++
		}
		sample.Offset = time.Duration(i) * time.Second
		series.Positions[i] = sample
	}
	if dropped > 0 {
		n.metrics.AddDroppedSamples(dropped)
		n.log.Warn(ctx, "dropped malformed position samples",
			logging.Int("sat_id", id),
			logging.Int("dropped", dropped),
		)
	}
	n.log.Debug(ctx, "positions received",
		logging.Int("sat_id", id),
		logging.Int("samples", len(series.Positions)),
		logging.Int("transactions", resp.Info.TransactionsCount),
	)
	return series, nil
}

// decodeSample converts one API position. Absent coordinates are kept as
// missing. Unparsable entries and out-of-range coordinates are rejected;
// the returned sample then carries no coordinates.
func decodeSample(raw json.RawMessage) (model.PositionSample, bool) {
	var p n2yoPosition
	if err := json.Unmarshal(raw, &p); err != nil {
		return model.PositionSample{}, false
	}
	if p.SatLatitude != nil && (*p.SatLatitude < -90 || *p.SatLatitude > 90) {
		return model.PositionSample{}, false
	}
	if p.SatLongitude != nil && (*p.SatLongitude < -180 || *p.SatLongitude > 180) {
		return model.PositionSample{}, false
	}
	s := model.PositionSample{
		Longitude: p.SatLongitude,
		Latitude:  p.SatLatitude,
		Altitude:  p.SatAltitude,
		Azimuth:   p.Azimuth,
		Elevation: p.Elevation,
		Eclipsed:  p.Eclipsed,
	}
	if p.Timestamp > 0 {
		s.Timestamp = time.Unix(p.Timestamp, 0).UTC()
	}
	return s, true
}
