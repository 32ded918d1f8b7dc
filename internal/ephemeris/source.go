// Package ephemeris produces satellite position series for an observer,
// either from a remote position API or by local SGP4 propagation.
package ephemeris

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/signalsfoundry/satmap/core"
	"github.com/signalsfoundry/satmap/internal/logging"
	"github.com/signalsfoundry/satmap/internal/observability"
	"github.com/signalsfoundry/satmap/model"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrNoSatellites is returned by FetchAll for an empty id list.
	ErrNoSatellites = errors.New("no satellites requested")
	// ErrUpstream wraps error payloads returned by a position API.
	ErrUpstream = errors.New("position API error")
)

// DefaultConcurrency bounds the number of in-flight requests in FetchAll.
const DefaultConcurrency = 4

// Source returns the position series of one satellite over the observer's
// window, one sample per second.
type Source interface {
	Positions(ctx context.Context, satID int, observer model.ObserverConfig) (model.SatelliteSeries, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, satID int, observer model.ObserverConfig) (model.SatelliteSeries, error)

func (f SourceFunc) Positions(ctx context.Context, satID int, observer model.ObserverConfig) (model.SatelliteSeries, error) {
	return f(ctx, satID, observer)
}

// FetchAll requests every satellite concurrently and returns the series in
// the order of ids. The first failure cancels the remaining requests and no
// partial result is returned.
func FetchAll(ctx context.Context, src Source, ids []int, observer model.ObserverConfig, limit int) ([]model.SatelliteSeries, error) {
	if len(ids) == 0 {
		return nil, ErrNoSatellites
	}
	if err := observer.Validate(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultConcurrency
	}

	ctx, span := observability.StartSpan(ctx, "ephemeris.FetchAll",
		attribute.Int("satellites", len(ids)),
		attribute.Int("window_seconds", observer.WindowSeconds()),
	)
	out := make([]model.SatelliteSeries, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, id := range ids {
		g.Go(func() error {
			series, err := src.Positions(gctx, id, observer)
			if err != nil {
				return fmt.Errorf("satellite %d: %w", id, err)
			}
			out[i] = series
			return nil
		})
	}
	err := g.Wait()
	observability.EndSpan(span, err)
	if err != nil {
		return nil, err
	}

	logging.LoggerFromContext(ctx).Debug(ctx, "positions fetched",
		logging.Int("satellites", len(ids)),
		logging.Int("window_seconds", observer.WindowSeconds()),
	)
	return out, nil
}

// DisplayName makes sure a satellite name carries its identifier. Markers
// are labelled with the ASCII digits of the name (core.SatelliteID), so names
// without any ("SPACE STATION") get the catalog number appended.
func DisplayName(name string, id int) string {
	name = strings.TrimSpace(name)
	if _, err := core.SatelliteID(name); err == nil {
		return name
	}
	if name == "" {
		return strconv.Itoa(id)
	}
	return name + " " + strconv.Itoa(id)
}
