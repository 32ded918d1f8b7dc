// Package server exposes the map, the animation controls and a live frame
// feed over HTTP.
package server

import (
	"context"
	"sync/atomic"

	"github.com/signalsfoundry/satmap/core"
	"github.com/signalsfoundry/satmap/internal/ephemeris"
	"github.com/signalsfoundry/satmap/internal/logging"
	"github.com/signalsfoundry/satmap/internal/observability"
	"github.com/signalsfoundry/satmap/model"
	"go.opentelemetry.io/otel/attribute"
)

// Tracker fetches position series for a set of satellites and hands them to
// the animator.
type Tracker struct {
	source      ephemeris.Source
	anim        *core.Animator
	concurrency int
	log         logging.Logger

	loading atomic.Int32
}

func NewTracker(source ephemeris.Source, anim *core.Animator, concurrency int, log logging.Logger) *Tracker {
	if log == nil {
		log = logging.Noop()
	}
	return &Tracker{source: source, anim: anim, concurrency: concurrency, log: log}
}

// Track fetches every satellite for observer and starts a run. Fetch
// failures leave the animator untouched. The returned state is the
// animator's state after the start attempt.
func (t *Tracker) Track(ctx context.Context, ids []int, observer model.ObserverConfig) (core.AnimationState, error) {
	ctx, span := observability.StartSpan(ctx, "tracker.Track", attribute.IntSlice("satellites", ids))
	t.loading.Add(1)
	series, err := ephemeris.FetchAll(ctx, t.source, ids, observer, t.concurrency)
	t.loading.Add(-1)
	if err != nil {
		t.log.Error(ctx, "failed to fetch satellite positions",
			logging.Any("satellites", ids),
			logging.Err(err),
		)
		observability.EndSpan(span, err)
		return t.anim.State(), err
	}

	err = t.anim.Start(ctx, series)
	observability.EndSpan(span, err)
	return t.anim.State(), err
}

// Loading reports whether a position fetch is in flight.
func (t *Tracker) Loading() bool {
	return t.loading.Load() > 0
}
