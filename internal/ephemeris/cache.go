package ephemeris

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/signalsfoundry/satmap/internal/observability"
	"github.com/signalsfoundry/satmap/model"
)

// Cached memoises another Source for a short time. Repeated track requests
// for the same satellite and observer reuse the series instead of spending
// API transactions.
type Cached struct {
	src     Source
	cache   *expirable.LRU[string, model.SatelliteSeries]
	metrics *observability.FetchCollector
}

// NewCached wraps src with an LRU of size entries expiring after ttl.
func NewCached(src Source, size int, ttl time.Duration, metrics *observability.FetchCollector) *Cached {
	if size <= 0 {
		size = 128
	}
	return &Cached{
		src:     src,
		cache:   expirable.NewLRU[string, model.SatelliteSeries](size, nil, ttl),
		metrics: metrics,
	}
}

func cacheKey(satID int, o model.ObserverConfig) string {
	return fmt.Sprintf("%d/%g/%g/%g/%d", satID, o.Latitude, o.Longitude, o.Elevation, o.DurationMinutes)
}

func (c *Cached) Positions(ctx context.Context, satID int, observer model.ObserverConfig) (model.SatelliteSeries, error) {
	key := cacheKey(satID, observer)
	if series, ok := c.cache.Get(key); ok {
		c.metrics.ObserveCache(true)
		return series, nil
	}
	c.metrics.ObserveCache(false)

	series, err := c.src.Positions(ctx, satID, observer)
	if err != nil {
		return model.SatelliteSeries{}, err
	}
	c.cache.Add(key, series)
	return series, nil
}

// Purge drops every cached series.
func (c *Cached) Purge() { c.cache.Purge() }

// Len returns the number of cached series.
func (c *Cached) Len() int { return c.cache.Len() }
