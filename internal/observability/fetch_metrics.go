package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// FetchCollector exposes metrics for geometry and ephemeris acquisition.
type FetchCollector struct {
	gatherer prometheus.Gatherer

	Requests        *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	CacheLookups    *prometheus.CounterVec
	SamplesDropped  prometheus.Counter
}

// NewFetchCollector registers fetch metrics against the provided registerer.
func NewFetchCollector(reg prometheus.Registerer) (*FetchCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	requests, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "satmap_fetch_requests_total",
		Help: "Outbound data requests, labeled by source and outcome.",
	}, []string{"source", "outcome"}), "satmap_fetch_requests_total")
	if err != nil {
		return nil, err
	}

	durations, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "satmap_fetch_duration_seconds",
		Help:    "Latency of outbound data requests in seconds.",
		Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}, []string{"source"}), "satmap_fetch_duration_seconds")
	if err != nil {
		return nil, err
	}

	lookups, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "satmap_position_cache_lookups_total",
		Help: "Position cache lookups, labeled by result (hit, miss).",
	}, []string{"result"}), "satmap_position_cache_lookups_total")
	if err != nil {
		return nil, err
	}

	dropped, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "satmap_samples_dropped_total",
		Help: "Position samples discarded as malformed during decoding.",
	}), "satmap_samples_dropped_total")
	if err != nil {
		return nil, err
	}

	return &FetchCollector{
		gatherer:        gatherer,
		Requests:        requests,
		RequestDuration: durations,
		CacheLookups:    lookups,
		SamplesDropped:  dropped,
	}, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *FetchCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// ObserveFetch records one outbound request against source.
func (c *FetchCollector) ObserveFetch(source string, d time.Duration, err error) {
	if c == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	c.Requests.WithLabelValues(source, outcome).Inc()
	c.RequestDuration.WithLabelValues(source).Observe(d.Seconds())
}

// ObserveCache records a position cache lookup.
func (c *FetchCollector) ObserveCache(hit bool) {
	if c == nil {
		return
	}
	if hit {
		c.CacheLookups.WithLabelValues("hit").Inc()
		return
	}
	c.CacheLookups.WithLabelValues("miss").Inc()
}

// AddDroppedSamples increments the malformed sample counter by n.
func (c *FetchCollector) AddDroppedSamples(n int) {
	if c == nil || n <= 0 {
		return
	}
	c.SamplesDropped.Add(float64(n))
}
