// Package metrics registers the Prometheus collectors for map rebuilds and boundary fetches.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var msBuckets = []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000, 2500, 5000}

var (
	RebuildsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tqgap_rebuilds_total",
		Help: "Map rebuilds by outcome (ok, partial, invalid, error)",
	}, []string{"outcome"})
	RebuildDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "tqgap_rebuild_duration_ms",
		Help:    "Map rebuild duration in milliseconds",
		Buckets: msBuckets,
	})
	BoundaryFetchesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tqgap_boundary_fetches_total",
		Help: "Boundary fetches by outcome (ok, not_found, malformed, error)",
	}, []string{"outcome"})
	BoundaryFetchDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "tqgap_boundary_fetch_duration_ms",
		Help:    "Boundary fetch duration in milliseconds",
		Buckets: msBuckets,
	})
	CacheLookupsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tqgap_boundary_cache_lookups_total",
		Help: "Boundary cache lookups by layer and result",
	}, []string{"layer", "result"})
	DroppedBinsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tqgap_dropped_bins_total",
		Help: "Bins left out of a map because the colorscale was too short",
	})
	ActiveSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tqgap_active_sessions",
		Help: "Map sessions currently retained",
	})
)

func init() {
	prometheus.MustRegister(RebuildsTotal)
	prometheus.MustRegister(RebuildDurationMs)
	prometheus.MustRegister(BoundaryFetchesTotal)
	prometheus.MustRegister(BoundaryFetchDurationMs)
	prometheus.MustRegister(CacheLookupsTotal)
	prometheus.MustRegister(DroppedBinsTotal)
	prometheus.MustRegister(ActiveSessions)
}

// ObserveRebuild records one rebuild.
func ObserveRebuild(outcome string, d time.Duration) {
	RebuildsTotal.WithLabelValues(outcome).Inc()
	RebuildDurationMs.Observe(float64(d) / float64(time.Millisecond))
}

// ObserveFetch records one boundary fetch.
func ObserveFetch(outcome string, d time.Duration) {
	BoundaryFetchesTotal.WithLabelValues(outcome).Inc()
	BoundaryFetchDurationMs.Observe(float64(d) / float64(time.Millisecond))
}

// ObserveCacheLookup records one cache lookup. It matches boundary.LookupFunc.
func ObserveCacheLookup(layer string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	CacheLookupsTotal.WithLabelValues(layer, result).Inc()
}

// Handler exposes the default registry for scraping.
func Handler() http.Handler { return promhttp.Handler() }
