// Package metrics exposes the Prometheus collectors shared by the overlay
// and the grid server.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	GridFetchesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "utfgrid_fetches_total",
		Help: "Grid document fetches started, by transport",
	}, []string{"transport"})
	GridFetchFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "utfgrid_fetch_failures_total",
		Help: "Grid document fetches that failed, by transport",
	}, []string{"transport"})
	GridFetchDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "utfgrid_fetch_duration_ms",
		Help:    "Grid document fetch duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000},
	})
	StaleCallbacksTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "utfgrid_stale_callbacks_total",
		Help: "Script callbacks invoked after their registration was dropped",
	})
	GridCacheEntries = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "utfgrid_cache_entries",
		Help: "Grid documents held by the overlay cache",
	})
	ResolveTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "utfgrid_resolve_total",
		Help: "Pointer resolutions by outcome (feature, empty, miss)",
	}, []string{"outcome"})
	EventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "utfgrid_events_total",
		Help: "Events emitted by the overlay, by kind",
	}, []string{"kind"})
	ServedGridsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "utfgrid_served_total",
		Help: "Grid documents served, by cache status",
	}, []string{"cache"})
)

func init() {
	prometheus.MustRegister(GridFetchesTotal)
	prometheus.MustRegister(GridFetchFailuresTotal)
	prometheus.MustRegister(GridFetchDurationMs)
	prometheus.MustRegister(StaleCallbacksTotal)
	prometheus.MustRegister(GridCacheEntries)
	prometheus.MustRegister(ResolveTotal)
	prometheus.MustRegister(EventsTotal)
	prometheus.MustRegister(ServedGridsTotal)
}

// Handler serves the registered collectors.
func Handler() http.Handler { return promhttp.Handler() }
