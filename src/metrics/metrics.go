package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "restaurants_requests_total",
		Help: "Total number of HTTP requests by method and status",
	}, []string{"method", "status"})
	RequestDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "restaurants_request_duration_ms",
		Help:    "Request duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000},
	})
	SummaryRecomputeTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "restaurants_summary_recompute_total",
		Help: "Total rating summary recomputations triggered by review mutations",
	})
	SummaryRecomputeFailTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "restaurants_summary_recompute_failures_total",
		Help: "Rating summary recomputations that failed to read or write",
	})
	NeighborhoodCacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "restaurants_neighborhood_cache_hits_total",
		Help: "Total neighborhood cache hits",
	})
	NeighborhoodCacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "restaurants_neighborhood_cache_misses_total",
		Help: "Total neighborhood cache misses",
	})
)

func init() {
	prometheus.MustRegister(RequestsTotal)
	prometheus.MustRegister(RequestDurationMs)
	prometheus.MustRegister(SummaryRecomputeTotal)
	prometheus.MustRegister(SummaryRecomputeFailTotal)
	prometheus.MustRegister(NeighborhoodCacheHitsTotal)
	prometheus.MustRegister(NeighborhoodCacheMissesTotal)
}

// Handler exposes the registered collectors for scraping; mounted at
// /metrics by the main entrypoint.
func Handler() http.Handler { return promhttp.Handler() }
