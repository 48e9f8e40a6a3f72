// Package metrics provides Prometheus metrics for the comparison API.
// HTTP metrics:
//   - http_request_total: Counter with method, path, and status labels
//   - http_request_duration_seconds: Histogram with method and path labels
//   - http_request_in_flight: Gauge for concurrent requests
//
// Domain metrics:
//   - medcompare_votes_total: Counter with direction and outcome labels
//   - medcompare_curations_total: Counter with operation and result labels
//   - medcompare_upstream_requests_total: Counter with upstream and result labels
//   - medcompare_store_medications / medcompare_store_comparisons: Gauges
//   - medcompare_store_evictions_total: Counter with kind label
//
// All metrics are registered with the Prometheus default registry during
// package initialization.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequestTotals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_request_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)

	HTTPRequestInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_request_in_flight",
			Help: "Current in-flight requests",
		},
	)

	RateLimiterBucketsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rate_limiter_buckets_total",
			Help: "Total number of rate limiter buckets (IPs seen in last ~5 minutes)",
		},
	)

	VotesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medcompare_votes_total",
			Help: "Vote requests by direction and outcome",
		},
		[]string{"direction", "outcome"},
	)

	CurationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medcompare_curations_total",
			Help: "Curation operations by result",
		},
		[]string{"operation", "result"},
	)

	UpstreamRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medcompare_upstream_requests_total",
			Help: "Requests to the search service and vote authority",
		},
		[]string{"upstream", "result"},
	)

	StoreMedications = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "medcompare_store_medications",
			Help: "Medications held in the store",
		},
	)

	StoreComparisons = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "medcompare_store_comparisons",
			Help: "Comparisons registered in the store",
		},
	)

	StoreEvictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medcompare_store_evictions_total",
			Help: "Entries removed by store eviction",
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(HTTPRequestTotals)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(HTTPRequestInFlight)
	prometheus.MustRegister(RateLimiterBucketsTotal)
	prometheus.MustRegister(VotesTotal)
	prometheus.MustRegister(CurationsTotal)
	prometheus.MustRegister(UpstreamRequestsTotal)
	prometheus.MustRegister(StoreMedications)
	prometheus.MustRegister(StoreComparisons)
	prometheus.MustRegister(StoreEvictionsTotal)
}

// Handler serves the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveCuration counts a curation or drill-down by error kind ("ok" on success)
func ObserveCuration(operation string, err error, kind string) {
	result := "ok"
	if err != nil {
		result = kind
	}
	CurationsTotal.WithLabelValues(operation, result).Inc()
}

// ObserveUpstream counts an upstream call
func ObserveUpstream(upstream string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	UpstreamRequestsTotal.WithLabelValues(upstream, result).Inc()
}

// SetStoreSize publishes the store gauges
func SetStoreSize(medications, comparisons int) {
	StoreMedications.Set(float64(medications))
	StoreComparisons.Set(float64(comparisons))
}
