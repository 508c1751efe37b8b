// Package metrics defines the Prometheus metric collectors used across the
// percolator and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the percolator.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	RegisteredQueries    prometheus.Gauge
	MatchesTotal         *prometheus.CounterVec
	MatchLatency         prometheus.Histogram
	CandidatesPerDoc     prometheus.Histogram
	MatchesPerDoc        prometheus.Histogram
	QueryErrorsTotal     prometheus.Counter
	DocumentsConsumed    *prometheus.CounterVec
	AlertsPublished      *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		RegisteredQueries: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "registered_queries",
				Help: "Number of queries currently registered with the monitor.",
			},
		),
		MatchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "document_matches_total",
				Help: "Total match calls by outcome (matched, zero_match, partial, error).",
			},
			[]string{"outcome"},
		),
		MatchLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "match_latency_seconds",
				Help:    "Latency of a full document match call in seconds.",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
		),
		CandidatesPerDoc: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "candidates_per_document",
				Help:    "Number of candidate queries selected by presearch per document.",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250, 500, 1000},
			},
		),
		MatchesPerDoc: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "matches_per_document",
				Help:    "Number of queries confirmed as matches per document.",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100},
			},
		),
		QueryErrorsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "query_evaluation_errors_total",
				Help: "Total per-query evaluation failures isolated during match calls.",
			},
		),
		DocumentsConsumed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "documents_consumed_total",
				Help: "Documents consumed from the ingest topic by status.",
			},
			[]string{"status"},
		),
		AlertsPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "alerts_published_total",
				Help: "Alerts published to the alert topic by status (sent, suppressed, error).",
			},
			[]string{"status"},
		),
	}

	prometheus.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.RegisteredQueries,
		m.MatchesTotal,
		m.MatchLatency,
		m.CandidatesPerDoc,
		m.MatchesPerDoc,
		m.QueryErrorsTotal,
		m.DocumentsConsumed,
		m.AlertsPublished,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
