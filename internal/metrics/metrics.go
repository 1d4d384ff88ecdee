// Package metrics defines the Prometheus collectors exported at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gamescout_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gamescout_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5, 10, 30},
		},
		[]string{"method", "endpoint"},
	)

	RecommendRequests = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gamescout_recommend_requests_total",
			Help: "Total recommendation requests",
		},
	)

	RecommendUnresolvedTitles = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gamescout_recommend_unresolved_titles_total",
			Help: "Input titles that did not match a catalog entry",
		},
	)

	RecommendResults = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gamescout_recommend_results",
			Help:    "Number of recommendations returned per request",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
		},
	)

	RetrievalRoutes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gamescout_retrieval_total",
			Help: "Context retrievals by route and whether any context was found",
		},
		[]string{"route", "found"},
	)

	AnswerOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gamescout_answers_total",
			Help: "Answers by outcome (answered, no_context, generation_failed)",
		},
		[]string{"outcome"},
	)

	GenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gamescout_generation_duration_seconds",
			Help:    "Text generation latency in seconds",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"provider"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	DocumentsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gamescout_documents_ingested_total",
			Help: "Reference documents ingested by source (catalog, file) and result",
		},
		[]string{"source", "result"},
	)
)
