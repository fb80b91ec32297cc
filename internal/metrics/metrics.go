// Package metrics holds greeny's Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "greeny_build_info",
			Help: "Build information of the greeny service",
		},
		[]string{"version", "commit"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "greeny_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "greeny_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	PipelineStageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "greeny_pipeline_stage_duration_seconds",
			Help:    "Duration of each answering pipeline stage",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"stage"},
	)

	PipelineAnswersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "greeny_pipeline_answers_total",
			Help: "Answers produced, by payload type and outcome",
		},
		[]string{"data_type", "outcome"},
	)

	QueryExecutionFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "greeny_query_execution_failures_total",
			Help: "Generated queries that failed to execute",
		},
	)

	LLMRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "greeny_llm_requests_total",
			Help: "Completion attempts sent to the language model provider",
		},
		[]string{"provider", "result"},
	)
)

// Stage names used as the "stage" label.
const (
	StageDescribe   = "describe"
	StageSynthesize = "synthesize"
	StageExecute    = "execute"
	StageCompose    = "compose"
)

// Outcome labels for PipelineAnswersTotal.
const (
	OutcomeAnswered = "answered"
	OutcomeDegraded = "degraded"
	OutcomeFallback = "fallback"
)

// ObserveStage records how long a pipeline stage took.
func ObserveStage(stage string, d time.Duration) {
	PipelineStageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// Middleware returns a chi middleware that records HTTP metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		// Route patterns keep label cardinality bounded; ids stay out of labels.
		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		HTTPRequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
		HTTPRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}
