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
	AttemptsStartedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "exam_attempts_started_total",
			Help: "Total number of exam attempts started",
		},
	)

	AttemptsSubmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exam_attempts_submitted_total",
			Help: "Total number of exam attempts reaching a terminal submission",
		},
		[]string{"status", "forced"},
	)

	ViolationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exam_violations_total",
			Help: "Total number of security violations reported",
		},
		[]string{"type"},
	)

	AutoScoreHistogram = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "exam_auto_score",
			Help:    "Distribution of auto scores at submission",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method", "status"},
	)
)

// RequestDuration observes handler latency labeled by the matched route
// pattern, so parameterized paths do not explode cardinality.
func RequestDuration(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		path := chi.RouteContext(r.Context()).RoutePattern()
		if path == "" {
			path = "unmatched"
		}
		APIRequestDuration.WithLabelValues(path, r.Method, strconv.Itoa(ww.Status())).
			Observe(time.Since(start).Seconds())
	})
}
