// Package metrics holds the Prometheus collectors of the service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "quoteai"

var (
	// SuggestRequestsTotal counts Analyze calls by terminal outcome:
	// rejected, hit, generated, race_lost, degraded, failed.
	SuggestRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "suggest_requests_total",
			Help:      "Suggestion requests by outcome.",
		},
		[]string{"outcome"},
	)

	// CacheOperationsTotal counts store calls by operation and result.
	CacheOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_operations_total",
			Help:      "Suggestion cache operations by operation and result.",
		},
		[]string{"op", "result"},
	)

	ModelCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "model_call_duration_seconds",
			Help:      "Structured generation call latency in seconds.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
		},
		[]string{"status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds.",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"path", "method", "status"},
	)
)

// Handler exposes the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// pathLabel returns the route pattern when the router provides one, so
// labels stay bounded.
type pathLabel func(r *http.Request) string

// Middleware records request latency. label maps a request to a bounded path
// label; nil uses the raw URL path.
func Middleware(label pathLabel) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rec, r)

			path := r.URL.Path
			if label != nil {
				if l := label(r); l != "" {
					path = l
				}
			}
			HTTPRequestDuration.
				WithLabelValues(path, r.Method, strconv.Itoa(rec.statusCode)).
				Observe(time.Since(start).Seconds())
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}
