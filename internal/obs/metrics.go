// Package obs holds the prometheus metrics for the LPR service.
package obs

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "lpr_http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lpr_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lpr_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	verifyOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lpr_verify_outcomes_total",
			Help: "Verification outcomes by reason code.",
		},
		[]string{"reason"},
	)

	tokensIssued = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "lpr_tokens_issued_total",
		Help: "Capability tokens issued.",
	})

	tokensRevoked = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lpr_tokens_revoked_total",
			Help: "Revoke calls, split by whether they were duplicates.",
		},
		[]string{"duplicate"},
	)
)

var registerOnce sync.Once

// Init registers the metrics in the default registry. Safe to call more
// than once.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpInFlight, httpRequestsTotal, httpRequestDuration,
			verifyOutcomes, tokensIssued, tokensRevoked,
		)
	})
}

// Handler serves the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

func VerifyOutcome(reason string) {
	verifyOutcomes.WithLabelValues(reason).Inc()
}

func TokenIssued() {
	tokensIssued.Inc()
}

func TokenRevoked(duplicate bool) {
	tokensRevoked.WithLabelValues(strconv.FormatBool(duplicate)).Inc()
}

// Instrument wraps a handler with RPS/latency/in-flight measurements.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)
		httpRequestDuration.WithLabelValues(r.Method, r.URL.Path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
		httpInFlight.Dec()
	})
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
