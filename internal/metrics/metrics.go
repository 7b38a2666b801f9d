package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stride_http_requests_total",
			Help: "Total HTTP requests by method, path, and status",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stride_http_request_duration_seconds",
			Help:    "HTTP request latency distribution",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	remindersArmed = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "stride_reminders_armed",
			Help: "Timers currently armed in the scheduler registry",
		},
	)

	remindersFired = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stride_reminders_fired_total",
			Help: "Reminder occurrences dispatched, by category",
		},
		[]string{"category"},
	)

	remindersMissed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stride_reminders_missed_total",
			Help: "One-off reminders found overdue and marked missed",
		},
	)

	deliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stride_deliveries_total",
			Help: "Channel delivery attempts by channel and outcome",
		},
		[]string{"channel", "outcome"},
	)

	catchUpSteps = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "stride_catch_up_steps",
			Help:    "Occurrences skipped per catch-up advance",
			Buckets: []float64{1, 2, 5, 10, 30, 90, 365, 1000},
		},
	)

	rateLimitRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stride_rate_limit_rejections_total",
			Help: "Requests rejected by rate limiter",
		},
		[]string{"owner_id"},
	)

	idempotencyHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stride_idempotency_hits_total",
			Help: "Create requests served from idempotency cache",
		},
	)
)

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordRequest records HTTP request metrics
func RecordRequest(method, path string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// SetArmed sets the armed-timer gauge
func SetArmed(count int) {
	remindersArmed.Set(float64(count))
}

// RecordFired records a dispatched reminder occurrence
func RecordFired(category string) {
	remindersFired.WithLabelValues(category).Inc()
}

// RecordMissed records an overdue one-off marked missed
func RecordMissed() {
	remindersMissed.Inc()
}

// RecordDelivery records one channel delivery attempt
func RecordDelivery(channel, outcome string) {
	deliveries.WithLabelValues(channel, outcome).Inc()
}

// RecordCatchUp records how many occurrences a catch-up advance skipped
func RecordCatchUp(steps int) {
	if steps > 0 {
		catchUpSteps.Observe(float64(steps))
	}
}

// RecordRateLimitRejection records a rate limit rejection
func RecordRateLimitRejection(ownerID string) {
	rateLimitRejections.WithLabelValues(ownerID).Inc()
}

// RecordIdempotencyHit records a cache hit for idempotency
func RecordIdempotencyHit() {
	idempotencyHits.Inc()
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush forwards to the underlying writer so streaming responses keep
// working behind the middleware.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Middleware returns HTTP middleware that records request metrics
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		RecordRequest(r.Method, r.URL.Path, wrapped.status, time.Since(start))
	})
}
