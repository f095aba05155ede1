package obs

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Shared HTTP metrics.
var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	moderationTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "poi_moderation_transitions_total",
			Help: "POI moderation transitions by action and outcome.",
		},
		[]string{"action", "outcome"},
	)

	notifyDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "notify_events_dropped_total",
		Help: "Notification events dropped because the dispatch queue was full.",
	})

	notifyDeliveryErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notify_delivery_errors_total",
			Help: "Notification delivery failures by sink.",
		},
		[]string{"sink"},
	)
)

// Init registers metrics in the default registry.
func Init() {
	prometheus.MustRegister(
		httpInFlight,
		httpRequestsTotal,
		httpRequestDuration,
		moderationTransitions,
		notifyDropped,
		notifyDeliveryErrors,
	)
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveModeration records a moderation transition attempt.
func ObserveModeration(action, outcome string) {
	moderationTransitions.WithLabelValues(action, outcome).Inc()
}

// NotifyDropped records a dropped notification event.
func NotifyDropped() {
	notifyDropped.Inc()
}

// NotifyDeliveryError records a sink delivery failure.
func NotifyDeliveryError(sink string) {
	notifyDeliveryErrors.WithLabelValues(sink).Inc()
}

// Instrument wraps an http.Handler with RPS/latency/in-flight measurement.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		method := r.Method

		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: 200}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpInFlight.Dec()
	})
}

// statusWriter captures the response code for instrumentation.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
