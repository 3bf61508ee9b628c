// Package metrics provides Prometheus instrumentation for the chore engine.
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
	// ChoreEventsTotal counts ledger events by kind and outcome
	// (applied, ignored, error).
	ChoreEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chore_events_total",
		Help: "Total chore ledger events consumed",
	}, []string{"event", "outcome"})

	// DealsTotal counts applied deals by resulting snapshot status.
	DealsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chore_deals_total",
		Help: "Total deals applied to snapshots",
	}, []string{"status"})

	// PausesTotal counts pause triggers (over-fill, over-cancel,
	// fill-after-DOD past policy).
	PausesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chore_plan_pauses_total",
		Help: "Times the execution plan was paused for human intervention",
	})

	// PlanPaused is 1 while the plan is paused.
	PlanPaused = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chore_plan_paused",
		Help: "Whether the execution plan is currently paused",
	})

	// SweepCancelsTotal counts cancels issued by the residual sweep.
	SweepCancelsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chore_sweep_cancels_total",
		Help: "Cancel requests issued by the expired-chore sweep",
	})

	// OpenChores tracks snapshots in a non-terminal status.
	OpenChores = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chore_open_snapshots",
		Help: "Number of snapshots in a non-terminal status",
	})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chore_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chore_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chore_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Use the route pattern for path label to avoid high cardinality.
		path := r.URL.Path
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
