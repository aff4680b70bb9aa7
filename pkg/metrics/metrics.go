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
			Name: "bountyd_build_info",
			Help: "Build information of bountyd",
		},
		[]string{"version", "commit", "date"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bountyd_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bountyd_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bountyd_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	// Marketplace metrics
	BountiesCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bountyd_bounties_created_total",
			Help: "Total number of bounties created",
		},
	)

	ApplicationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bountyd_applications_total",
			Help: "Total number of accepted bounty applications",
		},
	)

	SubmissionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bountyd_submissions_total",
			Help: "Total number of accepted solution submissions",
		},
	)

	SettlementsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bountyd_settlements_total",
			Help: "Total number of settlement attempts",
		},
		[]string{"kind", "status"}, // kind: "complete"/"withdraw", status: "success"/"rejected"/"locked"/"transfer_failed"
	)

	SettlementDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bountyd_settlement_duration_seconds",
			Help:    "Duration of settlement operations in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"kind"},
	)

	EscrowCustody = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bountyd_escrow_custody",
			Help: "Total amount currently held in escrow custody",
		},
	)
)

// Middleware returns a chi middleware that records HTTP metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		HTTPRequestsInFlight.Inc()
		defer HTTPRequestsInFlight.Dec()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		// Use the route pattern if available, otherwise use the path
		path := chi.RouteContext(r.Context()).RoutePattern()
		if path == "" {
			path = r.URL.Path
		}

		status := strconv.Itoa(ww.Status())
		duration := time.Since(start).Seconds()

		HTTPRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// RecordSettlement records one settlement attempt.
func RecordSettlement(kind, status string, duration time.Duration) {
	SettlementsTotal.WithLabelValues(kind, status).Inc()
	if status == "success" {
		SettlementDuration.WithLabelValues(kind).Observe(duration.Seconds())
	}
}
