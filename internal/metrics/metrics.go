// Package metrics provides Prometheus metrics for the drivelens server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drivelens_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	previewsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drivelens_previews_total",
			Help: "Preview resolutions by strategy and outcome",
		},
		[]string{"strategy", "outcome"},
	)

	previewDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "drivelens_preview_duration_seconds",
			Help:    "Time from beginPreview to a terminal state",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"strategy"},
	)

	previewStaleResults = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "drivelens_preview_stale_results_total",
			Help: "Preview results discarded because a newer preview was started",
		},
	)

	resourcesLive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "drivelens_resources_live",
			Help: "Revocable preview resources currently allocated",
		},
	)

	listingFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drivelens_listing_fetches_total",
			Help: "Folder listing page fetches",
		},
		[]string{"view", "status"},
	)

	mutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drivelens_mutations_total",
			Help: "Rename/move/delete/share requests",
		},
		[]string{"op", "status"},
	)

	remoteRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drivelens_remote_requests_total",
			Help: "Requests issued to the remote file store",
		},
		[]string{"op", "status"},
	)

	sessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "drivelens_sessions_active",
			Help: "Browsing sessions currently held in memory",
		},
	)

	eventSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "drivelens_event_subscribers",
			Help: "Connected session event subscribers",
		},
	)
)

func RecordPreview(strategy, outcome string, d time.Duration) {
	previewsTotal.WithLabelValues(strategy, outcome).Inc()
	previewDuration.WithLabelValues(strategy).Observe(d.Seconds())
}

func RecordStalePreview() {
	previewStaleResults.Inc()
}

func ResourceAllocated() {
	resourcesLive.Inc()
}

func ResourceReleased() {
	resourcesLive.Dec()
}

func RecordListingFetch(view, status string) {
	listingFetchesTotal.WithLabelValues(view, status).Inc()
}

func RecordMutation(op, status string) {
	mutationsTotal.WithLabelValues(op, status).Inc()
}

func RecordRemoteRequest(op string, status int) {
	remoteRequestsTotal.WithLabelValues(op, strconv.Itoa(status)).Inc()
}

func SetSessionsActive(n int) {
	sessionsActive.Set(float64(n))
}

func AddEventSubscribers(delta int) {
	eventSubscribers.Add(float64(delta))
}

// Middleware counts requests by chi route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(ww.Status())).Inc()
	})
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
