package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "timegrid_http_requests_total",
			Help: "HTTP requests by method, route and status code.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "timegrid_http_request_duration_seconds",
			Help: "HTTP request latency by route. Synchronous solves dominate the upper buckets.",
			// Solves run for up to the engine deadline, far past DefBuckets.
			Buckets: []float64{.005, .025, .1, .5, 1, 5, 15, 30, 60, 120, 300},
		},
		[]string{"method", "route"},
	)

	solvesInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "timegrid_http_solves_in_flight",
		Help: "Synchronous solve requests currently waiting on the engine.",
	})

	rateLimited = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "timegrid_http_rate_limited_total",
		Help: "Solve requests rejected with 429.",
	})
)

func init() {
	prometheus.MustRegister(httpRequests, httpDuration, solvesInFlight, rateLimited)
}

// metricsMiddleware records one sample per request, labelled by chi route
// pattern so that run IDs do not become label values.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

func metricsHandler() http.Handler {
	return promhttp.Handler()
}
