package middleware

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grabber_http_requests_total",
			Help: "Total HTTP requests handled, by method, route and status",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "grabber_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds, by method and route",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// Business metrics, updated from the controllers.
var (
	// DownloadsTotal counts orchestrated downloads by source and outcome.
	DownloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grabber_downloads_total",
			Help: "Total orchestrated downloads, by media source and result",
		},
		[]string{"source", "result"},
	)

	// FilesServed counts stored files streamed back to clients.
	FilesServed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "grabber_files_served_total",
			Help: "Total stored files served to clients",
		},
	)
)

// Metrics returns an echo middleware recording request counts and
// durations. The route template (not the raw URL) is used as the path
// label to keep cardinality bounded. Handler errors have not reached the
// central error handler when this middleware unwinds, so statusFor must
// map them to the status that handler will eventually write.
func Metrics(statusFor func(error) int) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ec echo.Context) error {
			start := time.Now()
			err := next(ec)

			path := ec.Path()
			if path == "" {
				path = "unmatched"
			}

			status := ec.Response().Status
			if err != nil {
				status = statusFor(err)
			}

			httpRequestsTotal.WithLabelValues(ec.Request().Method, path, strconv.Itoa(status)).Inc()
			httpRequestDuration.WithLabelValues(ec.Request().Method, path).Observe(time.Since(start).Seconds())

			return err
		}
	}
}
