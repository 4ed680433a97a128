// Package metrics provides Prometheus instrumentation for the marketplace API.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// ListingsPublished counts listings created through publish.
	ListingsPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "listings_published_total",
			Help: "Total listings published",
		},
	)

	// ListingsSold counts available to sold transitions.
	ListingsSold = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "listings_sold_total",
			Help: "Total listings marked as sold",
		},
	)

	// ListingsDeleted counts listings removed by their seller.
	ListingsDeleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "listings_deleted_total",
			Help: "Total listings deleted",
		},
	)

	// ThreadMessages counts questions and answers posted.
	ThreadMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thread_messages_total",
			Help: "Total thread messages posted",
		},
		[]string{"kind"},
	)
)

// RecordRequest records HTTP request metrics.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordThreadMessage records a posted question or answer.
func RecordThreadMessage(kind string) {
	ThreadMessages.WithLabelValues(kind).Inc()
}
