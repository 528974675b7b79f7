// Package metrics defines Prometheus collectors for the map server.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "choromap",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "choromap",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method"})

	// Choropleth metrics
	OptionSelections = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "choromap",
		Subsystem: "choropleth",
		Name:      "option_selections_total",
		Help:      "Total display option selections",
	}, []string{"property"})

	ViewportMoves = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "choromap",
		Subsystem: "choropleth",
		Name:      "viewport_moves_total",
		Help:      "Total viewport move notifications",
	})

	PaintUpdates = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "choromap",
		Subsystem: "surface",
		Name:      "paint_updates_total",
		Help:      "Total paint property updates applied to the surface",
	}, []string{"layer"})

	SurfaceClients = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "choromap",
		Subsystem: "surface",
		Name:      "clients",
		Help:      "Connected map widget clients",
	})

	DroppedClients = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "choromap",
		Subsystem: "surface",
		Name:      "dropped_clients_total",
		Help:      "Clients disconnected because their send queue was full",
	})
)

// ObserveRequest records a finished HTTP request.
func ObserveRequest(method string, status int, seconds float64) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method).Observe(seconds)
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
