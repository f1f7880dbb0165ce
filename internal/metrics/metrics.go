package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the API
	Registry = prometheus.NewRegistry()
	// HTTPRequests counts requests by method, path, and status
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	// HTTPDuration records request durations in seconds
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)

	// OptimizeDuration records solver wall time in seconds by stop count bucket
	OptimizeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "optimize_duration_seconds", Help: "Route optimization wall time in seconds.", Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 30, 60}},
		[]string{"provider"},
	)
	// OptimizeImprovement records percentage distance saved by refinement
	OptimizeImprovement = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "optimize_improvement_percent", Help: "Distance saved by 2-opt refinement over construction, percent.", Buckets: []float64{0, 1, 2, 5, 10, 20, 30, 50}},
	)
	// MatrixBatches counts provider matrix requests by outcome
	MatrixBatches = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "distance_matrix_batches_total", Help: "Provider distance matrix batch requests by outcome."},
		[]string{"outcome"},
	)
	// MatrixCells counts matrix cells by source (provider, cache, geometric)
	MatrixCells = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "distance_matrix_cells_total", Help: "Matrix cells resolved, by source."},
		[]string{"source"},
	)

	// WebhookDeliveries counts webhook delivery outcomes by event type and status
	WebhookDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "webhook_deliveries_total", Help: "Webhook deliveries by event type and status."},
		[]string{"event_type", "status"},
	)
	// WebhookLatency tracks webhook delivery latencies in milliseconds
	WebhookLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "webhook_delivery_latency_ms", Help: "Webhook delivery latency in ms.", Buckets: []float64{10, 50, 100, 200, 500, 1000, 2000, 5000}},
		[]string{"event_type", "status"},
	)
)

// RegisterDefault registers collectors to the default registry.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(HTTPDuration)
		Registry.MustRegister(OptimizeDuration)
		Registry.MustRegister(OptimizeImprovement)
		Registry.MustRegister(MatrixBatches)
		Registry.MustRegister(MatrixCells)
		Registry.MustRegister(WebhookDeliveries)
		Registry.MustRegister(WebhookLatency)
		// Go/process collectors on our registry
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

var regOnce sync.Once
