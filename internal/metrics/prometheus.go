package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
)

// Errors returned by the Prometheus exporter.
var (
	// ErrExporterRunning is returned when Start is called twice.
	ErrExporterRunning = errors.New("metrics: prometheus exporter already running")
)

// PrometheusExporter exposes load test metrics in Prometheus format.
// The exporter is optional; when no listen address is configured the
// collector alone carries all statistics.
type PrometheusExporter struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	skippedTotal    prometheus.Counter
	activeUsers     prometheus.Gauge

	mu      sync.Mutex
	server  *http.Server
	running bool
}

// NewPrometheusExporter creates an exporter with its own registry.
func NewPrometheusExporter() *PrometheusExporter {
	registry := prometheus.NewRegistry()

	e := &PrometheusExporter{
		registry: registry,
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "loadgen",
			Name:      "requests_total",
			Help:      "Portal requests by endpoint and outcome class.",
		}, []string{"endpoint", "class"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "loadgen",
			Name:      "request_duration_seconds",
			Help:      "Portal request latency by endpoint.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
		skippedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "loadgen",
			Name:      "skipped_actions_total",
			Help:      "Actions skipped because preconditions were unmet.",
		}),
		activeUsers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "loadgen",
			Name:      "active_users",
			Help:      "Currently running virtual users.",
		}),
	}

	registry.MustRegister(e.requestsTotal, e.requestDuration, e.skippedTotal, e.activeUsers)
	return e
}

// Record records one action result.
func (e *PrometheusExporter) Record(result Result) {
	if result.Class == ClassSkipped {
		e.skippedTotal.Inc()
		return
	}
	e.requestsTotal.WithLabelValues(result.Endpoint, string(result.Class)).Inc()
	e.requestDuration.WithLabelValues(result.Endpoint).Observe(result.Latency.Seconds())
}

// SetActiveUsers updates the active virtual user gauge.
func (e *PrometheusExporter) SetActiveUsers(n int) {
	e.activeUsers.Set(float64(n))
}

// Start serves /metrics on the given address.
func (e *PrometheusExporter) Start(addr string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		return ErrExporterRunning
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{}))

	e.server = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	e.running = true

	go func() {
		if err := e.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Printf("metrics: prometheus listener error: %v\n", err)
		}
	}()

	return nil
}

// Stop shuts down the metrics listener.
func (e *PrometheusExporter) Stop(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.running {
		return nil
	}
	e.running = false
	return e.server.Shutdown(ctx)
}

// Gather collects the current metric families, primarily for tests.
func (e *PrometheusExporter) Gather() ([]*dto.MetricFamily, error) {
	return e.registry.Gather()
}
