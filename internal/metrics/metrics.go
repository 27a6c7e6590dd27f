// Package metrics exposes engine and HTTP telemetry on a private Prometheus
// registry.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rendis/integra/pkg/schema"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "integra"

// Collector records compiles, integrations, samples and HTTP requests.
// A nil *Collector discards everything.
type Collector struct {
	registry *prometheus.Registry

	compiles        *prometheus.CounterVec
	integrations    *prometheus.CounterVec
	integrationTime *prometheus.HistogramVec
	samples         *prometheus.CounterVec
	runsSaved       *prometheus.CounterVec
	runsPruned      prometheus.Counter

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// NewCollector creates a collector on a fresh registry.
func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = DefaultNamespace
	}

	c := &Collector{registry: prometheus.NewRegistry()}

	c.compiles = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "expression",
			Name:      "compiles_total",
			Help:      "Expression compilations by backend and outcome",
		},
		[]string{"backend", "outcome"},
	)

	c.integrations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "quadrature",
			Name:      "integrations_total",
			Help:      "Integrations by dimension and outcome",
		},
		[]string{"dimension", "outcome"},
	)

	c.integrationTime = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "quadrature",
			Name:      "solve_duration_seconds",
			Help:      "Time taken to integrate and estimate error",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 16), // 100us to ~3s
		},
		[]string{"dimension"},
	)

	c.samples = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "samples",
			Name:      "points_total",
			Help:      "Sample points generated for rendering",
		},
		[]string{"dimension"},
	)

	c.runsSaved = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "runs_saved_total",
			Help:      "Runs written to history by source",
		},
		[]string{"source"},
	)

	c.runsPruned = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "runs_pruned_total",
			Help:      "Runs removed by retention",
		},
	)

	c.httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, path and status",
		},
		[]string{"method", "path", "status"},
	)

	c.httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "path"},
	)

	c.registry.MustRegister(
		c.compiles,
		c.integrations,
		c.integrationTime,
		c.samples,
		c.runsSaved,
		c.runsPruned,
		c.httpRequests,
		c.httpDuration,
	)
	return c
}

// Registry returns the Prometheus registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ObserveCompile records one compilation.
func (c *Collector) ObserveCompile(backend string, err error) {
	if c == nil {
		return
	}
	c.compiles.WithLabelValues(backend, outcome(err)).Inc()
}

// ObserveIntegration records one solve and its latency.
func (c *Collector) ObserveIntegration(dimension int, elapsed time.Duration, err error) {
	if c == nil {
		return
	}
	dim := strconv.Itoa(dimension)
	c.integrations.WithLabelValues(dim, outcome(err)).Inc()
	if err == nil {
		c.integrationTime.WithLabelValues(dim).Observe(elapsed.Seconds())
	}
}

// ObserveSamples records the size of a generated sample set.
func (c *Collector) ObserveSamples(dimension int, count int) {
	if c == nil {
		return
	}
	c.samples.WithLabelValues(strconv.Itoa(dimension)).Add(float64(count))
}

// ObserveRunSaved records a run written to history.
func (c *Collector) ObserveRunSaved(source string) {
	if c == nil {
		return
	}
	if source == "" {
		source = "unknown"
	}
	c.runsSaved.WithLabelValues(source).Inc()
}

// ObservePruned records runs removed by retention.
func (c *Collector) ObservePruned(count int64) {
	if c == nil || count <= 0 {
		return
	}
	c.runsPruned.Add(float64(count))
}

// InstrumentHandler wraps next with request count and latency metrics.
// Requests for /metrics itself are not recorded.
func (c *Collector) InstrumentHandler(next http.Handler) http.Handler {
	if c == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)

		path := canonicalPath(r.URL.Path)
		method := strings.ToUpper(r.Method)
		c.httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		c.httpDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	})
}

// outcome labels an error by class: ok, client_error or error.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case schema.IsClientError(err):
		return "client_error"
	}
	return "error"
}

// canonicalPath collapses path parameters so label cardinality stays bounded.
func canonicalPath(p string) string {
	parts := strings.Split(strings.Trim(p, "/"), "/")
	if len(parts) >= 3 && parts[0] == "api" && (parts[1] == "runs" || parts[1] == "presets") {
		parts[2] = ":id"
		parts = parts[:3]
	}
	return "/" + strings.Join(parts, "/")
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
