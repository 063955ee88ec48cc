package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/authplane/authplane/pkg/errdefs"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Gateway round-trip metrics
	GatewayRequestsTotal   *prometheus.CounterVec
	GatewayRequestDuration *prometheus.HistogramVec
	GatewayErrorsTotal     *prometheus.CounterVec

	// Domain metrics
	SimulationsTotal        *prometheus.CounterVec
	PolicyPublishesTotal    *prometheus.CounterVec
	HierarchyAnomaliesFound *prometheus.GaugeVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authplane_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "authplane_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		HTTPResponseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "authplane_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "path"},
		),

		GatewayRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authplane_gateway_requests_total",
				Help: "Total number of identity-gateway round trips",
			},
			[]string{"operation", "status"},
		),
		GatewayRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "authplane_gateway_request_duration_seconds",
				Help:    "Identity-gateway round-trip duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		GatewayErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authplane_gateway_errors_total",
				Help: "Total number of identity-gateway errors by kind",
			},
			[]string{"operation", "kind"},
		),

		SimulationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authplane_policy_simulations_total",
				Help: "Total number of policy simulations by decision",
			},
			[]string{"decision"},
		),
		PolicyPublishesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authplane_policy_publishes_total",
				Help: "Total number of policy publish and rollback transitions",
			},
			[]string{"action", "mode"},
		),
		HierarchyAnomaliesFound: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "authplane_hierarchy_anomalies",
				Help: "Anomalies found by the most recent hierarchy scan",
			},
			[]string{"service_id", "type"},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPResponseSize,
		m.GatewayRequestsTotal,
		m.GatewayRequestDuration,
		m.GatewayErrorsTotal,
		m.SimulationsTotal,
		m.PolicyPublishesTotal,
		m.HierarchyAnomaliesFound,
	)

	return m
}

// ObserveGateway records one gateway round trip.
func (m *Metrics) ObserveGateway(operation string, duration time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
		m.GatewayErrorsTotal.WithLabelValues(operation, errdefs.KindOf(err).String()).Inc()
	}
	m.GatewayRequestsTotal.WithLabelValues(operation, status).Inc()
	m.GatewayRequestDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// responseWriter wraps http.ResponseWriter to capture status code and size
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rw, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(rw.statusCode)

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(duration)
			metrics.HTTPResponseSize.WithLabelValues(r.Method, r.URL.Path).Observe(float64(rw.bytesWritten))
		})
	}
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(mux *http.ServeMux, registry *prometheus.Registry) {
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
