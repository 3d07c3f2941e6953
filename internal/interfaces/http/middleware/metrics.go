// Package middleware provides HTTP middleware for the tenant core API.
package middleware

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tenantcore/backend/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// HTTPMetricsConfig holds configuration for HTTP metrics middleware.
type HTTPMetricsConfig struct {
	// MeterProvider is the OpenTelemetry meter provider.
	MeterProvider *telemetry.MeterProvider
	// Enabled controls whether metrics collection is active.
	Enabled bool
}

// DefaultHTTPMetricsConfig returns default HTTP metrics configuration.
func DefaultHTTPMetricsConfig() HTTPMetricsConfig {
	return HTTPMetricsConfig{Enabled: true}
}

type httpMetrics struct {
	requestTotal    *telemetry.Counter
	requestDuration *telemetry.DurationHistogram
	requestSize     metric.Int64Histogram
	responseSize    metric.Int64Histogram
	activeRequests  metric.Int64UpDownCounter
}

var (
	attrMethod   = attribute.Key("http.request.method")
	attrRoute    = attribute.Key("http.route")
	attrStatus   = attribute.Key("http.response.status_code")
	attrTenantID = attribute.Key("tenant.id")
)

var (
	latencyBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}
	sizeBuckets    = []float64{256, 1024, 4096, 16384, 65536, 262144, 1048576}
)

func newHTTPMetrics(meter metric.Meter) (*httpMetrics, error) {
	m := &httpMetrics{}
	var err error

	if m.requestTotal, err = telemetry.NewCounter(meter,
		"http_server_request_total", "Total number of HTTP requests", "{request}"); err != nil {
		return nil, err
	}
	if m.requestDuration, err = telemetry.NewDurationHistogram(meter,
		"http_server_request_duration_seconds", "HTTP request latency", latencyBuckets); err != nil {
		return nil, err
	}
	if m.requestSize, err = meter.Int64Histogram("http_server_request_size_bytes",
		metric.WithDescription("HTTP request body size"),
		metric.WithUnit("By"),
		metric.WithExplicitBucketBoundaries(sizeBuckets...)); err != nil {
		return nil, err
	}
	if m.responseSize, err = meter.Int64Histogram("http_server_response_size_bytes",
		metric.WithDescription("HTTP response body size"),
		metric.WithUnit("By"),
		metric.WithExplicitBucketBoundaries(sizeBuckets...)); err != nil {
		return nil, err
	}
	if m.activeRequests, err = meter.Int64UpDownCounter("http_server_active_requests",
		metric.WithDescription("Number of in-flight HTTP requests"),
		metric.WithUnit("{request}")); err != nil {
		return nil, err
	}
	return m, nil
}

// HTTPMetrics returns a Gin middleware that collects request count, latency,
// body sizes and in-flight requests. The request counter carries the bound
// tenant when the route resolved one.
func HTTPMetrics(cfg HTTPMetricsConfig) gin.HandlerFunc {
	if !cfg.Enabled || cfg.MeterProvider == nil || !cfg.MeterProvider.IsEnabled() {
		return passThrough
	}
	return HTTPMetricsWithMeter(cfg.MeterProvider.Meter("http.server"), true)
}

// HTTPMetricsWithMeter returns HTTP metrics middleware using an existing meter.
func HTTPMetricsWithMeter(meter metric.Meter, enabled bool) gin.HandlerFunc {
	if !enabled {
		return passThrough
	}
	metrics, err := newHTTPMetrics(meter)
	if err != nil {
		return passThrough
	}

	return func(c *gin.Context) {
		ctx := c.Request.Context()
		start := time.Now()
		requestSize := getRequestSize(c)

		metrics.activeRequests.Add(ctx, 1)
		c.Next()
		metrics.activeRequests.Add(ctx, -1)

		metrics.record(ctx, requestSample{
			method:       c.Request.Method,
			route:        getRoutePattern(c),
			status:       c.Writer.Status(),
			tenantID:     c.GetString(TenantIDKey),
			duration:     time.Since(start),
			requestSize:  requestSize,
			responseSize: c.Writer.Size(),
		})
	}
}

type requestSample struct {
	method       string
	route        string
	status       int
	tenantID     string
	duration     time.Duration
	requestSize  int64
	responseSize int
}

func (m *httpMetrics) record(ctx context.Context, s requestSample) {
	// Duration and sizes only carry method and route to bound cardinality
	base := []attribute.KeyValue{attrMethod.String(s.method), attrRoute.String(s.route)}

	counted := append([]attribute.KeyValue{attrStatus.Int(s.status)}, base...)
	if s.tenantID != "" {
		counted = append(counted, attrTenantID.String(s.tenantID))
	}
	m.requestTotal.Inc(ctx, counted...)

	m.requestDuration.Observe(ctx, s.duration, base...)
	opt := metric.WithAttributes(base...)
	if s.requestSize > 0 {
		m.requestSize.Record(ctx, s.requestSize, opt)
	}
	if s.responseSize > 0 {
		m.responseSize.Record(ctx, int64(s.responseSize), opt)
	}
}

func passThrough(c *gin.Context) {
	c.Next()
}

// getRoutePattern returns the matched route pattern rather than the raw path.
func getRoutePattern(c *gin.Context) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	return "unknown"
}

func getRequestSize(c *gin.Context) int64 {
	if cl := c.Request.ContentLength; cl > 0 {
		return cl
	}
	return 0
}

// StatusClass groups a status code into 2xx, 3xx, 4xx or 5xx.
func StatusClass(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return "2xx"
	case statusCode >= 300 && statusCode < 400:
		return "3xx"
	case statusCode >= 400 && statusCode < 500:
		return "4xx"
	case statusCode >= 500:
		return "5xx"
	default:
		return "other"
	}
}
