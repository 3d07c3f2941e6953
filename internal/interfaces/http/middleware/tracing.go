package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracingConfig holds configuration for the tracing middleware.
type TracingConfig struct {
	// ServiceName is the name of the service for trace identification.
	ServiceName string
	// Enabled controls whether tracing is active.
	Enabled bool
	// TracerProvider overrides the global provider when set.
	TracerProvider trace.TracerProvider
}

// DefaultTracingConfig returns default tracing configuration.
func DefaultTracingConfig() TracingConfig {
	return TracingConfig{
		ServiceName: "tenantcore",
		Enabled:     true,
	}
}

// TracingWithConfig returns the otelgin server middleware. Span names follow
// "METHOD route_pattern". Pair it with SpanDecorator to attach tenancy attributes.
func TracingWithConfig(cfg TracingConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return passThrough
	}

	var opts []otelgin.Option
	if cfg.TracerProvider != nil {
		opts = append(opts, otelgin.WithTracerProvider(cfg.TracerProvider))
	}
	return otelgin.Middleware(cfg.ServiceName, opts...)
}

// SpanDecorator runs after the rest of the chain and, while the server span is
// still open, attaches request_id, tenant_id and principal_id and marks 4xx/5xx
// responses as errors. It must sit after TracingWithConfig.
func SpanDecorator() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		span := trace.SpanFromContext(c.Request.Context())
		if !span.IsRecording() {
			return
		}
		enrichSpan(c, span)
		markSpanStatus(span, c.Writer.Status())
	}
}

func enrichSpan(c *gin.Context, span trace.Span) {
	if requestID := c.GetString(RequestIDKey); requestID != "" {
		span.SetAttributes(attribute.String("request_id", requestID))
	}
	// Only set once the tenant binding resolved the host; never taken from headers
	if tenantID := c.GetString(TenantIDKey); tenantID != "" {
		span.SetAttributes(attribute.String("tenant_id", tenantID))
	}
	if principal, ok := GetPrincipal(c); ok {
		span.SetAttributes(attribute.String("principal_id", principal.ID.String()))
	}
}

func markSpanStatus(span trace.Span, statusCode int) {
	if statusCode < http.StatusBadRequest {
		return
	}

	var msg string
	switch {
	case statusCode >= http.StatusInternalServerError:
		msg = "Internal Server Error"
	case statusCode == http.StatusUnauthorized:
		msg = "Unauthorized"
	case statusCode == http.StatusForbidden:
		msg = "Forbidden"
	case statusCode == http.StatusNotFound:
		msg = "Not Found"
	default:
		msg = "Client Error"
	}
	span.SetStatus(codes.Error, msg)
	span.SetAttributes(attribute.Int("http.status_code", statusCode))
}
