package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the tracer used for application spans
const TracerName = "tenantcore"

// Span attribute keys
var (
	KeyTenantID    = attribute.Key("tenant.id")
	KeyTenantSlug  = attribute.Key("tenant.slug")
	KeyNamespace   = attribute.Key("tenant.namespace")
	KeyPrincipalID = attribute.Key("principal.id")
	KeyHost        = attribute.Key("request.host")

	KeyEventID      = attribute.Key("billing.event_id")
	KeyEventType    = attribute.Key("billing.event_type")
	KeyEventOutcome = attribute.Key("billing.outcome")
)

// StartOperation starts an internal span named {component}.{operation}, e.g. "billing.ingest".
// The caller must end it.
//
//	ctx, span := telemetry.StartOperation(ctx, "tenancy", "create_tenant", telemetry.KeyTenantSlug.String(slug))
//	defer span.End()
func StartOperation(ctx context.Context, component, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.GetTracerProvider().Tracer(TracerName).Start(ctx, component+"."+operation,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
}

// Fail records err on span and marks the span as failed. A nil err is ignored.
func Fail(span trace.Span, err error) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
