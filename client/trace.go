package client

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

var propagator = propagation.NewCompositeTextMapPropagator(
	propagation.TraceContext{},
	propagation.Baggage{},
)

func defaultTracer() trace.Tracer {
	return noop.NewTracerProvider().Tracer("no-op tracer")
}

// startSpan opens the span of one attempt. The trace context reaches the
// outgoing headers through injectTrace once they are built.
func (c *Client) startSpan(ctx context.Context, cl *call, attempt int) (context.Context, trace.Span) {
	ctx, span := c.tracer.Start(ctx, "zap.send", trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(
		attribute.String("http.request.method", cl.req.Method),
		attribute.String("url.full", cl.target.String()),
		attribute.String("zap.request_id", cl.requestID),
		attribute.Int("zap.attempt", attempt),
	)

	return ctx, span
}

// injectTrace writes the trace context and baggage of ctx into header.
func injectTrace(ctx context.Context, header http.Header) {
	propagator.Inject(ctx, propagation.HeaderCarrier(header))
}

func endSpan(span trace.Span, statusCode int, err error) {
	if statusCode > 0 {
		span.SetAttributes(attribute.Int("http.response.status_code", statusCode))
	}

	switch {
	case err != nil:
		span.SetAttributes(attribute.String("zap.failure_kind", string(Classify(err))))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	case statusCode >= http.StatusBadRequest:
		span.SetStatus(codes.Error, http.StatusText(statusCode))
	}

	span.End()
}
