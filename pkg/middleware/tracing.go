package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/richxcame/truckroute/pkg/tracing"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// TraceIDHeader echoes the server span's trace id back to the client.
const TraceIDHeader = "X-Trace-ID"

// Tracing starts a server span per request, continuing any incoming W3C
// trace context. Requests under /sessions/:id are tagged with the session.
func Tracing(serviceName string) gin.HandlerFunc {
	tracer := otel.Tracer(serviceName)

	return func(c *gin.Context) {
		ctx := otel.GetTextMapPropagator().Extract(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}

		attrs := []attribute.KeyValue{
			tracing.HTTPMethodKey.String(c.Request.Method),
			attribute.String("http.route", route),
		}
		if id := c.Param("id"); id != "" {
			attrs = append(attrs, tracing.SessionIDKey.String(id))
		}

		ctx, span := tracer.Start(ctx, c.Request.Method+" "+route,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(attrs...),
		)
		defer span.End()

		c.Request = c.Request.WithContext(ctx)
		if id := tracing.TraceID(ctx); id != "" {
			c.Header(TraceIDHeader, id)
		}

		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(tracing.HTTPStatusKey.Int(status))
		switch {
		case len(c.Errors) > 0:
			span.SetStatus(codes.Error, c.Errors.String())
			for _, err := range c.Errors {
				span.RecordError(err.Err)
			}
		case status >= 500:
			span.SetStatus(codes.Error, "server error")
		default:
			span.SetStatus(codes.Ok, "")
		}
	}
}
