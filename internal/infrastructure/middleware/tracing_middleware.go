package middleware

import (
	"time"

	"roomcast/internal/core/session"
	"roomcast/pkg/tracing"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// TracingMiddleware opens a span per HTTP request and stamps it with the
// room identity so traces from several rooms can be told apart. Member,
// room name and event type never change after session setup, so they are
// read once here instead of snapshotting per request.
func TracingMiddleware(state *session.State) gin.HandlerFunc {
	snap := state.Snapshot()
	roomAttrs := []attribute.KeyValue{
		attribute.String("room.name", string(snap.RoomName)),
		attribute.String("room.member", snap.Member),
		attribute.String("room.event_type", string(snap.EventType)),
	}

	return func(c *gin.Context) {
		ctx, span := tracing.TraceHTTPRequest(c.Request.Context(), c.Request.Method, c.FullPath())
		defer span.End()

		span.SetAttributes(roomAttrs...)
		span.SetAttributes(
			attribute.String("http.host", c.Request.Host),
			attribute.String("http.remote_addr", c.ClientIP()),
		)

		c.Request = c.Request.WithContext(ctx)

		start := time.Now()
		c.Next()
		duration := time.Since(start)

		span.SetAttributes(
			attribute.Int("http.status_code", c.Writer.Status()),
			attribute.Int64("http.duration_ms", duration.Milliseconds()),
		)

		if c.Writer.Status() >= 400 {
			span.SetStatus(codes.Error, c.Errors.String())
		} else {
			span.SetStatus(codes.Ok, "")
		}
	}
}
