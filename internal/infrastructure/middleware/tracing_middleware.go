package middleware

import (
	"context"
	"time"

	"sharecast/internal/core/domain"
	"sharecast/pkg/logger"
	"sharecast/pkg/tracing"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ShareStatusSource reports the current share without changing it.
type ShareStatusSource interface {
	Status() domain.ShareStatus
}

// TracingMiddleware opens a span per request and tags it, and the request
// context used for logging, with the share that was active around the call.
func TracingMiddleware(shares ShareStatusSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.TraceHTTPRequest(c.Request.Context(), c.Request.Method, c.FullPath())
		defer span.End()

		if id, ok := ctx.Value(logger.RequestIDKey).(string); ok {
			span.SetAttributes(attribute.String("http.request_id", id))
		}
		span.SetAttributes(attribute.String("http.remote_addr", c.ClientIP()))

		before := shares.Status()
		span.SetAttributes(attribute.String("share.state_before", before.State.String()))
		c.Request = c.Request.WithContext(withShare(ctx, span, before.ShareID))

		start := time.Now()
		c.Next()

		after := shares.Status()
		span.SetAttributes(
			attribute.String("share.state_after", after.State.String()),
			attribute.Int("http.status_code", c.Writer.Status()),
			tracing.DurationKey.Int64(time.Since(start).Milliseconds()),
		)
		if after.ShareID != before.ShareID {
			c.Request = c.Request.WithContext(withShare(c.Request.Context(), span, after.ShareID))
		}
		if subject := c.GetString(contextSubject); subject != "" {
			span.SetAttributes(attribute.String("auth.subject", subject))
		}

		if c.Writer.Status() >= 400 {
			span.SetStatus(codes.Error, c.Errors.String())
		} else {
			span.SetStatus(codes.Ok, "")
		}
	}
}

func withShare(ctx context.Context, span trace.Span, id domain.ShareID) context.Context {
	if id == "" {
		return ctx
	}
	span.SetAttributes(tracing.ShareIDKey.String(string(id)))
	return logger.WithShareID(ctx, string(id))
}
