package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"payables/internal/core/appctx"
)

const (
	HeaderRequestID = "X-Request-ID"
	HeaderTraceID   = "X-Trace-ID"
	HeaderUserID    = "X-User-ID"
	HeaderUserEmail = "X-User-Email"
)

// Trace middleware adds request tracing context.
// Extracts or generates trace IDs, and picks up the acting user identity set
// by the upstream gateway for audit attribution.
func Trace() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(HeaderRequestID)
		if requestID == "" {
			requestID = uuid.New().String()
		}

		traceID := c.GetHeader(HeaderTraceID)
		if traceID == "" {
			traceID = uuid.New().String()
		}

		trace := &appctx.TraceContext{
			TraceID:   traceID,
			SpanID:    uuid.New().String()[:16],
			RequestID: requestID,
		}

		ctx := appctx.WithTrace(c.Request.Context(), trace)

		if userID := c.GetHeader(HeaderUserID); userID != "" {
			ctx = appctx.WithUser(ctx, &appctx.UserContext{
				UserID: userID,
				Email:  c.GetHeader(HeaderUserEmail),
			})
		}

		c.Request = c.Request.WithContext(ctx)

		// Store in gin context for easy access
		c.Set("trace_id", traceID)
		c.Set("request_id", requestID)

		c.Header(HeaderRequestID, requestID)
		c.Header(HeaderTraceID, traceID)

		c.Next()
	}
}
