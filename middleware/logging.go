package middleware

import (
	"strconv"
	"time"

	"github.com/detodounpoco/marketplace-api/metrics"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// CorrelationIDHeader is echoed on every response
	CorrelationIDHeader = "X-Correlation-ID"
	// CorrelationIDKey is the Gin context key for the correlation ID
	CorrelationIDKey = "correlation_id"
)

// RequestLogger logs every request once it completes and records its
// duration and status in the request metrics.
func RequestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		// Generate or extract correlation ID
		correlationID := c.GetHeader(CorrelationIDHeader)
		if correlationID == "" {
			correlationID = uuid.New().String()
		}
		c.Set(CorrelationIDKey, correlationID)
		c.Header(CorrelationIDHeader, correlationID)

		c.Next()

		duration := time.Since(start)
		status := c.Writer.Status()

		// Unmatched routes share one label so the path label stays bounded
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Int("bytes", c.Writer.Size()),
			zap.Duration("duration", duration),
			zap.String("correlation_id", correlationID),
			zap.String("client_ip", c.ClientIP()),
			zap.String("user_agent", c.Request.UserAgent()),
		}
		if subject := c.GetString(UserIDKey); subject != "" {
			fields = append(fields, zap.String("user_id", subject))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		switch {
		case status >= 500:
			log.Error("request completed", fields...)
		case status >= 400:
			log.Warn("request completed", fields...)
		default:
			log.Info("request completed", fields...)
		}

		metrics.RecordRequest(c.Request.Method, route, strconv.Itoa(status), duration.Seconds())
	}
}

// GetCorrelationID returns the correlation ID of the current request
func GetCorrelationID(c *gin.Context) string {
	return c.GetString(CorrelationIDKey)
}
