package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"Fixer-backend/internal/logger"
	"Fixer-backend/internal/metrics"
	"Fixer-backend/internal/utilities"
)

// RequestLogger logs one line per request and records request metrics.
func RequestLogger(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		metrics.HTTPRequests.WithLabelValues(route, c.Request.Method, strconv.Itoa(status)).Inc()
		metrics.HTTPDuration.WithLabelValues(route, c.Request.Method).Observe(latency.Seconds())

		fields := map[string]interface{}{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     status,
			"latency_ms": latency.Milliseconds(),
			"client_ip":  c.ClientIP(),
		}
		if caller, err := utilities.ExtractCaller(c); err == nil {
			fields["caller_id"] = caller.UserID
		}
		if len(c.Errors) > 0 {
			fields["errors"] = c.Errors.String()
		}

		switch {
		case status >= 500:
			log.Error("request", fields)
		case status >= 400:
			log.Warn("request", fields)
		default:
			log.Info("request", fields)
		}
	}
}
