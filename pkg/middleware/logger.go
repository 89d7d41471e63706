package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/richxcame/truckroute/pkg/logger"
	"go.uber.org/zap"
)

// RequestLogger logs one line per HTTP request. Position reports arrive every
// second or so per vehicle, so successful ones are logged at debug level.
func RequestLogger(serviceName string, quietPaths ...string) gin.HandlerFunc {
	quiet := make(map[string]bool, len(quietPaths))
	for _, p := range quietPaths {
		quiet[p] = true
	}

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("service", serviceName),
			zap.Int("status", status),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("route", c.FullPath()),
			zap.String("ip", c.ClientIP()),
			zap.Duration("latency", time.Since(start)),
			zap.Int("response_size", c.Writer.Size()),
		}

		reqLogger := logger.WithContext(c.Request.Context())
		switch {
		case len(c.Errors) > 0:
			fields = append(fields, zap.String("errors", c.Errors.String()))
			reqLogger.Error("Request completed with errors", fields...)
		case status >= 500:
			reqLogger.Error("Request failed", fields...)
		case quiet[c.FullPath()] && status < 400:
			reqLogger.Debug("Request completed", fields...)
		default:
			reqLogger.Info("Request completed", fields...)
		}
	}
}
