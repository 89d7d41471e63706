package middleware

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	apperrors "github.com/richxcame/truckroute/pkg/errors"
)

// SentryMiddleware attaches a per-request hub and reports panics. It
// re-panics so gin.Recovery still writes the 500.
func SentryMiddleware() gin.HandlerFunc {
	return sentrygin.New(sentrygin.Options{
		Repanic:         true,
		WaitForDelivery: false,
		Timeout:         2 * time.Second,
	})
}

// ReportServerErrors captures 5xx responses. Errors attached with c.Error are
// reported as exceptions; a bare 5xx becomes a message.
func ReportServerErrors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		status := c.Writer.Status()
		if !apperrors.ShouldReport(status) {
			return
		}

		ctx := c.Request.Context()
		if hub := sentrygin.GetHubFromContext(c); hub != nil {
			ctx = sentry.SetHubOnContext(ctx, hub)
		}

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		extras := map[string]interface{}{
			"method":      c.Request.Method,
			"route":       route,
			"status_code": status,
		}

		if len(c.Errors) == 0 {
			apperrors.CaptureMessage(ctx, fmt.Sprintf("HTTP %d: %s %s", status, c.Request.Method, route), extras)
			return
		}
		for _, e := range c.Errors {
			apperrors.CaptureError(ctx, e.Err, extras)
		}
	}
}
