package errors

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/richxcame/truckroute/pkg/config"
	"github.com/richxcame/truckroute/pkg/logger"
)

// ErrSentryDisabled is returned by InitSentry when no DSN is configured.
var ErrSentryDisabled = errors.New("sentry DSN is not configured")

// ClientOptions builds the SDK options for cfg.
func ClientOptions(cfg config.SentryConfig, environment, serverName string) sentry.ClientOptions {
	return sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      environment,
		Release:          cfg.Release,
		SampleRate:       cfg.SampleRate,
		TracesSampleRate: cfg.TracesSampleRate,
		Debug:            cfg.Debug,
		ServerName:       serverName,
		AttachStacktrace: true,
		BeforeSend: func(event *sentry.Event, hint *sentry.EventHint) *sentry.Event {
			// Info and debug events are business outcomes, not failures.
			if event.Level == sentry.LevelInfo || event.Level == sentry.LevelDebug {
				return nil
			}
			return event
		},
		BeforeBreadcrumb: func(breadcrumb *sentry.Breadcrumb, hint *sentry.BreadcrumbHint) *sentry.Breadcrumb {
			if breadcrumb.Category == "http" && breadcrumb.Data != nil {
				delete(breadcrumb.Data, "Authorization")
				delete(breadcrumb.Data, "Cookie")
				delete(breadcrumb.Data, "X-API-Key")
			}
			return breadcrumb
		},
	}
}

// InitSentry initializes the Sentry SDK with the given configuration
func InitSentry(cfg config.SentryConfig, environment, serverName string) error {
	if cfg.DSN == "" {
		return ErrSentryDisabled
	}
	if err := sentry.Init(ClientOptions(cfg, environment, serverName)); err != nil {
		return fmt.Errorf("failed to initialize sentry: %w", err)
	}
	return nil
}

// Flush flushes the Sentry buffer
func Flush(timeout time.Duration) bool {
	return sentry.Flush(timeout)
}

// ShouldReport reports whether a response with statusCode is an unexpected
// failure worth an error report.
func ShouldReport(statusCode int) bool {
	return statusCode >= 500
}

// CaptureError reports err with the session and correlation ids carried by
// ctx. A superseded call is not a failure and is never reported.
func CaptureError(ctx context.Context, err error, extras map[string]interface{}) *sentry.EventID {
	if err == nil || errors.Is(err, context.Canceled) {
		return nil
	}

	var id *sentry.EventID
	hubFrom(ctx).WithScope(func(scope *sentry.Scope) {
		configureScope(ctx, scope, extras)
		id = hubFrom(ctx).CaptureException(err)
	})
	return id
}

// CaptureMessage reports a failure that carries no Go error.
func CaptureMessage(ctx context.Context, message string, extras map[string]interface{}) *sentry.EventID {
	var id *sentry.EventID
	hubFrom(ctx).WithScope(func(scope *sentry.Scope) {
		configureScope(ctx, scope, extras)
		scope.SetLevel(sentry.LevelError)
		id = hubFrom(ctx).CaptureMessage(message)
	})
	return id
}

// RecoverPanic reports a recovered panic value. It does not re-panic.
func RecoverPanic(ctx context.Context, value interface{}) *sentry.EventID {
	var id *sentry.EventID
	hubFrom(ctx).WithScope(func(scope *sentry.Scope) {
		configureScope(ctx, scope, nil)
		id = hubFrom(ctx).RecoverWithContext(ctx, value)
	})
	return id
}

func hubFrom(ctx context.Context) *sentry.Hub {
	if hub := sentry.GetHubFromContext(ctx); hub != nil {
		return hub
	}
	return sentry.CurrentHub()
}

func configureScope(ctx context.Context, scope *sentry.Scope, extras map[string]interface{}) {
	if sessionID := logger.SessionIDFromContext(ctx); sessionID != "" {
		scope.SetTag("session_id", sessionID)
	}
	if correlationID := logger.CorrelationIDFromContext(ctx); correlationID != "" {
		scope.SetTag("correlation_id", correlationID)
	}
	if len(extras) > 0 {
		scope.SetContext("navigator", extras)
	}
}
