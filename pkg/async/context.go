package async

import (
	"context"
	"runtime/debug"
	"sync"
	"time"

	apperrors "github.com/richxcame/truckroute/pkg/errors"
	"github.com/richxcame/truckroute/pkg/logger"
	"go.uber.org/zap"
)

// TaskContext holds context values that should be propagated to async tasks
type TaskContext struct {
	CorrelationID string
	SessionID     string
	StartTime     time.Time
	TaskName      string
}

// CaptureContext captures the current context values for async propagation
func CaptureContext(ctx context.Context, taskName string) TaskContext {
	return TaskContext{
		CorrelationID: logger.CorrelationIDFromContext(ctx),
		SessionID:     logger.SessionIDFromContext(ctx),
		StartTime:     time.Now(),
		TaskName:      taskName,
	}
}

// Group tracks goroutines so an owner can wait for all of them to exit.
// Every task recovers from panics, logs them with its context and reports
// them to Sentry.
type Group struct {
	wg sync.WaitGroup
}

// Go runs fn in a tracked goroutine. fn receives ctx unchanged, so cancelling
// ctx is how the owner stops it.
func (g *Group) Go(ctx context.Context, taskName string, fn func(ctx context.Context)) {
	tc := CaptureContext(ctx, taskName)
	g.wg.Add(1)

	go func() {
		defer g.wg.Done()
		defer recoverWithLogging(ctx, tc)

		fn(ctx)

		logger.DebugContext(ctx, "async task completed",
			zap.String("task", tc.TaskName),
			zap.Duration("duration", time.Since(tc.StartTime)),
		)
	}()
}

// Wait blocks until every goroutine started through Go has returned.
func (g *Group) Wait() {
	g.wg.Wait()
}

// WaitTimeout waits at most d and reports whether all goroutines exited.
func (g *Group) WaitTimeout(d time.Duration) bool {
	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-time.After(d):
		return false
	}
}

func recoverWithLogging(ctx context.Context, tc TaskContext) {
	if r := recover(); r != nil {
		logger.ErrorContext(ctx, "async task panicked",
			zap.String("task", tc.TaskName),
			zap.Any("panic", r),
			zap.String("stack", string(debug.Stack())),
		)
		apperrors.RecoverPanic(ctx, r)
	}
}
