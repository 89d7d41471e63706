package errors

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/getsentry/sentry-go"
	"github.com/richxcame/truckroute/pkg/config"
	"github.com/richxcame/truckroute/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ===== MOCK: Sentry hub =====

type eventRecorder struct {
	mu     sync.Mutex
	events []*sentry.Event
}

func (r *eventRecorder) all() []*sentry.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*sentry.Event(nil), r.events...)
}

// recordingContext returns a context carrying a hub whose events are
// recorded instead of sent.
func recordingContext(t *testing.T) (context.Context, *eventRecorder) {
	t.Helper()
	rec := &eventRecorder{}
	client, err := sentry.NewClient(sentry.ClientOptions{
		SampleRate: 1.0,
		BeforeSend: func(event *sentry.Event, hint *sentry.EventHint) *sentry.Event {
			rec.mu.Lock()
			defer rec.mu.Unlock()
			rec.events = append(rec.events, event)
			return nil
		},
	})
	require.NoError(t, err)

	hub := sentry.NewHub(client, sentry.NewScope())
	ctx := logger.ContextWithSessionID(context.Background(), "sess-1")
	ctx = logger.ContextWithCorrelationID(ctx, "req-9")
	return sentry.SetHubOnContext(ctx, hub), rec
}

func TestInitSentryWithoutDSN(t *testing.T) {
	err := InitSentry(config.SentryConfig{}, "test", "navigator")
	assert.ErrorIs(t, err, ErrSentryDisabled)
}

func TestClientOptionsDropsInfoEvents(t *testing.T) {
	opts := ClientOptions(config.SentryConfig{Release: "1.2.3", SampleRate: 1}, "production", "navigator")
	assert.Equal(t, "1.2.3", opts.Release)
	assert.Equal(t, "production", opts.Environment)

	assert.Nil(t, opts.BeforeSend(&sentry.Event{Level: sentry.LevelInfo}, nil))
	assert.NotNil(t, opts.BeforeSend(&sentry.Event{Level: sentry.LevelError}, nil))

	crumb := &sentry.Breadcrumb{Category: "http", Data: map[string]interface{}{"Authorization": "secret", "url": "/x"}}
	out := opts.BeforeBreadcrumb(crumb, nil)
	assert.NotContains(t, out.Data, "Authorization")
	assert.Contains(t, out.Data, "url")
}

func TestCaptureErrorTagsSession(t *testing.T) {
	ctx, rec := recordingContext(t)

	CaptureError(ctx, fmt.Errorf("route: %w", errors.New("providers exhausted")), map[string]interface{}{"route_id": "r-1"})

	events := rec.all()
	require.Len(t, events, 1)
	assert.Equal(t, "sess-1", events[0].Tags["session_id"])
	assert.Equal(t, "req-9", events[0].Tags["correlation_id"])
	assert.Equal(t, "r-1", events[0].Contexts["navigator"]["route_id"])
	require.NotEmpty(t, events[0].Exception)
}

func TestCaptureErrorSkipsSuperseded(t *testing.T) {
	ctx, rec := recordingContext(t)

	CaptureError(ctx, nil, nil)
	CaptureError(ctx, fmt.Errorf("adapt: %w", context.Canceled), nil)

	assert.Empty(t, rec.all())
}

func TestCaptureMessageAndRecoverPanic(t *testing.T) {
	ctx, rec := recordingContext(t)

	CaptureMessage(ctx, "HTTP 502: POST /route", nil)
	RecoverPanic(ctx, "boom")

	events := rec.all()
	require.Len(t, events, 2)
	assert.Equal(t, "HTTP 502: POST /route", events[0].Message)
	assert.Equal(t, sentry.LevelError, events[0].Level)
	assert.Equal(t, sentry.LevelFatal, events[1].Level)
	assert.Equal(t, "sess-1", events[1].Tags["session_id"])
}

func TestShouldReport(t *testing.T) {
	assert.False(t, ShouldReport(404))
	assert.False(t, ShouldReport(422))
	assert.True(t, ShouldReport(500))
	assert.True(t, ShouldReport(502))
}
