package traffic

import (
	"context"
	"errors"
	"time"

	"github.com/richxcame/truckroute/internal/maps"
	"github.com/richxcame/truckroute/pkg/async"
	"github.com/richxcame/truckroute/pkg/logger"
	"github.com/richxcame/truckroute/pkg/resilience"
	"github.com/richxcame/truckroute/pkg/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const (
	tracerName = "traffic"

	// DefaultInterval is the refresh cadence of Run.
	DefaultInterval = 3 * time.Minute
	// DefaultCallTimeout bounds each provider call.
	DefaultCallTimeout = 8 * time.Second
)

// Backend is a traffic provider with its circuit breaker.
type Backend struct {
	Provider maps.TrafficProvider
	Breaker  *resilience.CircuitBreaker
}

// Classifier reads traffic flow from a primary provider, falling back to the
// secondary once. Calls are serialized through a slot, so a new Classify
// cancels the one in flight.
type Classifier struct {
	primary   Backend
	secondary Backend
	timeout   time.Duration
	slot      *async.Slot
	now       func() time.Time
}

// NewClassifier creates a classifier. A zero timeout uses DefaultCallTimeout.
func NewClassifier(primary, secondary Backend, timeout time.Duration) *Classifier {
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	return &Classifier{
		primary:   primary,
		secondary: secondary,
		timeout:   timeout,
		slot:      async.NewSlot("traffic"),
		now:       time.Now,
	}
}

// Classify samples traffic at the coordinate.
func (c *Classifier) Classify(ctx context.Context, at maps.Coordinate) (*CongestionSample, error) {
	ctx, ticket := c.slot.Begin(ctx)
	defer ticket.Done()

	var reading *maps.FlowReading
	err := tracing.TraceOperation(ctx, tracerName, "traffic.classify",
		[]attribute.KeyValue{attribute.Float64("lat", at.Latitude), attribute.Float64("lng", at.Longitude)},
		func(ctx context.Context) error {
			failover := resilience.Failover[*maps.FlowReading]{
				Operation: "traffic",
				Primary:   c.hop(c.primary, at),
				Secondary: c.hop(c.secondary, at),
				Timeout:   c.timeout,
			}
			var err error
			reading, _, err = failover.Execute(ctx)
			return err
		})
	if err != nil {
		return nil, err
	}
	if !ticket.Current() {
		return nil, context.Canceled
	}

	sample := Classify(reading, at, c.now().UTC())
	recordSample(sample)
	return &sample, nil
}

// Cancel aborts the in-flight call.
func (c *Classifier) Cancel() {
	c.slot.Cancel()
}

func (c *Classifier) hop(b Backend, at maps.Coordinate) resilience.Hop[*maps.FlowReading] {
	h := resilience.Hop[*maps.FlowReading]{Breaker: b.Breaker}
	if b.Provider == nil {
		h.Name = "unconfigured"
		return h
	}
	h.Name = string(b.Provider.Name())
	h.Call = func(ctx context.Context) (*maps.FlowReading, error) {
		return b.Provider.Flow(ctx, at)
	}
	return h
}

// PositionFunc returns the latest vehicle position.
type PositionFunc func() (maps.Coordinate, bool)

// Run classifies traffic at the current position every interval until ctx
// is done. A failed refresh is logged and the loop keeps going.
func (c *Classifier) Run(ctx context.Context, interval time.Duration, position PositionFunc, publish func(CongestionSample)) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	c.refresh(ctx, position, publish)
	for {
		select {
		case <-ticker.C:
			c.refresh(ctx, position, publish)
		case <-ctx.Done():
			c.slot.Cancel()
			return
		}
	}
}

func (c *Classifier) refresh(ctx context.Context, position PositionFunc, publish func(CongestionSample)) {
	at, ok := position()
	if !ok {
		return
	}

	sample, err := c.Classify(ctx, at)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		logger.WarnContext(ctx, "traffic refresh failed", zap.Error(err))
		return
	}
	if sample.LowConfidence {
		logger.DebugContext(ctx, "traffic reading had no speed data",
			zap.String("provider", string(sample.Provider)))
	}
	publish(*sample)
}
