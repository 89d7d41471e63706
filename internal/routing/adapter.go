package routing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/richxcame/truckroute/internal/maps"
	apperrors "github.com/richxcame/truckroute/pkg/errors"
	"github.com/richxcame/truckroute/pkg/logger"
	"github.com/richxcame/truckroute/pkg/resilience"
	"github.com/richxcame/truckroute/pkg/tracing"
	"go.uber.org/zap"
)

// Adapter turns raw route geometry into a road-snapped, maneuver-annotated path.
type Adapter struct {
	matcher   maps.MatchingProvider
	breaker   *resilience.CircuitBreaker
	maxPoints int
	timeout   time.Duration
}

// NewAdapter creates an adapter. maxPoints <= 0 uses DefaultMatchingCap.
func NewAdapter(matcher maps.MatchingProvider, breaker *resilience.CircuitBreaker, maxPoints int, timeout time.Duration) *Adapter {
	if maxPoints <= 0 {
		maxPoints = DefaultMatchingCap
	}
	return &Adapter{matcher: matcher, breaker: breaker, maxPoints: maxPoints, timeout: timeout}
}

// Adapt decimates the route and map-matches it. The first matching wins.
func (a *Adapter) Adapt(ctx context.Context, route *maps.RouteResult) (*maps.MatchedPath, error) {
	trace := Decimate(route.Geometry, a.maxPoints)
	if len(trace) < 2 {
		return nil, fmt.Errorf("%w: %d points", maps.ErrInsufficientGeometry, len(trace))
	}

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	var matchings []maps.Matching
	err := tracing.TraceOperation(ctx, tracerName, "routing.adapt",
		append(tracing.SessionAttributes(logger.SessionIDFromContext(ctx), route.ID), tracing.PointCountKey.Int(len(trace))),
		func(ctx context.Context) error {
			var err error
			matchings, err = resilience.Call(ctx, a.breaker, func(ctx context.Context) ([]maps.Matching, error) {
				return a.matcher.Match(ctx, trace)
			})
			return err
		})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", maps.ErrMapMatchingFailed, err)
	}
	if len(matchings) == 0 {
		return nil, maps.ErrNoMatchings
	}

	best := matchings[0]
	if len(best.Geometry) < 2 {
		return nil, fmt.Errorf("%w: matching has %d points", maps.ErrMapMatchingFailed, len(best.Geometry))
	}

	maneuvers := best.Maneuvers
	if maneuvers == nil {
		maneuvers = []maps.Maneuver{}
	}
	return &maps.MatchedPath{
		RouteID:    route.ID,
		Geometry:   best.Geometry,
		Maneuvers:  maneuvers,
		Confidence: best.Confidence,
	}, nil
}

// AdaptOrRaw is Adapt with degradation: any failure other than cancellation
// yields the raw geometry with no maneuvers.
func (a *Adapter) AdaptOrRaw(ctx context.Context, route *maps.RouteResult) (*maps.MatchedPath, error) {
	path, err := a.Adapt(ctx, route)
	if err == nil {
		return path, nil
	}
	if errors.Is(err, context.Canceled) {
		return nil, err
	}

	logger.WarnContext(ctx, "map matching unavailable, using raw route geometry",
		zap.String("route_id", route.ID),
		zap.Int("points", len(route.Geometry)),
		zap.Error(err),
	)
	if !errors.Is(err, maps.ErrNoMatchings) {
		apperrors.CaptureError(ctx, err, map[string]interface{}{"route_id": route.ID, "degraded": "map_matching"})
	}
	return RawPath(route), nil
}

// RawPath builds a degraded MatchedPath from the route's own geometry.
func RawPath(route *maps.RouteResult) *maps.MatchedPath {
	return &maps.MatchedPath{
		RouteID:    route.ID,
		Geometry:   append([]maps.Coordinate(nil), route.Geometry...),
		Maneuvers:  []maps.Maneuver{},
		Confidence: 0,
		Degraded:   true,
	}
}
