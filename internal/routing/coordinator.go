package routing

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/richxcame/truckroute/internal/maps"
	"github.com/richxcame/truckroute/pkg/async"
	"github.com/richxcame/truckroute/pkg/cache"
	"github.com/richxcame/truckroute/pkg/logger"
	"github.com/richxcame/truckroute/pkg/resilience"
	"github.com/richxcame/truckroute/pkg/tracing"
	"github.com/richxcame/truckroute/pkg/validation"
	"go.uber.org/zap"
)

const (
	tracerName = "routing"

	// DefaultCallTimeout bounds each provider hop.
	DefaultCallTimeout = 10 * time.Second
)

// Backend is one routing provider with its circuit breaker.
type Backend struct {
	Provider maps.RoutingProvider
	Breaker  *resilience.CircuitBreaker
}

// Router holds the process-wide routing backends and route cache. Sessions
// get their own Coordinator from it.
type Router struct {
	primary   Backend
	secondary Backend
	cache     *cache.Manager
	cacheTTL  time.Duration
	timeout   time.Duration
}

// NewRouter creates a router. A nil cache disables route caching.
func NewRouter(primary, secondary Backend, routeCache *cache.Manager, cacheTTL, timeout time.Duration) *Router {
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	return &Router{
		primary:   primary,
		secondary: secondary,
		cache:     routeCache,
		cacheTTL:  cacheTTL,
		timeout:   timeout,
	}
}

// NewCoordinator returns a coordinator with its own in-flight slot.
func (r *Router) NewCoordinator() *Coordinator {
	return &Coordinator{router: r, slot: async.NewSlot("route")}
}

// Coordinator computes routes for one session. A new ComputeRoute cancels the
// previous one.
type Coordinator struct {
	router *Router
	slot   *async.Slot
	state  atomic.Int32
}

// State returns the state of the latest computation.
func (c *Coordinator) State() resilience.FailoverState {
	return resilience.FailoverState(c.state.Load())
}

// Cancel aborts the in-flight computation, if any.
func (c *Coordinator) Cancel() {
	c.slot.Cancel()
}

// ComputeRoute asks the primary provider and, if it fails for any reason,
// the secondary exactly once. A superseded call returns context.Canceled.
func (c *Coordinator) ComputeRoute(ctx context.Context, req *maps.RouteRequest) (*maps.RouteResult, error) {
	if err := validation.ValidateStruct(req); err != nil {
		return nil, err
	}

	ctx, ticket := c.slot.Begin(ctx)
	defer ticket.Done()

	c.setState(ticket, resilience.StateIdle)

	key := cache.Keys.Route(req.Fingerprint())
	var cached maps.RouteResult
	if err := c.router.cache.Get(ctx, key, &cached); err == nil {
		logger.DebugContext(ctx, "route served from cache",
			zap.String("route_id", cached.ID),
			zap.String("provider", string(cached.Provider)),
		)
		return c.publish(ticket, &cached)
	} else if !errors.Is(err, cache.ErrMiss) {
		logger.WarnContext(ctx, "route cache read failed", zap.Error(err))
	}

	r := c.router
	failover := resilience.Failover[*maps.RouteResult]{
		Operation: "route",
		Primary:   hop(r.primary, req),
		Secondary: hop(r.secondary, req),
		Timeout:   r.timeout,
		OnTransition: func(state resilience.FailoverState) {
			c.setState(ticket, state)
		},
	}

	var (
		result   *maps.RouteResult
		provider string
	)
	err := tracing.TraceOperation(ctx, tracerName, "routing.compute", tracing.SessionAttributes(logger.SessionIDFromContext(ctx), ""), func(ctx context.Context) error {
		var err error
		result, provider, err = failover.Execute(ctx)
		if err == nil {
			tracing.AddAttributes(ctx, tracing.ProviderKey.String(provider), tracing.RouteIDKey.String(result.ID))
		}
		return err
	})
	if err != nil {
		if !ticket.Current() {
			return nil, context.Canceled
		}
		return nil, err
	}

	if result.Provider == "" {
		result.Provider = maps.Provider(provider)
	}

	if err := r.cache.Set(ctx, key, result, r.cacheTTL); err != nil {
		logger.WarnContext(ctx, "route cache write failed", zap.Error(err))
	}

	logger.InfoContext(ctx, "route computed",
		zap.String("route_id", result.ID),
		zap.String("provider", string(result.Provider)),
		zap.Int("points", len(result.Geometry)),
		zap.Float64("distance_m", result.DistanceMeters),
	)
	return c.publish(ticket, result)
}

func (c *Coordinator) publish(ticket async.Ticket, result *maps.RouteResult) (*maps.RouteResult, error) {
	if !ticket.Commit(func() { c.state.Store(int32(resilience.StateSucceeded)) }) {
		return nil, context.Canceled
	}
	return result, nil
}

func (c *Coordinator) setState(ticket async.Ticket, state resilience.FailoverState) {
	ticket.Commit(func() {
		prev := resilience.FailoverState(c.state.Swap(int32(state)))
		if prev != state {
			logger.Debug("route coordinator transition",
				zap.String("from", prev.String()),
				zap.String("to", state.String()),
			)
		}
	})
}

func hop(b Backend, req *maps.RouteRequest) resilience.Hop[*maps.RouteResult] {
	h := resilience.Hop[*maps.RouteResult]{Breaker: b.Breaker}
	if b.Provider == nil {
		h.Name = "unconfigured"
		return h
	}
	h.Name = string(b.Provider.Name())
	h.Call = func(ctx context.Context) (*maps.RouteResult, error) {
		result, err := b.Provider.Route(ctx, req)
		if err != nil {
			return nil, err
		}
		if result == nil || len(result.Geometry) == 0 {
			return nil, fmt.Errorf("%s: %w: empty geometry", b.Provider.Name(), maps.ErrNoRouteFound)
		}
		return result, nil
	}
	return h
}
