package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/richxcame/truckroute/internal/hazard"
	"github.com/richxcame/truckroute/internal/maps"
	"github.com/richxcame/truckroute/internal/restrictions"
	"github.com/richxcame/truckroute/internal/traffic"
	"github.com/richxcame/truckroute/internal/vehicle"
	"github.com/richxcame/truckroute/pkg/async"
	"github.com/richxcame/truckroute/pkg/logger"
	"go.uber.org/zap"
)

// ActiveRoute is the route a session is navigating. It is replaced as a
// whole, never mutated.
type ActiveRoute struct {
	Route        *maps.RouteResult            `json:"route"`
	Path         *maps.MatchedPath            `json:"path"`
	Restrictions *restrictions.RestrictionSet `json:"restrictions"`
	ActivatedAt  time.Time                    `json:"activated_at"`
}

// Position is a vehicle fix.
type Position struct {
	Coordinate maps.Coordinate `json:"coordinate"`
	Heading    float64         `json:"heading,omitempty"`
	SpeedKmh   float64         `json:"speed_kmh,omitempty"`
	RecordedAt time.Time       `json:"recorded_at"`
}

// Destination is what a driver asks to be routed to.
type Destination struct {
	Origin      maps.Coordinate  `json:"origin"`
	Destination maps.Coordinate  `json:"destination"`
	Preferences maps.Preferences `json:"preferences"`
}

// Session is one vehicle's navigation. Readers load immutable snapshots
// through atomic pointers; writers that replace the hazard snapshot hold mu.
type Session struct {
	ID        string
	CreatedAt time.Time

	deps  *Dependencies
	ctx   context.Context
	stop  context.CancelFunc
	group async.Group

	profile    atomic.Pointer[vehicle.Profile]
	route      atomic.Pointer[ActiveRoute]
	snapshot   atomic.Pointer[hazard.Snapshot]
	position   atomic.Pointer[Position]
	congestion atomic.Pointer[traffic.CongestionSample]
	lastSeen   atomic.Int64

	routes       RouteComputer
	adaptSlot    *async.Slot
	restrictSlot *async.Slot
	monitor      *hazard.Monitor

	mu          sync.Mutex
	stopMonitor context.CancelFunc

	outbox  chan Event
	events  chan Event
	ended   atomic.Bool
	endOnce sync.Once
}

func newSession(parent context.Context, id string, profile vehicle.Profile, deps *Dependencies) *Session {
	now := time.Now().UTC()
	ctx, stop := context.WithCancel(logger.ContextWithSessionID(parent, id))

	s := &Session{
		ID:           id,
		CreatedAt:    now,
		deps:         deps,
		ctx:          ctx,
		stop:         stop,
		adaptSlot:    async.NewSlot("adapt"),
		restrictSlot: async.NewSlot("restrictions"),
		outbox:       make(chan Event, eventsBuffer),
		events:       make(chan Event, eventsBuffer),
	}
	s.profile.Store(&profile)
	s.lastSeen.Store(now.UnixNano())
	s.routes = deps.NewRouteComputer()
	s.monitor = hazard.NewMonitor(deps.Hazard, s.snapshot.Load, s.currentPosition, func(e hazard.Event) {
		s.emit(s.advisoryEvent(e))
	})

	s.group.Go(ctx, "session-dispatch", s.dispatchLoop)
	if deps.NewTraffic != nil {
		runner := deps.NewTraffic()
		s.group.Go(ctx, "traffic-classifier", func(ctx context.Context) {
			runner.Run(ctx, deps.TrafficInterval, s.currentPosition, s.setCongestion)
		})
	}
	return s
}

// Events returns the in-process event stream. It is closed when the
// session has ended and every goroutine has exited.
func (s *Session) Events() <-chan Event {
	return s.events
}

// Profile returns the current vehicle profile.
func (s *Session) Profile() vehicle.Profile {
	return *s.profile.Load()
}

// Route returns the active route, if any.
func (s *Session) Route() (*ActiveRoute, bool) {
	r := s.route.Load()
	return r, r != nil
}

// Position returns the latest fix, if any.
func (s *Session) Position() (Position, bool) {
	p := s.position.Load()
	if p == nil {
		return Position{}, false
	}
	return *p, true
}

// Congestion returns the latest traffic sample, if any.
func (s *Session) Congestion() (traffic.CongestionSample, bool) {
	c := s.congestion.Load()
	if c == nil {
		return traffic.CongestionSample{}, false
	}
	return *c, true
}

// Advisory returns the active hazard advisory, if any.
func (s *Session) Advisory() (hazard.Advisory, bool) {
	return s.monitor.Active()
}

// LastSeen is the time of the last position or request.
func (s *Session) LastSeen() time.Time {
	return time.Unix(0, s.lastSeen.Load())
}

// Ended reports whether End has been called.
func (s *Session) Ended() bool {
	return s.ended.Load()
}

func (s *Session) touch() {
	s.lastSeen.Store(time.Now().UnixNano())
}

func (s *Session) currentPosition() (maps.Coordinate, bool) {
	p := s.position.Load()
	if p == nil {
		return maps.Coordinate{}, false
	}
	return p.Coordinate, true
}

func (s *Session) setCongestion(c traffic.CongestionSample) {
	s.congestion.Store(&c)
	s.emit(s.congestionEvent(c))
}

// ActivateRoute computes, adapts and activates a route to dest. A newer
// call supersedes this one, which then returns context.Canceled.
func (s *Session) ActivateRoute(ctx context.Context, dest Destination) (*ActiveRoute, error) {
	if s.Ended() {
		return nil, ErrSessionEnded
	}
	s.touch()
	ctx = logger.ContextWithSessionID(ctx, s.ID)

	req := &maps.RouteRequest{
		Origin:      dest.Origin,
		Destination: dest.Destination,
		Profile:     s.Profile(),
		Preferences: dest.Preferences,
	}

	route, err := s.routes.ComputeRoute(ctx, req)
	if err != nil {
		return nil, err
	}

	actx, ticket := s.adaptSlot.Begin(ctx)
	defer ticket.Done()

	path, err := s.deps.Adapter.AdaptOrRaw(actx, route)
	if err != nil {
		return nil, err
	}

	active := &ActiveRoute{
		Route:        route,
		Path:         path,
		Restrictions: restrictions.EmptySet(route.ID),
		ActivatedAt:  time.Now().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Ended() {
		return nil, ErrSessionEnded
	}
	if !ticket.Commit(func() { s.replaceRoute(active) }) {
		return nil, context.Canceled
	}

	routeActivations.WithLabelValues(string(route.Provider), boolLabel(!path.Degraded)).Inc()
	logger.InfoContext(ctx, "route activated",
		zap.String("route_id", route.ID),
		zap.String("provider", string(route.Provider)),
		zap.Bool("matched", !path.Degraded),
	)
	s.emit(s.routeEvent(active))
	return active, nil
}

// replaceRoute swaps in a new route. Called with mu held. The old loop and
// restriction load stop first and the new snapshot, with an empty
// restriction set, is installed before the monitor is reset, so a tick still
// in flight can only see the new route. The loop then restarts and
// restrictions load in the background.
func (s *Session) replaceRoute(active *ActiveRoute) {
	s.restrictSlot.Cancel()
	if s.stopMonitor != nil {
		s.stopMonitor()
		s.stopMonitor = nil
	}

	s.route.Store(active)
	s.snapshot.Store(hazard.NewSnapshot(active.Route.ID, active.Path.Geometry, active.Restrictions, s.Profile()))
	s.monitor.Reset()

	if s.deps.MonitorEnabled {
		mctx, stopMonitor := context.WithCancel(s.ctx)
		s.stopMonitor = stopMonitor
		s.group.Go(mctx, "hazard-monitor", s.monitor.Run)
	}

	rctx, ticket := s.restrictSlot.Begin(s.ctx)
	s.group.Go(rctx, "restriction-load", func(ctx context.Context) {
		s.loadRestrictions(ctx, ticket, active)
	})
}

func (s *Session) loadRestrictions(ctx context.Context, ticket async.Ticket, active *ActiveRoute) {
	defer ticket.Done()

	set, err := s.deps.Restrictions.LoadRestrictions(ctx, active.Route, s.Profile())
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			logger.WarnContext(ctx, "restriction load aborted", zap.Error(err))
		}
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	ticket.Commit(func() {
		next := *active
		next.Restrictions = set
		s.route.Store(&next)
		if snap := s.snapshot.Load(); snap != nil && snap.RouteID == active.Route.ID {
			s.snapshot.Store(snap.WithRestrictions(set))
		}
		s.monitor.Refresh()
		s.emit(s.restrictionsEvent(set))
	})
}

// UpdateProfile replaces the vehicle profile. The active advisory is
// cleared and the next tick re-evaluates.
func (s *Session) UpdateProfile(profile vehicle.Profile) error {
	if s.Ended() {
		return ErrSessionEnded
	}
	if err := profile.Validate(); err != nil {
		return err
	}
	s.touch()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.profile.Store(&profile)
	if snap := s.snapshot.Load(); snap != nil {
		s.snapshot.Store(snap.WithProfile(profile))
	}
	s.monitor.Force()
	return nil
}

// UpdatePosition records a vehicle fix.
func (s *Session) UpdatePosition(p Position) error {
	if s.Ended() {
		return ErrSessionEnded
	}
	if p.RecordedAt.IsZero() {
		p.RecordedAt = time.Now().UTC()
	}
	s.position.Store(&p)
	s.touch()
	return nil
}

// Dismiss suppresses the active advisory's restriction for the rest of the
// route.
func (s *Session) Dismiss(advisoryID string) error {
	if s.Ended() {
		return ErrSessionEnded
	}
	active, ok := s.monitor.Active()
	if !ok || active.ID != advisoryID {
		return ErrAdvisoryNotFound
	}
	s.touch()

	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.snapshot.Load()
	if snap == nil {
		return ErrNoActiveRoute
	}
	s.snapshot.Store(snap.WithDismissed(active.Restriction.ID))
	s.monitor.Refresh()
	return nil
}

// End stops every loop and in-flight call, waits for the goroutines, then
// emits the final event and closes Events. Calling it again is a no-op.
func (s *Session) End(reason string) {
	s.endOnce.Do(func() {
		s.mu.Lock()
		s.ended.Store(true)
		s.routes.Cancel()
		s.adaptSlot.Cancel()
		s.restrictSlot.Cancel()
		s.stop()
		s.mu.Unlock()

		s.group.Wait()

		sessionsEnded.WithLabelValues(reason).Inc()
		logger.InfoContext(s.ctx, "session ended", zap.String("reason", reason))
		s.dispatch(s.endedEvent(reason, time.Now().UTC()))
		close(s.events)
	})
}

// Wait blocks until every goroutine of the session has exited.
func (s *Session) Wait() {
	s.group.Wait()
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
