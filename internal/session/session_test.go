package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/richxcame/truckroute/internal/hazard"
	"github.com/richxcame/truckroute/internal/maps"
	"github.com/richxcame/truckroute/internal/restrictions"
	"github.com/richxcame/truckroute/internal/traffic"
	"github.com/richxcame/truckroute/internal/vehicle"
	"github.com/richxcame/truckroute/pkg/eventbus"
	"github.com/richxcame/truckroute/pkg/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ===== MOCK: RouteComputer =====

type fakeComputer struct {
	calls    atomic.Int32
	canceled atomic.Int32
	err      error
}

func (f *fakeComputer) ComputeRoute(ctx context.Context, req *maps.RouteRequest) (*maps.RouteResult, error) {
	n := f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return &maps.RouteResult{
		ID:             fmt.Sprintf("route-%d", n),
		Geometry:       northRoute(),
		DistanceMeters: 4000,
		Provider:       maps.ProviderMapbox,
	}, nil
}

func (f *fakeComputer) Cancel() { f.canceled.Add(1) }

// ===== MOCK: PathAdapter =====

type rawAdapter struct{}

func (rawAdapter) AdaptOrRaw(ctx context.Context, route *maps.RouteResult) (*maps.MatchedPath, error) {
	return &maps.MatchedPath{RouteID: route.ID, Geometry: route.Geometry, Maneuvers: []maps.Maneuver{}, Degraded: true}, nil
}

// ===== MOCK: RestrictionLoader =====

// gatedLoader holds each load until release is called for its route, or its
// context ends.
type gatedLoader struct {
	mu       sync.Mutex
	gates    map[string]chan struct{}
	canceled []string
	set      func(routeID string) *restrictions.RestrictionSet
}

func newGatedLoader(set func(routeID string) *restrictions.RestrictionSet) *gatedLoader {
	return &gatedLoader{gates: map[string]chan struct{}{}, set: set}
}

func (g *gatedLoader) gate(routeID string) chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch, ok := g.gates[routeID]
	if !ok {
		ch = make(chan struct{})
		g.gates[routeID] = ch
	}
	return ch
}

func (g *gatedLoader) release(routeID string) {
	close(g.gate(routeID))
}

func (g *gatedLoader) canceledRoutes() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.canceled...)
}

func (g *gatedLoader) LoadRestrictions(ctx context.Context, route *maps.RouteResult, profile vehicle.Profile) (*restrictions.RestrictionSet, error) {
	select {
	case <-g.gate(route.ID):
		return g.set(route.ID), nil
	case <-ctx.Done():
		g.mu.Lock()
		g.canceled = append(g.canceled, route.ID)
		g.mu.Unlock()
		return nil, ctx.Err()
	}
}

// ===== MOCK: TrafficRunner =====

type blockingTraffic struct {
	stopped atomic.Bool
}

func (b *blockingTraffic) Run(ctx context.Context, interval time.Duration, position traffic.PositionFunc, publish func(traffic.CongestionSample)) {
	<-ctx.Done()
	b.stopped.Store(true)
}

// ===== MOCK: Publisher & Notifier =====

type recordingPublisher struct {
	mu       sync.Mutex
	subjects []string
}

func (p *recordingPublisher) Publish(ctx context.Context, subject string, event *eventbus.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subjects = append(p.subjects, subject)
	return nil
}

func (p *recordingPublisher) published() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.subjects...)
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []*websocket.Message
}

func (n *recordingNotifier) SendToSession(sessionID string, msg *websocket.Message) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, msg)
	return true
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.messages)
}

// ===== helpers =====

func northRoute() []maps.Coordinate {
	return []maps.Coordinate{
		{Latitude: 48.000, Longitude: 11.0},
		{Latitude: 48.018, Longitude: 11.0},
		{Latitude: 48.036, Longitude: 11.0},
	}
}

func bridgeSet(routeID string) *restrictions.RestrictionSet {
	return &restrictions.RestrictionSet{
		RouteID: routeID,
		Restrictions: []restrictions.Restriction{{
			ID:       "way/100:maxheight",
			Type:     vehicle.DimensionHeight,
			Limit:    3.9,
			RoadID:   "way/100",
			RoadName: "Low Bridge",
			Location: maps.Coordinate{Latitude: 48.009, Longitude: 11.0},
		}},
		LoadedAt: time.Now().UTC(),
	}
}

var truck = vehicle.Profile{HeightMeters: 4.1, WidthMeters: 2.55, WeightTonnes: 40, AxleCount: 5, Commercial: true}

var trip = Destination{
	Origin:      maps.Coordinate{Latitude: 48.0, Longitude: 11.0},
	Destination: maps.Coordinate{Latitude: 48.036, Longitude: 11.0},
}

type testEnv struct {
	deps      Dependencies
	computer  *fakeComputer
	loader    *gatedLoader
	traffic   *blockingTraffic
	publisher *recordingPublisher
	notifier  *recordingNotifier
}

func newTestEnv() *testEnv {
	env := &testEnv{
		computer:  &fakeComputer{},
		loader:    newGatedLoader(bridgeSet),
		traffic:   &blockingTraffic{},
		publisher: &recordingPublisher{},
		notifier:  &recordingNotifier{},
	}
	env.deps = Dependencies{
		NewRouteComputer: func() RouteComputer { return env.computer },
		Adapter:          rawAdapter{},
		Restrictions:     env.loader,
		NewTraffic:       func() TrafficRunner { return env.traffic },
		Hazard:           hazard.DefaultSettings(),
		Publisher:        env.publisher,
		Notifier:         env.notifier,
	}
	return env
}

func (env *testEnv) newSession(t *testing.T) *Session {
	t.Helper()
	s := newSession(context.Background(), "session-1", truck, &env.deps)
	t.Cleanup(func() { s.End(ReasonShutdown) })
	return s
}

// nextEvent returns the next event of the given type, skipping others.
func nextEvent(t *testing.T, s *Session, eventType string) Event {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case e, ok := <-s.Events():
			require.True(t, ok, "events closed while waiting for %s", eventType)
			if e.Type == eventType {
				return e
			}
		case <-timeout:
			t.Fatalf("no %s event", eventType)
		}
	}
}

func activateAndLoad(t *testing.T, env *testEnv, s *Session) *ActiveRoute {
	t.Helper()
	active, err := s.ActivateRoute(context.Background(), trip)
	require.NoError(t, err)
	env.loader.release(active.Route.ID)
	nextEvent(t, s, eventbus.SubjectRestrictionsReady)
	return active
}

// ===== Route activation =====

func TestActivateRoute_EmptySetThenRestrictions(t *testing.T) {
	env := newTestEnv()
	s := env.newSession(t)

	active, err := s.ActivateRoute(context.Background(), trip)
	require.NoError(t, err)
	assert.Equal(t, "route-1", active.Route.ID)
	assert.Equal(t, 0, active.Restrictions.Len(), "installed with an empty set")

	snap := s.snapshot.Load()
	require.NotNil(t, snap)
	assert.Equal(t, "route-1", snap.RouteID)
	assert.Empty(t, snap.Placed)

	routeEvent := nextEvent(t, s, eventbus.SubjectRouteActivated)
	assert.Equal(t, "route-1", routeEvent.Payload.(eventbus.RouteActivatedData).RouteID)

	env.loader.release("route-1")
	loaded := nextEvent(t, s, eventbus.SubjectRestrictionsReady)
	assert.Equal(t, 1, loaded.Payload.(eventbus.RestrictionsLoadedData).Count)

	current, ok := s.Route()
	require.True(t, ok)
	assert.Equal(t, 1, current.Restrictions.Len())
	assert.Len(t, s.snapshot.Load().Placed, 1)
}

func TestActivateRoute_ReplacementCancelsPreviousLoad(t *testing.T) {
	env := newTestEnv()
	s := env.newSession(t)

	first, err := s.ActivateRoute(context.Background(), trip)
	require.NoError(t, err)
	second, err := s.ActivateRoute(context.Background(), trip)
	require.NoError(t, err)
	require.NotEqual(t, first.Route.ID, second.Route.ID)

	require.Eventually(t, func() bool {
		return len(env.loader.canceledRoutes()) == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{first.Route.ID}, env.loader.canceledRoutes())

	env.loader.release(second.Route.ID)
	loaded := nextEvent(t, s, eventbus.SubjectRestrictionsReady)
	assert.Equal(t, second.Route.ID, loaded.Payload.(eventbus.RestrictionsLoadedData).RouteID)

	current, _ := s.Route()
	assert.Equal(t, second.Route.ID, current.Route.ID)
	assert.Equal(t, second.Route.ID, s.snapshot.Load().RouteID)
}

func TestActivateRoute_ProviderFailure(t *testing.T) {
	env := newTestEnv()
	env.computer.err = fmt.Errorf("route: %w", maps.ErrProviderExhausted)
	s := env.newSession(t)

	_, err := s.ActivateRoute(context.Background(), trip)
	assert.ErrorIs(t, err, maps.ErrProviderExhausted)
	_, ok := s.Route()
	assert.False(t, ok)
}

// ===== Hazard flow =====

func TestSession_AdvisoryLifecycle(t *testing.T) {
	env := newTestEnv()
	s := env.newSession(t)
	activateAndLoad(t, env, s)

	require.NoError(t, s.UpdatePosition(Position{Coordinate: maps.Coordinate{Latitude: 48.0, Longitude: 11.0}}))
	require.True(t, s.monitor.Tick())

	raised := nextEvent(t, s, eventbus.SubjectAdvisoryRaised).Payload.(eventbus.AdvisoryData)
	assert.Equal(t, "way/100:maxheight", raised.RestrictionID)
	assert.Equal(t, "severe", raised.Severity)

	advisory, ok := s.Advisory()
	require.True(t, ok)
	assert.Equal(t, raised.AdvisoryID, advisory.ID)

	// A lower vehicle clears the advisory on the next tick.
	lower := truck
	lower.HeightMeters = 3.5
	require.NoError(t, s.UpdateProfile(lower))
	require.True(t, s.monitor.Tick())

	cleared := nextEvent(t, s, eventbus.SubjectAdvisoryCleared).Payload.(eventbus.AdvisoryData)
	assert.Equal(t, raised.AdvisoryID, cleared.AdvisoryID)
	_, ok = s.Advisory()
	assert.False(t, ok)
}

func TestSession_Dismiss(t *testing.T) {
	env := newTestEnv()
	s := env.newSession(t)
	activateAndLoad(t, env, s)

	require.NoError(t, s.UpdatePosition(Position{Coordinate: maps.Coordinate{Latitude: 48.0, Longitude: 11.0}}))
	require.True(t, s.monitor.Tick())
	advisory, ok := s.Advisory()
	require.True(t, ok)

	assert.ErrorIs(t, s.Dismiss("not-an-advisory"), ErrAdvisoryNotFound)
	require.NoError(t, s.Dismiss(advisory.ID))
	require.True(t, s.monitor.Tick())

	cleared := nextEvent(t, s, eventbus.SubjectAdvisoryCleared).Payload.(eventbus.AdvisoryData)
	assert.True(t, cleared.Dismissed)
	_, ok = s.Advisory()
	assert.False(t, ok)

	// Dismissed restrictions stay suppressed.
	require.NoError(t, s.UpdatePosition(Position{Coordinate: maps.Coordinate{Latitude: 48.003, Longitude: 11.0}}))
	s.monitor.Refresh()
	require.True(t, s.monitor.Tick())
	_, ok = s.Advisory()
	assert.False(t, ok)
}

func TestSession_InvalidProfileRejected(t *testing.T) {
	env := newTestEnv()
	s := env.newSession(t)

	err := s.UpdateProfile(vehicle.Profile{HeightMeters: 9})
	assert.Error(t, err)
	assert.Equal(t, truck, s.Profile())
}

// ===== Fan-out =====

func TestSession_EventsReachBusAndWebSocket(t *testing.T) {
	env := newTestEnv()
	s := env.newSession(t)
	activateAndLoad(t, env, s)

	require.Eventually(t, func() bool {
		return len(env.publisher.published()) >= 2 && env.notifier.count() >= 2
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{eventbus.SubjectRouteActivated, eventbus.SubjectRestrictionsReady}, env.publisher.published()[:2])
}

func TestSession_CongestionStored(t *testing.T) {
	env := newTestEnv()
	s := env.newSession(t)

	_, ok := s.Congestion()
	assert.False(t, ok)

	s.setCongestion(traffic.CongestionSample{Provider: maps.ProviderHERE, Level: 2, SampledAt: time.Now()})
	sample, ok := s.Congestion()
	require.True(t, ok)
	assert.Equal(t, 2, sample.Level)
	assert.Equal(t, 2, nextEvent(t, s, eventbus.SubjectCongestion).Payload.(eventbus.CongestionData).Level)
}

// ===== End =====

func TestSession_EndStopsEverything(t *testing.T) {
	env := newTestEnv()
	env.deps.MonitorEnabled = true
	s := newSession(context.Background(), "session-end", truck, &env.deps)

	_, err := s.ActivateRoute(context.Background(), trip)
	require.NoError(t, err)

	s.End(ReasonClient)
	s.Wait()

	assert.True(t, env.traffic.stopped.Load())
	assert.Contains(t, env.loader.canceledRoutes(), "route-1")
	assert.GreaterOrEqual(t, env.computer.canceled.Load(), int32(1))

	var last Event
	for e := range s.Events() {
		last = e
	}
	assert.Equal(t, eventbus.SubjectSessionEnded, last.Type)
	assert.Equal(t, ReasonClient, last.Payload.(eventbus.SessionEndedData).Reason)

	_, err = s.ActivateRoute(context.Background(), trip)
	assert.ErrorIs(t, err, ErrSessionEnded)
	assert.ErrorIs(t, s.UpdatePosition(Position{}), ErrSessionEnded)

	s.End(ReasonClient)
}

// ===== Manager =====

func TestManager_Lifecycle(t *testing.T) {
	env := newTestEnv()
	m := NewManager(context.Background(), env.deps, time.Minute)

	s, err := m.Create(truck)
	require.NoError(t, err)
	assert.Equal(t, 1, m.Count())

	got, err := m.Get(s.ID)
	require.NoError(t, err)
	assert.Same(t, s, got)

	require.NoError(t, m.End(s.ID, ReasonClient))
	assert.True(t, s.Ended())
	_, err = m.Get(s.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, m.End(s.ID, ReasonClient), ErrSessionNotFound)
}

func TestManager_CreateValidatesProfile(t *testing.T) {
	m := NewManager(context.Background(), newTestEnv().deps, 0)
	_, err := m.Create(vehicle.Profile{AxleCount: 1})
	assert.Error(t, err)
	assert.Equal(t, 0, m.Count())
}

func TestManager_ExpireIdle(t *testing.T) {
	env := newTestEnv()
	m := NewManager(context.Background(), env.deps, 30*time.Minute)

	idle, err := m.Create(truck)
	require.NoError(t, err)
	active, err := m.Create(truck)
	require.NoError(t, err)

	idle.lastSeen.Store(time.Now().Add(-31 * time.Minute).UnixNano())
	require.NoError(t, active.UpdatePosition(Position{Coordinate: maps.Coordinate{Latitude: 48, Longitude: 11}}))

	assert.Equal(t, 1, m.ExpireIdle())
	assert.True(t, idle.Ended())
	assert.False(t, active.Ended())
	assert.Equal(t, 1, m.Count())

	m.Shutdown()
	assert.True(t, active.Ended())
	assert.Equal(t, 0, m.Count())
}
