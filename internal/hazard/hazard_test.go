package hazard

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/richxcame/truckroute/internal/maps"
	"github.com/richxcame/truckroute/internal/restrictions"
	"github.com/richxcame/truckroute/internal/vehicle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ===== helpers =====

// northRoute runs ~4 km due north; 0.001 degrees of latitude is ~111 m.
func northRoute() []maps.Coordinate {
	return []maps.Coordinate{
		{Latitude: 48.000, Longitude: 11.0},
		{Latitude: 48.018, Longitude: 11.0},
		{Latitude: 48.036, Longitude: 11.0},
	}
}

func at(lat float64) maps.Coordinate {
	return maps.Coordinate{Latitude: lat, Longitude: 11.0}
}

func restriction(id string, d vehicle.Dimension, limit, lat float64) restrictions.Restriction {
	return restrictions.Restriction{
		ID:       id,
		Type:     d,
		Limit:    limit,
		RoadID:   "way/" + id,
		RoadName: "Test Road",
		Location: at(lat),
	}
}

func snapshotWith(profile vehicle.Profile, rs ...restrictions.Restriction) *Snapshot {
	return NewSnapshot("route-1", northRoute(), &restrictions.RestrictionSet{RouteID: "route-1", Restrictions: rs}, profile)
}

var truck = vehicle.Profile{HeightMeters: 4.1, WidthMeters: 2.5, LengthMeters: 16.5, WeightTonnes: 40}

// ===== Exceedance & Grade =====

func TestExceedance(t *testing.T) {
	tests := []struct {
		name     string
		value    float64
		limit    float64
		margin   float64
		expected float64
	}{
		{"over the margin", 4.1, 4.0, 0.1, 0.2},
		{"under the margin", 3.8, 4.0, 0.1, -0.1},
		{"weight at limit", 40, 40, 0.5, 0.5},
		{"no margin", 2.5, 2.55, 0, -0.05},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, Exceedance(tt.value, tt.limit, tt.margin), 1e-9)
		})
	}
}

func TestGrade(t *testing.T) {
	tests := []struct {
		exceedance float64
		limit      float64
		expected   Severity
	}{
		{0.05, 4.0, SeverityMarginal},
		{0.1, 4.0, SeverityModerate},
		{0.3, 4.0, SeveritySevere},
		{1, 0, SeveritySevere},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, Grade(tt.exceedance, tt.limit))
	}
}

func TestMargins(t *testing.T) {
	m := DefaultSettings().Margins
	assert.Equal(t, 0.10, m.For(vehicle.DimensionHeight))
	assert.Equal(t, 0.10, m.For(vehicle.DimensionLength))
	assert.Equal(t, 0.5, m.For(vehicle.DimensionWeight))
}

// ===== Trigger =====

func TestTrigger_Time(t *testing.T) {
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	tr := NewTrigger(5*time.Second, 100)

	assert.True(t, tr.Observe(at(48.0), start), "first observation is due")
	assert.False(t, tr.Observe(at(48.0), start.Add(2*time.Second)))
	assert.False(t, tr.Observe(at(48.0), start.Add(4900*time.Millisecond)))
	assert.True(t, tr.Observe(at(48.0), start.Add(5*time.Second)))
	assert.False(t, tr.Observe(at(48.0), start.Add(6*time.Second)))
}

func TestTrigger_CumulativeDistance(t *testing.T) {
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	tr := NewTrigger(5*time.Second, 100)
	require.True(t, tr.Observe(at(48.0), start))

	// ~40 m per step.
	assert.False(t, tr.Observe(at(48.00036), start.Add(time.Second)))
	assert.False(t, tr.Observe(at(48.00072), start.Add(2*time.Second)))
	assert.True(t, tr.Observe(at(48.00108), start.Add(3*time.Second)))
}

func TestTrigger_Reset(t *testing.T) {
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	tr := NewTrigger(5*time.Second, 100)
	require.True(t, tr.Observe(at(48.0), start))
	tr.Reset()
	assert.True(t, tr.Observe(at(48.0), start.Add(time.Second)))
}

// ===== Evaluate =====

func TestEvaluate(t *testing.T) {
	settings := DefaultSettings()

	tests := []struct {
		name       string
		snapshot   *Snapshot
		position   maps.Coordinate
		expectID   string
		expectNone bool
	}{
		{
			name:     "conflict ahead",
			snapshot: snapshotWith(truck, restriction("bridge", vehicle.DimensionHeight, 3.9, 48.009)),
			position: at(48.0),
			expectID: "bridge",
		},
		{
			name:       "clearance above the vehicle",
			snapshot:   snapshotWith(truck, restriction("bridge", vehicle.DimensionHeight, 4.3, 48.009)),
			position:   at(48.0),
			expectNone: true,
		},
		{
			name:       "beyond advisory distance",
			snapshot:   snapshotWith(truck, restriction("far", vehicle.DimensionHeight, 3.9, 48.030)),
			position:   at(48.0),
			expectNone: true,
		},
		{
			name:       "already passed",
			snapshot:   snapshotWith(truck, restriction("behind", vehicle.DimensionHeight, 3.9, 48.005)),
			position:   at(48.006),
			expectNone: true,
		},
		{
			name:       "dismissed",
			snapshot:   snapshotWith(truck, restriction("bridge", vehicle.DimensionHeight, 3.9, 48.009)).WithDismissed("bridge"),
			position:   at(48.0),
			expectNone: true,
		},
		{
			name: "nearest wins",
			snapshot: snapshotWith(truck,
				restriction("far", vehicle.DimensionHeight, 3.0, 48.018),
				restriction("near", vehicle.DimensionHeight, 4.0, 48.009),
			),
			position: at(48.0),
			expectID: "near",
		},
		{
			name: "equal distance prefers larger exceedance",
			snapshot: snapshotWith(truck,
				restriction("height", vehicle.DimensionHeight, 4.0, 48.009),
				restriction("width", vehicle.DimensionWidth, 2.0, 48.009),
			),
			position: at(48.0),
			expectID: "width",
		},
		{
			name: "road beside the route is ignored",
			snapshot: snapshotWith(truck, restrictions.Restriction{
				ID: "side", Type: vehicle.DimensionHeight, Limit: 3.0,
				Location: maps.Coordinate{Latitude: 48.009, Longitude: 11.00134},
			}),
			position:   at(48.0),
			expectNone: true,
		},
		{
			name:       "dimension missing from profile",
			snapshot:   snapshotWith(vehicle.Profile{HeightMeters: 4.1}, restriction("weight", vehicle.DimensionWeight, 7.5, 48.009)),
			position:   at(48.0),
			expectNone: true,
		},
		{
			name:       "vehicle off route",
			snapshot:   snapshotWith(truck, restriction("bridge", vehicle.DimensionHeight, 3.9, 48.009)),
			position:   maps.Coordinate{Latitude: 48.0, Longitude: 11.02},
			expectNone: true,
		},
		{
			name:       "no restrictions",
			snapshot:   NewSnapshot("route-1", northRoute(), nil, truck),
			position:   at(48.0),
			expectNone: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Evaluate(tt.snapshot, tt.position, settings)
			if tt.expectNone {
				assert.Nil(t, c)
				return
			}
			require.NotNil(t, c)
			assert.Equal(t, tt.expectID, c.Restriction.ID)
		})
	}
}

func TestEvaluate_ConflictDetails(t *testing.T) {
	snap := snapshotWith(truck, restriction("bridge", vehicle.DimensionHeight, 3.9, 48.009))
	c := Evaluate(snap, at(48.0), DefaultSettings())
	require.NotNil(t, c)

	assert.InDelta(t, 0.3, c.Exceedance, 1e-9)
	assert.Equal(t, SeveritySevere, c.Severity)
	assert.InDelta(t, 1002, c.DistanceAhead, 5)
	assert.Equal(t, 4.1, c.VehicleValue)
	assert.Equal(t, "Posted height limit 3.90 m on Test Road in 1.0 km. Your vehicle: 4.10 m.", c.Message())
}

// bentWay turns east after ~1 km along the route: its bounding box centre
// lies ~370 m off the road.
func bentWay(limit float64) restrictions.Restriction {
	r := restriction("bent", vehicle.DimensionHeight, limit, 0)
	r.Segment = []maps.Coordinate{
		{Latitude: 48.002, Longitude: 11.0},
		{Latitude: 48.011, Longitude: 11.0},
		{Latitude: 48.011, Longitude: 11.0134},
	}
	r.Location = maps.Coordinate{Latitude: 48.0065, Longitude: 11.0067}
	return r
}

func TestSnapshot_PlacesWayWhereRouteEntersIt(t *testing.T) {
	snap := snapshotWith(truck, bentWay(4.0))
	require.Len(t, snap.Placed, 1)
	assert.InDelta(t, 0, snap.Placed[0].Offset, 1)
	assert.InDelta(t, 222, snap.Placed[0].Along, 3)

	c := Evaluate(snap, at(48.0), DefaultSettings())
	require.NotNil(t, c)
	assert.Equal(t, "bent", c.Restriction.ID)
	assert.InDelta(t, 222, c.DistanceAhead, 3)
	assert.InDelta(t, 0.2, c.Exceedance, 1e-9)
}

func TestSnapshot_WayEnteredMidRoute(t *testing.T) {
	r := restriction("long", vehicle.DimensionHeight, 3.8, 0)
	r.Segment = []maps.Coordinate{{Latitude: 48.010, Longitude: 11.0}, {Latitude: 48.050, Longitude: 11.0}}
	r.Location = maps.Coordinate{Latitude: 48.030, Longitude: 11.0}

	snap := snapshotWith(truck, r)
	require.Len(t, snap.Placed, 1)
	assert.InDelta(t, 1112, snap.Placed[0].Along, 3)
	assert.InDelta(t, 0, snap.Placed[0].Offset, 1)
}

func TestSnapshot_WayNeverReachedUsesClosestVertex(t *testing.T) {
	r := restriction("side", vehicle.DimensionHeight, 3.8, 0)
	r.Segment = []maps.Coordinate{{Latitude: 48.005, Longitude: 11.001}, {Latitude: 48.005, Longitude: 11.01}}

	snap := snapshotWith(truck, r)
	require.Len(t, snap.Placed, 1)
	assert.InDelta(t, 74, snap.Placed[0].Offset, 2)
	assert.InDelta(t, 556, snap.Placed[0].Along, 3)
	assert.Nil(t, Evaluate(snap, at(48.0), DefaultSettings()), "beyond the corridor")
}

// ===== MOCK: Monitor inputs =====

type monitorHarness struct {
	mu       sync.Mutex
	snapshot *Snapshot
	position *maps.Coordinate
	clock    time.Time
	events   []Event
}

func (h *monitorHarness) getSnapshot() *Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.snapshot
}

func (h *monitorHarness) getPosition() (maps.Coordinate, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.position == nil {
		return maps.Coordinate{}, false
	}
	return *h.position, true
}

func (h *monitorHarness) record(e Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, e)
}

func (h *monitorHarness) moveTo(lat float64, advance time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	p := at(lat)
	h.position = &p
	h.clock = h.clock.Add(advance)
}

func (h *monitorHarness) eventTypes() []EventType {
	h.mu.Lock()
	defer h.mu.Unlock()
	types := make([]EventType, len(h.events))
	for i, e := range h.events {
		types[i] = e.Type
	}
	return types
}

func newHarness(snap *Snapshot) (*Monitor, *monitorHarness) {
	h := &monitorHarness{snapshot: snap, clock: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	m := NewMonitor(DefaultSettings(), h.getSnapshot, h.getPosition, h.record)
	m.now = func() time.Time {
		h.mu.Lock()
		defer h.mu.Unlock()
		return h.clock
	}
	return m, h
}

// ===== Monitor =====

func TestMonitor_EventsOnChangeOnly(t *testing.T) {
	m, h := newHarness(snapshotWith(truck, restriction("bridge", vehicle.DimensionHeight, 3.9, 48.009)))

	assert.False(t, m.Tick(), "no position yet")

	h.moveTo(48.0, 0)
	assert.True(t, m.Tick())
	assert.Equal(t, []EventType{EventRaised}, h.eventTypes())

	h.moveTo(48.0, time.Second)
	assert.False(t, m.Tick(), "throttled")

	h.moveTo(48.0, 5*time.Second)
	assert.True(t, m.Tick())
	assert.Equal(t, []EventType{EventRaised}, h.eventTypes(), "same distance, no event")

	h.moveTo(48.002, time.Second)
	assert.True(t, m.Tick(), "moved ~220 m")
	assert.Equal(t, []EventType{EventRaised, EventUpdated}, h.eventTypes())

	active, ok := m.Active()
	require.True(t, ok)
	assert.InDelta(t, 780, active.DistanceAhead, 5)

	h.moveTo(48.010, time.Minute)
	assert.True(t, m.Tick())
	assert.Equal(t, []EventType{EventRaised, EventUpdated, EventCleared}, h.eventTypes())

	_, ok = m.Active()
	assert.False(t, ok)
}

func TestMonitor_ForceClearsAndReevaluates(t *testing.T) {
	m, h := newHarness(snapshotWith(truck, restriction("bridge", vehicle.DimensionHeight, 3.9, 48.009)))
	h.moveTo(48.0, 0)
	require.True(t, m.Tick())
	first, _ := m.Active()

	// Profile replaced with a lower vehicle.
	h.mu.Lock()
	h.snapshot = h.snapshot.WithProfile(vehicle.Profile{HeightMeters: 3.5})
	h.mu.Unlock()
	m.Force()

	h.moveTo(48.0, 100*time.Millisecond)
	assert.True(t, m.Tick(), "force ignores the throttle")
	assert.Equal(t, []EventType{EventRaised, EventCleared}, h.eventTypes())
	assert.Equal(t, first.ID, h.events[1].Advisory.ID)
}

func TestMonitor_ForceRaisesFreshAdvisory(t *testing.T) {
	m, h := newHarness(snapshotWith(truck, restriction("bridge", vehicle.DimensionHeight, 3.9, 48.009)))
	h.moveTo(48.0, 0)
	require.True(t, m.Tick())
	first, _ := m.Active()

	m.Force()
	h.moveTo(48.0, 100*time.Millisecond)
	require.True(t, m.Tick())

	assert.Equal(t, []EventType{EventRaised, EventCleared, EventRaised}, h.eventTypes())
	second, ok := m.Active()
	require.True(t, ok)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestMonitor_DismissClearsActive(t *testing.T) {
	m, h := newHarness(snapshotWith(truck, restriction("bridge", vehicle.DimensionHeight, 3.9, 48.009)))
	h.moveTo(48.0, 0)
	require.True(t, m.Tick())

	h.mu.Lock()
	h.snapshot = h.snapshot.WithDismissed("bridge")
	h.mu.Unlock()
	m.Refresh()

	h.moveTo(48.0, 100*time.Millisecond)
	require.True(t, m.Tick())
	require.Len(t, h.events, 2)
	assert.Equal(t, EventCleared, h.events[1].Type)
	assert.True(t, h.events[1].Advisory.Dismissed)
}

func TestMonitor_ResetAndNoRoute(t *testing.T) {
	m, h := newHarness(snapshotWith(truck, restriction("bridge", vehicle.DimensionHeight, 3.9, 48.009)))
	h.moveTo(48.0, 0)
	require.True(t, m.Tick())

	m.Reset()
	assert.Equal(t, []EventType{EventRaised, EventCleared}, h.eventTypes())

	h.mu.Lock()
	h.snapshot = nil
	h.mu.Unlock()
	assert.False(t, m.Tick())
	assert.Len(t, h.events, 2)
}

func TestMonitor_RouteChangeDropsStaleAdvisory(t *testing.T) {
	m, h := newHarness(snapshotWith(truck, restriction("bridge", vehicle.DimensionHeight, 3.9, 48.009)))
	h.moveTo(48.0, 0)
	require.True(t, m.Tick())

	// a tick that lost the race with a route swap still sees the old route
	m.Reset()
	require.True(t, m.Tick())
	_, ok := m.Active()
	require.True(t, ok)

	h.mu.Lock()
	h.snapshot = NewSnapshot("route-2", northRoute(), nil, truck)
	h.mu.Unlock()
	h.moveTo(48.0, time.Second)

	assert.True(t, m.Tick(), "a new route is evaluated without waiting for the trigger")
	_, ok = m.Active()
	assert.False(t, ok)
	assert.Equal(t, []EventType{EventRaised, EventCleared, EventRaised, EventCleared}, h.eventTypes())

	h.mu.Lock()
	defer h.mu.Unlock()
	assert.Equal(t, "route-1", h.events[3].RouteID)
}

func TestMonitor_RunStopsOnCancel(t *testing.T) {
	m, _ := newHarness(nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("monitor did not stop")
	}
}
