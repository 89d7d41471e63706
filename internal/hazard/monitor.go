package hazard

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/richxcame/truckroute/internal/maps"
	"github.com/richxcame/truckroute/pkg/logger"
	"go.uber.org/zap"
)

// pollInterval is how often the loop consults the trigger.
const pollInterval = time.Second

// SnapshotFunc returns the current evaluation input, or nil when no route
// is active.
type SnapshotFunc func() *Snapshot

// PositionFunc returns the latest vehicle position.
type PositionFunc func() (maps.Coordinate, bool)

// Monitor evaluates the active route against restrictions and keeps at most
// one active advisory. Events are emitted on change only.
type Monitor struct {
	settings Settings
	snapshot SnapshotFunc
	position PositionFunc
	emit     func(Event)
	now      func() time.Time

	force   atomic.Bool
	refresh atomic.Bool

	mu      sync.Mutex
	trigger *Trigger
	active  *Advisory
	routeID string
}

// NewMonitor creates a monitor reading its inputs through the getters. emit
// is called synchronously and must not block.
func NewMonitor(settings Settings, snapshot SnapshotFunc, position PositionFunc, emit func(Event)) *Monitor {
	settings = settings.withDefaults()
	return &Monitor{
		settings: settings,
		snapshot: snapshot,
		position: position,
		emit:     emit,
		now:      time.Now,
		trigger:  NewTrigger(settings.Interval, settings.DistanceTrigger),
	}
}

// Run polls until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	logger.DebugContext(ctx, "hazard monitor started")
	for {
		select {
		case <-ticker.C:
			m.Tick()
		case <-ctx.Done():
			logger.DebugContext(ctx, "hazard monitor stopped")
			return
		}
	}
}

// Force clears the active advisory and evaluates on the next tick
// regardless of the trigger. Used when the vehicle profile changes.
func (m *Monitor) Force() {
	m.force.Store(true)
}

// Refresh evaluates on the next tick without clearing first.
func (m *Monitor) Refresh() {
	m.refresh.Store(true)
}

// Active returns a copy of the active advisory.
func (m *Monitor) Active() (Advisory, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return Advisory{}, false
	}
	return *m.active, true
}

// Reset clears the active advisory and rearms the trigger. Called when the
// route is replaced.
func (m *Monitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clear(m.now())
	m.trigger.Reset()
}

// Tick runs one poll and reports whether an evaluation happened.
func (m *Monitor) Tick() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	snap := m.snapshot()
	if snap == nil {
		m.clear(now)
		return false
	}
	if snap.RouteID != m.routeID {
		// An advisory raised for the previous route never survives a swap.
		m.clear(now)
		m.routeID = snap.RouteID
		m.trigger.Reset()
	}
	pos, ok := m.position()
	if !ok {
		return false
	}

	forced := m.force.Swap(false)
	refreshed := m.refresh.Swap(false)
	due := m.trigger.Observe(pos, now)
	if !forced && !refreshed && !due {
		return false
	}
	if forced {
		m.clear(now)
		m.trigger.Reset()
		m.trigger.Observe(pos, now)
	}

	start := time.Now()
	conflict := Evaluate(snap, pos, m.settings)
	outcome := "clear"
	if conflict != nil {
		outcome = "conflict"
	}
	recordEvaluation(outcome, time.Since(start).Seconds())

	if m.active != nil && snap.IsDismissed(m.active.Restriction.ID) {
		m.active.Dismissed = true
	}
	m.apply(conflict, now)
	return true
}

func (m *Monitor) apply(c *Conflict, now time.Time) {
	if c == nil {
		m.clear(now)
		return
	}

	if m.active != nil && m.active.Restriction.ID == c.Restriction.ID {
		if math.Abs(m.active.DistanceAhead-c.DistanceAhead) < tieDistance {
			return
		}
		m.active.DistanceAhead = c.DistanceAhead
		m.active.Exceedance = c.Exceedance
		m.active.Severity = c.Severity
		m.active.VehicleValue = c.VehicleValue
		m.active.Message = c.Message()
		m.active.UpdatedAt = now
		m.publish(EventUpdated, *m.active, now)
		return
	}

	m.clear(now)
	m.active = &Advisory{
		ID:            uuid.NewString(),
		Restriction:   c.Restriction,
		VehicleValue:  c.VehicleValue,
		Exceedance:    c.Exceedance,
		Severity:      c.Severity,
		DistanceAhead: c.DistanceAhead,
		Message:       c.Message(),
		RaisedAt:      now,
		UpdatedAt:     now,
	}
	logger.Info("hazard advisory raised",
		zap.String("route_id", m.routeID),
		zap.String("restriction_id", c.Restriction.ID),
		zap.String("severity", string(c.Severity)),
		zap.Float64("distance_ahead", c.DistanceAhead),
		zap.Float64("exceedance", c.Exceedance),
	)
	m.publish(EventRaised, *m.active, now)
}

func (m *Monitor) clear(now time.Time) {
	if m.active == nil {
		return
	}
	cleared := *m.active
	m.active = nil
	m.publish(EventCleared, cleared, now)
}

func (m *Monitor) publish(t EventType, a Advisory, now time.Time) {
	e := Event{Type: t, RouteID: m.routeID, Advisory: a, At: now}
	recordEvent(e)
	if m.emit != nil {
		m.emit(e)
	}
}
