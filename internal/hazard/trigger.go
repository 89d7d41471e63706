package hazard

import (
	"time"

	"github.com/richxcame/truckroute/internal/maps"
	"github.com/richxcame/truckroute/pkg/geo"
)

// Trigger throttles evaluations by elapsed time and distance travelled,
// whichever comes first. It is owned by one goroutine.
type Trigger struct {
	interval time.Duration
	distance float64

	primed    bool
	lastEval  time.Time
	lastPos   maps.Coordinate
	travelled float64
}

// NewTrigger returns a trigger that fires after interval or after distance
// metres of movement.
func NewTrigger(interval time.Duration, distance float64) *Trigger {
	return &Trigger{interval: interval, distance: distance}
}

// Observe records a position and reports whether an evaluation is due. The
// first observation is always due.
func (t *Trigger) Observe(pos maps.Coordinate, now time.Time) bool {
	if !t.primed {
		t.fire(pos, now)
		return true
	}

	t.travelled += geo.DistanceMeters(t.lastPos.Latitude, t.lastPos.Longitude, pos.Latitude, pos.Longitude)
	t.lastPos = pos

	if now.Sub(t.lastEval) >= t.interval || t.travelled >= t.distance {
		t.fire(pos, now)
		return true
	}
	return false
}

// Reset makes the next observation due.
func (t *Trigger) Reset() {
	t.primed = false
	t.travelled = 0
}

func (t *Trigger) fire(pos maps.Coordinate, now time.Time) {
	t.primed = true
	t.lastEval = now
	t.lastPos = pos
	t.travelled = 0
}
