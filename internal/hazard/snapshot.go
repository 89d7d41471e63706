package hazard

import (
	"math"
	"sort"

	"github.com/richxcame/truckroute/internal/maps"
	"github.com/richxcame/truckroute/internal/restrictions"
	"github.com/richxcame/truckroute/internal/vehicle"
	"github.com/richxcame/truckroute/pkg/geo"
)

// segmentSnapDistance is how close the route must come to a restricted way
// to count as driving on it.
const segmentSnapDistance = 15.0

// Placed is a restriction located along the route.
type Placed struct {
	Restriction restrictions.Restriction
	Along       float64
	Offset      float64
}

// Snapshot is the immutable input of an evaluation. Updates build a new
// snapshot; readers never see a partial change.
type Snapshot struct {
	RouteID   string
	Line      *geo.Polyline
	Placed    []Placed
	Degraded  bool
	Profile   vehicle.Profile
	Dismissed map[string]struct{}
}

// NewSnapshot projects every restriction of set onto the route geometry.
// A nil set yields a snapshot with no restrictions.
func NewSnapshot(routeID string, geometry []maps.Coordinate, set *restrictions.RestrictionSet, profile vehicle.Profile) *Snapshot {
	s := &Snapshot{
		RouteID:   routeID,
		Line:      geo.NewPolyline(maps.LineString(geometry)),
		Profile:   profile,
		Dismissed: map[string]struct{}{},
	}
	return s.WithRestrictions(set)
}

// WithRestrictions returns a copy holding set.
func (s *Snapshot) WithRestrictions(set *restrictions.RestrictionSet) *Snapshot {
	next := *s
	next.Placed = nil
	next.Degraded = false
	if set == nil {
		return &next
	}

	next.Degraded = set.Degraded
	next.Placed = make([]Placed, 0, set.Len())
	for _, r := range set.Restrictions {
		along, offset := place(s.Line, r)
		next.Placed = append(next.Placed, Placed{Restriction: r, Along: along, Offset: offset})
	}
	sort.SliceStable(next.Placed, func(i, j int) bool {
		return next.Placed[i].Along < next.Placed[j].Along
	})
	return &next
}

// place locates r on line. A restriction with a way segment sits where the
// route first comes within segmentSnapDistance of the way; if it never does,
// at the way vertex closest to the route.
func place(line *geo.Polyline, r restrictions.Restriction) (along, offset float64) {
	if len(r.Segment) < 2 {
		p := line.Project(r.Location.Point())
		return p.Along, p.Offset
	}
	way := geo.NewPolyline(maps.LineString(r.Segment))

	offset = math.Inf(1)
	onWay := false
	consider := func(a, o float64) {
		switch {
		case o <= segmentSnapDistance && (!onWay || a < along):
			along, offset, onWay = a, o, true
		case !onWay && o < offset:
			along, offset = a, o
		}
	}
	for _, v := range line.Vertices() {
		consider(v.Along, way.Project(v.Point).Offset)
	}
	for _, v := range way.Vertices() {
		p := line.Project(v.Point)
		consider(p.Along, p.Offset)
	}
	return along, offset
}

// WithProfile returns a copy using profile.
func (s *Snapshot) WithProfile(profile vehicle.Profile) *Snapshot {
	next := *s
	next.Profile = profile
	return &next
}

// WithDismissed returns a copy that also suppresses restrictionID.
func (s *Snapshot) WithDismissed(restrictionID string) *Snapshot {
	next := *s
	next.Dismissed = make(map[string]struct{}, len(s.Dismissed)+1)
	for id := range s.Dismissed {
		next.Dismissed[id] = struct{}{}
	}
	next.Dismissed[restrictionID] = struct{}{}
	return &next
}

// IsDismissed reports whether the driver dismissed restrictionID.
func (s *Snapshot) IsDismissed(restrictionID string) bool {
	_, ok := s.Dismissed[restrictionID]
	return ok
}
