package restrictions

import (
	"time"

	"github.com/richxcame/truckroute/internal/maps"
	"github.com/richxcame/truckroute/internal/vehicle"
)

// Restriction is one posted limit on a road, in canonical units.
type Restriction struct {
	ID         string            `json:"id"`
	Type       vehicle.Dimension `json:"type"`
	Limit      float64           `json:"limit"`
	RoadID     string            `json:"road_id"`
	RoadName   string            `json:"road_name,omitempty"`
	Location   maps.Coordinate   `json:"location"`
	Segment    []maps.Coordinate `json:"segment,omitempty"`
	Confidence float64           `json:"confidence"`
	RawValue   string            `json:"raw_value,omitempty"`
}

// Unit returns the unit of Limit.
func (r Restriction) Unit() string {
	return r.Type.Unit()
}

// RestrictionSet is the restriction data loaded for one route. It is never
// mutated after it has been built.
type RestrictionSet struct {
	RouteID      string        `json:"route_id"`
	Restrictions []Restriction `json:"restrictions"`
	Degraded     bool          `json:"degraded"`
	Skipped      int           `json:"skipped"`
	LoadedAt     time.Time     `json:"loaded_at"`
}

// EmptySet returns the placeholder installed while restrictions load.
func EmptySet(routeID string) *RestrictionSet {
	return &RestrictionSet{RouteID: routeID, Restrictions: []Restriction{}}
}

// Len returns the number of restrictions, tolerating a nil set.
func (s *RestrictionSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Restrictions)
}

// FilterForProfile returns the restrictions on dimensions the vehicle has a
// value for.
func (s *RestrictionSet) FilterForProfile(profile vehicle.Profile) []Restriction {
	if s == nil {
		return nil
	}
	out := make([]Restriction, 0, len(s.Restrictions))
	for _, r := range s.Restrictions {
		if _, ok := profile.Value(r.Type); ok {
			out = append(out, r)
		}
	}
	return out
}

// Element is a tagged OSM object near a sample point. Geometry is set for
// ways only.
type Element struct {
	RoadID   string
	Tags     map[string]string
	Location maps.Coordinate
	Geometry []maps.Coordinate
}
