package maps

import (
	"fmt"
	"time"

	"github.com/paulmach/orb"
	"github.com/richxcame/truckroute/internal/vehicle"
)

// Provider identifies an upstream maps backend.
type Provider string

const (
	ProviderMapbox Provider = "mapbox"
	ProviderORS    Provider = "openrouteservice"
	ProviderHERE   Provider = "here"
	ProviderTomTom Provider = "tomtom"
)

// Coordinate represents a geographic point
type Coordinate struct {
	Latitude  float64 `json:"latitude" validate:"latitude"`
	Longitude float64 `json:"longitude" validate:"longitude"`
}

// Point converts to an orb point (lon, lat).
func (c Coordinate) Point() orb.Point {
	return orb.Point{c.Longitude, c.Latitude}
}

// CoordinateFromPoint converts an orb point back to a Coordinate.
func CoordinateFromPoint(p orb.Point) Coordinate {
	return Coordinate{Latitude: p.Lat(), Longitude: p.Lon()}
}

// LineString converts coordinates to an orb line.
func LineString(coords []Coordinate) orb.LineString {
	line := make(orb.LineString, len(coords))
	for i, c := range coords {
		line[i] = c.Point()
	}
	return line
}

// Preferences are the avoid flags a driver can set on a route.
type Preferences struct {
	AvoidTolls   bool `json:"avoid_tolls,omitempty"`
	AvoidFerries bool `json:"avoid_ferries,omitempty"`
	AvoidUnpaved bool `json:"avoid_unpaved,omitempty"`
	AvoidTunnels bool `json:"avoid_tunnels,omitempty"`
	AvoidBorders bool `json:"avoid_borders,omitempty"`
}

// RouteRequest represents a request for route calculation
type RouteRequest struct {
	Origin      Coordinate      `json:"origin" validate:"required"`
	Destination Coordinate      `json:"destination" validate:"required"`
	Profile     vehicle.Profile `json:"profile"`
	Preferences Preferences     `json:"preferences"`
}

// Fingerprint identifies equivalent requests for caching. Coordinates are
// rounded to ~1 m.
func (r *RouteRequest) Fingerprint() string {
	p := r.Preferences
	return fmt.Sprintf("%.5f,%.5f>%.5f,%.5f|%s|%t%t%t%t%t",
		r.Origin.Latitude, r.Origin.Longitude,
		r.Destination.Latitude, r.Destination.Longitude,
		r.Profile.Fingerprint(),
		p.AvoidTolls, p.AvoidFerries, p.AvoidUnpaved, p.AvoidTunnels, p.AvoidBorders)
}

// Leg summarises one leg of a route.
type Leg struct {
	DistanceMeters  float64 `json:"distance_m"`
	DurationSeconds float64 `json:"duration_s"`
	Summary         string  `json:"summary,omitempty"`
}

// RouteResult is one computed route. It is owned by a session and replaced,
// never mutated, when a newer route is computed.
type RouteResult struct {
	ID              string       `json:"id"`
	Geometry        []Coordinate `json:"geometry"`
	DistanceMeters  float64      `json:"distance_m"`
	DurationSeconds float64      `json:"duration_s"`
	Legs            []Leg        `json:"legs,omitempty"`
	Provider        Provider     `json:"provider"`
	ComputedAt      time.Time    `json:"computed_at"`
}

// Maneuver is one turn-by-turn instruction on a matched path.
type Maneuver struct {
	Type           string     `json:"type"`
	Modifier       string     `json:"modifier,omitempty"`
	Instruction    string     `json:"instruction,omitempty"`
	RoadName       string     `json:"road_name,omitempty"`
	Location       Coordinate `json:"location"`
	DistanceMeters float64    `json:"distance_m"`
}

// Matching is one candidate returned by a map matcher.
type Matching struct {
	Geometry   []Coordinate
	Maneuvers  []Maneuver
	Confidence float64
}

// MatchedPath is the road-snapped form of a RouteResult. Degraded paths are
// the raw route geometry without maneuvers.
type MatchedPath struct {
	RouteID    string       `json:"route_id"`
	Geometry   []Coordinate `json:"geometry"`
	Maneuvers  []Maneuver   `json:"maneuvers"`
	Confidence float64      `json:"confidence"`
	Degraded   bool         `json:"degraded"`
}

// FlowReading is the raw traffic flow near a point. Speeds are km/h. A zero
// free-flow speed means it was not reported; a zero current speed is a
// standstill unless SpeedMissing is set.
type FlowReading struct {
	Provider      Provider
	CurrentSpeed  float64
	FreeFlowSpeed float64
	SpeedMissing  bool
	JamFactor     *float64
	Closed        bool
}
