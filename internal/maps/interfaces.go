package maps

import (
	"context"
)

// RoutingProvider computes a route for a vehicle.
type RoutingProvider interface {
	Name() Provider
	Route(ctx context.Context, req *RouteRequest) (*RouteResult, error)
}

// MatchingProvider snaps a trace onto the road network. An empty slice with
// a nil error means the matcher found no matching.
type MatchingProvider interface {
	Name() Provider
	Match(ctx context.Context, trace []Coordinate) ([]Matching, error)
}

// TrafficProvider reports traffic flow near a coordinate.
type TrafficProvider interface {
	Name() Provider
	Flow(ctx context.Context, at Coordinate) (*FlowReading, error)
}
