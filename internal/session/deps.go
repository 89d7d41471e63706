package session

import (
	"context"
	"time"

	"github.com/richxcame/truckroute/internal/hazard"
	"github.com/richxcame/truckroute/internal/maps"
	"github.com/richxcame/truckroute/internal/restrictions"
	"github.com/richxcame/truckroute/internal/traffic"
	"github.com/richxcame/truckroute/internal/vehicle"
	"github.com/richxcame/truckroute/pkg/eventbus"
	"github.com/richxcame/truckroute/pkg/websocket"
)

// RouteComputer computes routes for one session and cancels a superseded
// computation.
type RouteComputer interface {
	ComputeRoute(ctx context.Context, req *maps.RouteRequest) (*maps.RouteResult, error)
	Cancel()
}

// PathAdapter snaps a route onto the road network, degrading to the raw
// geometry when matching is unavailable.
type PathAdapter interface {
	AdaptOrRaw(ctx context.Context, route *maps.RouteResult) (*maps.MatchedPath, error)
}

// RestrictionLoader loads the restriction set of a route.
type RestrictionLoader interface {
	LoadRestrictions(ctx context.Context, route *maps.RouteResult, profile vehicle.Profile) (*restrictions.RestrictionSet, error)
}

// TrafficRunner refreshes congestion on its own cadence until ctx is done.
type TrafficRunner interface {
	Run(ctx context.Context, interval time.Duration, position traffic.PositionFunc, publish func(traffic.CongestionSample))
}

// Notifier pushes a frame to every client connected to a session.
type Notifier interface {
	SendToSession(sessionID string, msg *websocket.Message) bool
}

// Dependencies are the collaborators shared by every session.
type Dependencies struct {
	// NewRouteComputer returns a per-session computer, so supersede only
	// cancels that session's calls.
	NewRouteComputer func() RouteComputer
	Adapter          PathAdapter
	Restrictions     RestrictionLoader
	// NewTraffic returns a per-session classifier. Nil disables traffic.
	NewTraffic      func() TrafficRunner
	TrafficInterval time.Duration

	MonitorEnabled bool
	Hazard         hazard.Settings

	// Publisher and Notifier are optional.
	Publisher eventbus.Publisher
	Notifier  Notifier
}
