package hazard

import (
	"time"

	"github.com/richxcame/truckroute/internal/restrictions"
	"github.com/richxcame/truckroute/internal/vehicle"
)

// Severity grades how far the vehicle exceeds a limit.
type Severity string

const (
	SeverityMarginal Severity = "marginal"
	SeverityModerate Severity = "moderate"
	SeveritySevere   Severity = "severe"
)

// EventType is the kind of advisory change.
type EventType string

const (
	EventRaised  EventType = "raised"
	EventUpdated EventType = "updated"
	EventCleared EventType = "cleared"
)

// Advisory is the single active warning of a session. It is informational
// only and is never persisted.
type Advisory struct {
	ID            string                   `json:"id"`
	Restriction   restrictions.Restriction `json:"restriction"`
	VehicleValue  float64                  `json:"vehicle_value"`
	Exceedance    float64                  `json:"exceedance"`
	Severity      Severity                 `json:"severity"`
	DistanceAhead float64                  `json:"distance_ahead"`
	Message       string                   `json:"message"`
	Dismissed     bool                     `json:"dismissed"`
	RaisedAt      time.Time                `json:"raised_at"`
	UpdatedAt     time.Time                `json:"updated_at"`
}

// Event reports an advisory change.
type Event struct {
	Type     EventType `json:"type"`
	RouteID  string    `json:"route_id"`
	Advisory Advisory  `json:"advisory"`
	At       time.Time `json:"at"`
}

// Margins are subtracted from posted limits before comparing.
type Margins struct {
	Dimension float64 // metres, for height, width and length
	Weight    float64 // tonnes
}

// For returns the margin applied to d.
func (m Margins) For(d vehicle.Dimension) float64 {
	if d == vehicle.DimensionWeight {
		return m.Weight
	}
	return m.Dimension
}

// Settings tune the monitor.
type Settings struct {
	Interval         time.Duration
	DistanceTrigger  float64
	AdvisoryDistance float64
	// OffRouteDistance disables evaluation while the vehicle is further than
	// this from the route.
	OffRouteDistance float64
	// CorridorWidth drops restrictions on roads beside the route.
	CorridorWidth float64
	Margins       Margins
}

// DefaultSettings returns the production defaults.
func DefaultSettings() Settings {
	return Settings{
		Interval:         5 * time.Second,
		DistanceTrigger:  100,
		AdvisoryDistance: 2400,
		OffRouteDistance: 250,
		CorridorWidth:    30,
		Margins:          Margins{Dimension: 0.10, Weight: 0.5},
	}
}

func (s Settings) withDefaults() Settings {
	def := DefaultSettings()
	if s.Interval <= 0 {
		s.Interval = def.Interval
	}
	if s.DistanceTrigger <= 0 {
		s.DistanceTrigger = def.DistanceTrigger
	}
	if s.AdvisoryDistance <= 0 {
		s.AdvisoryDistance = def.AdvisoryDistance
	}
	if s.OffRouteDistance <= 0 {
		s.OffRouteDistance = def.OffRouteDistance
	}
	if s.CorridorWidth <= 0 {
		s.CorridorWidth = def.CorridorWidth
	}
	return s
}
