package eventbus

import "time"

// AdvisoryData is the payload of every hazard.advisory.* event.
type AdvisoryData struct {
	SessionID       string    `json:"session_id"`
	RouteID         string    `json:"route_id"`
	AdvisoryID      string    `json:"advisory_id"`
	RestrictionID   string    `json:"restriction_id"`
	RestrictionType string    `json:"restriction_type"`
	RoadName        string    `json:"road_name,omitempty"`
	Limit           float64   `json:"limit"`
	VehicleValue    float64   `json:"vehicle_value"`
	Exceedance      float64   `json:"exceedance"`
	Severity        string    `json:"severity,omitempty"`
	DistanceAhead   float64   `json:"distance_ahead_m"`
	Message         string    `json:"message,omitempty"`
	Dismissed       bool      `json:"dismissed,omitempty"`
	Latitude        float64   `json:"latitude"`
	Longitude       float64   `json:"longitude"`
	OccurredAt      time.Time `json:"occurred_at"`
}

// CongestionData is the payload of traffic.congestion.updated.
type CongestionData struct {
	SessionID     string    `json:"session_id"`
	Provider      string    `json:"provider"`
	Level         int       `json:"level"`
	CurrentSpeed  float64   `json:"current_speed_kmh"`
	FreeFlowSpeed float64   `json:"free_flow_speed_kmh"`
	LowConfidence bool      `json:"low_confidence"`
	Latitude      float64   `json:"latitude"`
	Longitude     float64   `json:"longitude"`
	SampledAt     time.Time `json:"sampled_at"`
}

// RouteActivatedData is the payload of session.route.activated.
type RouteActivatedData struct {
	SessionID       string    `json:"session_id"`
	RouteID         string    `json:"route_id"`
	Provider        string    `json:"provider"`
	DistanceMeters  float64   `json:"distance_m"`
	DurationSeconds float64   `json:"duration_s"`
	Matched         bool      `json:"matched"`
	ActivatedAt     time.Time `json:"activated_at"`
}

// RestrictionsLoadedData is the payload of session.restrictions.loaded.
type RestrictionsLoadedData struct {
	SessionID string    `json:"session_id"`
	RouteID   string    `json:"route_id"`
	Count     int       `json:"count"`
	Degraded  bool      `json:"degraded"`
	LoadedAt  time.Time `json:"loaded_at"`
}

// SessionEndedData is the payload of session.ended.
type SessionEndedData struct {
	SessionID string    `json:"session_id"`
	Reason    string    `json:"reason"`
	EndedAt   time.Time `json:"ended_at"`
}
