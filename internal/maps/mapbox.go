package maps

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/richxcame/truckroute/pkg/httpclient"
	"github.com/richxcame/truckroute/pkg/logger"
	"go.uber.org/zap"
)

const mapboxBaseURL = "https://api.mapbox.com"

// MapboxProvider talks to the Mapbox Directions and Map Matching APIs.
type MapboxProvider struct {
	token  string
	client *httpclient.Client
}

// NewMapboxProvider creates a new Mapbox provider
func NewMapboxProvider(config ProviderConfig) *MapboxProvider {
	return &MapboxProvider{
		token:  config.APIKey,
		client: config.client(mapboxBaseURL),
	}
}

// Name returns the provider name
func (m *MapboxProvider) Name() Provider {
	return ProviderMapbox
}

// Route calls Directions with the driving-traffic profile and the vehicle's
// dimensions.
func (m *MapboxProvider) Route(ctx context.Context, req *RouteRequest) (*RouteResult, error) {
	params := url.Values{}
	params.Set("access_token", m.token)
	params.Set("geometries", "polyline6")
	params.Set("overview", "full")
	params.Set("steps", "false")

	profile := req.Profile
	if profile.HeightMeters > 0 {
		params.Set("max_height", formatMeasure(profile.HeightMeters))
	}
	if profile.WidthMeters > 0 {
		params.Set("max_width", formatMeasure(profile.WidthMeters))
	}
	if profile.WeightTonnes > 0 {
		params.Set("max_weight", formatMeasure(profile.WeightTonnes))
	}

	var exclude []string
	if req.Preferences.AvoidTolls {
		exclude = append(exclude, "toll")
	}
	if req.Preferences.AvoidFerries {
		exclude = append(exclude, "ferry")
	}
	if req.Preferences.AvoidUnpaved {
		exclude = append(exclude, "unpaved")
	}
	if req.Preferences.AvoidTunnels {
		exclude = append(exclude, "tunnel")
	}
	if req.Preferences.AvoidBorders {
		exclude = append(exclude, "country_border")
	}
	if len(exclude) > 0 {
		params.Set("exclude", strings.Join(exclude, ","))
	}

	path := "/directions/v5/mapbox/driving-traffic/" + pathSegment([]Coordinate{req.Origin, req.Destination})
	body, err := m.client.Get(ctx, path, params, nil)
	if err != nil {
		return nil, classify(ProviderMapbox, err)
	}

	var resp mapboxDirectionsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, decodeError(ProviderMapbox, err)
	}

	switch resp.Code {
	case "Ok":
	case "NoRoute", "NoSegment":
		return nil, noRoute(ProviderMapbox, resp.Message)
	default:
		return nil, decodeError(ProviderMapbox, fmt.Errorf("unexpected code %q: %s", resp.Code, resp.Message))
	}
	if len(resp.Routes) == 0 {
		return nil, noRoute(ProviderMapbox, "")
	}

	route := resp.Routes[0]
	geometry, err := decodePolyline(route.Geometry, 6)
	if err != nil {
		return nil, decodeError(ProviderMapbox, err)
	}

	legs := make([]Leg, len(route.Legs))
	for i, leg := range route.Legs {
		legs[i] = Leg{DistanceMeters: leg.Distance, DurationSeconds: leg.Duration, Summary: leg.Summary}
	}

	logger.DebugContext(ctx, "mapbox route computed",
		zap.Int("points", len(geometry)),
		zap.Float64("distance_m", route.Distance),
	)

	return &RouteResult{
		ID:              uuid.New().String(),
		Geometry:        geometry,
		DistanceMeters:  route.Distance,
		DurationSeconds: route.Duration,
		Legs:            legs,
		Provider:        ProviderMapbox,
		ComputedAt:      time.Now().UTC(),
	}, nil
}

// Match calls Map Matching for the trace. "NoMatch" is reported as an empty
// result, not an error.
func (m *MapboxProvider) Match(ctx context.Context, trace []Coordinate) ([]Matching, error) {
	params := url.Values{}
	params.Set("access_token", m.token)
	params.Set("geometries", "polyline6")
	params.Set("overview", "full")
	params.Set("steps", "true")
	params.Set("tidy", "true")

	body, err := m.client.Get(ctx, "/matching/v5/mapbox/driving/"+pathSegment(trace), params, nil)
	if err != nil {
		return nil, classify(ProviderMapbox, err)
	}

	var resp mapboxMatchingResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, decodeError(ProviderMapbox, err)
	}

	switch resp.Code {
	case "Ok":
	case "NoMatch":
		return nil, nil
	default:
		return nil, fmt.Errorf("%s: matching code %q: %s", ProviderMapbox, resp.Code, resp.Message)
	}

	matchings := make([]Matching, 0, len(resp.Matchings))
	for _, mm := range resp.Matchings {
		geometry, err := decodePolyline(mm.Geometry, 6)
		if err != nil {
			return nil, decodeError(ProviderMapbox, err)
		}
		var maneuvers []Maneuver
		for _, leg := range mm.Legs {
			for _, step := range leg.Steps {
				maneuvers = append(maneuvers, step.toManeuver())
			}
		}
		matchings = append(matchings, Matching{
			Geometry:   geometry,
			Maneuvers:  maneuvers,
			Confidence: mm.Confidence,
		})
	}
	return matchings, nil
}

func formatMeasure(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

type mapboxDirectionsResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Routes  []struct {
		Geometry string  `json:"geometry"`
		Distance float64 `json:"distance"`
		Duration float64 `json:"duration"`
		Legs     []struct {
			Distance float64 `json:"distance"`
			Duration float64 `json:"duration"`
			Summary  string  `json:"summary"`
		} `json:"legs"`
	} `json:"routes"`
}

type mapboxMatchingResponse struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Matchings []struct {
		Confidence float64 `json:"confidence"`
		Geometry   string  `json:"geometry"`
		Legs       []struct {
			Steps []mapboxStep `json:"steps"`
		} `json:"legs"`
	} `json:"matchings"`
}

type mapboxStep struct {
	Name     string  `json:"name"`
	Distance float64 `json:"distance"`
	Maneuver struct {
		Type        string    `json:"type"`
		Modifier    string    `json:"modifier"`
		Instruction string    `json:"instruction"`
		Location    []float64 `json:"location"`
	} `json:"maneuver"`
}

func (s mapboxStep) toManeuver() Maneuver {
	m := Maneuver{
		Type:           s.Maneuver.Type,
		Modifier:       s.Maneuver.Modifier,
		Instruction:    s.Maneuver.Instruction,
		RoadName:       s.Name,
		DistanceMeters: s.Distance,
	}
	if len(s.Maneuver.Location) == 2 {
		m.Location = Coordinate{Longitude: s.Maneuver.Location[0], Latitude: s.Maneuver.Location[1]}
	}
	return m
}
