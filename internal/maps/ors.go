package maps

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/richxcame/truckroute/pkg/httpclient"
	"github.com/richxcame/truckroute/pkg/logger"
	"go.uber.org/zap"
)

const (
	orsBaseURL = "https://api.openrouteservice.org"

	// ORS error codes for "route not found" and "point not routable".
	orsRouteNotFound = 2009
	orsPointNotFound = 2010
)

// ORSProvider routes heavy goods vehicles through OpenRouteService.
type ORSProvider struct {
	apiKey string
	client *httpclient.Client
}

// NewORSProvider creates a new OpenRouteService provider
func NewORSProvider(config ProviderConfig) *ORSProvider {
	return &ORSProvider{
		apiKey: config.APIKey,
		client: config.client(orsBaseURL),
	}
}

// Name returns the provider name
func (o *ORSProvider) Name() Provider {
	return ProviderORS
}

// Route computes a driving-hgv route with the vehicle's restrictions.
func (o *ORSProvider) Route(ctx context.Context, req *RouteRequest) (*RouteResult, error) {
	body := orsDirectionsRequest{
		Coordinates: [][2]float64{
			{req.Origin.Longitude, req.Origin.Latitude},
			{req.Destination.Longitude, req.Destination.Latitude},
		},
		Instructions: false,
		Options:      orsOptions(req),
	}

	headers := map[string]string{"Authorization": o.apiKey}
	raw, err := o.client.Post(ctx, "/v2/directions/driving-hgv", body, headers)
	if err != nil {
		if notFound := orsNoRoute(err); notFound != nil {
			return nil, notFound
		}
		return nil, classify(ProviderORS, err)
	}

	var resp orsDirectionsResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, decodeError(ProviderORS, err)
	}
	if len(resp.Routes) == 0 {
		return nil, noRoute(ProviderORS, "")
	}

	route := resp.Routes[0]
	geometry, err := decodePolyline(route.Geometry, 5)
	if err != nil {
		return nil, decodeError(ProviderORS, err)
	}

	legs := make([]Leg, len(route.Segments))
	for i, seg := range route.Segments {
		legs[i] = Leg{DistanceMeters: seg.Distance, DurationSeconds: seg.Duration}
	}

	logger.DebugContext(ctx, "openrouteservice route computed",
		zap.Int("points", len(geometry)),
		zap.Float64("distance_m", route.Summary.Distance),
	)

	return &RouteResult{
		ID:              uuid.New().String(),
		Geometry:        geometry,
		DistanceMeters:  route.Summary.Distance,
		DurationSeconds: route.Summary.Duration,
		Legs:            legs,
		Provider:        ProviderORS,
		ComputedAt:      time.Now().UTC(),
	}, nil
}

// ORS has no unpaved or tunnel avoidance for hgv; those flags are ignored.
func orsOptions(req *RouteRequest) *orsRouteOptions {
	opts := &orsRouteOptions{VehicleType: "hgv"}

	if req.Preferences.AvoidTolls {
		opts.AvoidFeatures = append(opts.AvoidFeatures, "tollways")
	}
	if req.Preferences.AvoidFerries {
		opts.AvoidFeatures = append(opts.AvoidFeatures, "ferries")
	}
	if req.Preferences.AvoidBorders {
		opts.AvoidBorders = "all"
	}

	p := req.Profile
	r := orsRestrictions{
		Height: p.HeightMeters,
		Width:  p.WidthMeters,
		Length: p.LengthMeters,
		Weight: p.WeightTonnes,
		Hazmat: p.HasHazmat(),
	}
	if p.AxleCount > 0 && p.WeightTonnes > 0 {
		r.AxleLoad = p.WeightTonnes / float64(p.AxleCount)
	}
	opts.ProfileParams = &orsProfileParams{Restrictions: r}
	return opts
}

func orsNoRoute(err error) error {
	var httpErr *httpclient.HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusNotFound {
		return nil
	}
	var body struct {
		Error struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal([]byte(httpErr.Body), &body) != nil {
		return nil
	}
	if body.Error.Code == orsRouteNotFound || body.Error.Code == orsPointNotFound {
		return noRoute(ProviderORS, body.Error.Message)
	}
	return nil
}

type orsDirectionsRequest struct {
	Coordinates  [][2]float64     `json:"coordinates"`
	Instructions bool             `json:"instructions"`
	Options      *orsRouteOptions `json:"options,omitempty"`
}

type orsRouteOptions struct {
	AvoidFeatures []string          `json:"avoid_features,omitempty"`
	AvoidBorders  string            `json:"avoid_borders,omitempty"`
	VehicleType   string            `json:"vehicle_type"`
	ProfileParams *orsProfileParams `json:"profile_params,omitempty"`
}

type orsProfileParams struct {
	Restrictions orsRestrictions `json:"restrictions"`
}

type orsRestrictions struct {
	Height   float64 `json:"height,omitempty"`
	Width    float64 `json:"width,omitempty"`
	Length   float64 `json:"length,omitempty"`
	Weight   float64 `json:"weight,omitempty"`
	AxleLoad float64 `json:"axleload,omitempty"`
	Hazmat   bool    `json:"hazmat,omitempty"`
}

type orsDirectionsResponse struct {
	Routes []struct {
		Summary struct {
			Distance float64 `json:"distance"`
			Duration float64 `json:"duration"`
		} `json:"summary"`
		Segments []struct {
			Distance float64 `json:"distance"`
			Duration float64 `json:"duration"`
		} `json:"segments"`
		Geometry string `json:"geometry"`
	} `json:"routes"`
}
