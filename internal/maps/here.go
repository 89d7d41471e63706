package maps

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/richxcame/truckroute/pkg/httpclient"
)

const (
	hereTrafficBaseURL = "https://data.traffic.hereapi.com"

	// Radius of the flow query around the vehicle.
	hereFlowRadiusMeters = 50
	metersPerSecondToKmh = 3.6
)

// HEREProvider reads HERE Traffic API v7 flow.
type HEREProvider struct {
	apiKey string
	client *httpclient.Client
}

// NewHEREProvider creates a new HERE traffic provider
func NewHEREProvider(config ProviderConfig) *HEREProvider {
	return &HEREProvider{
		apiKey: config.APIKey,
		client: config.client(hereTrafficBaseURL),
	}
}

// Name returns the provider name
func (h *HEREProvider) Name() Provider {
	return ProviderHERE
}

// Flow returns the flow of the first segment within a small circle around at.
// No segment is not an error; the reading is simply empty.
func (h *HEREProvider) Flow(ctx context.Context, at Coordinate) (*FlowReading, error) {
	params := url.Values{}
	params.Set("apiKey", h.apiKey)
	params.Set("in", fmt.Sprintf("circle:%.6f,%.6f;r=%d", at.Latitude, at.Longitude, hereFlowRadiusMeters))
	params.Set("locationReferencing", "none")

	body, err := h.client.Get(ctx, "/v7/flow", params, nil)
	if err != nil {
		return nil, classify(ProviderHERE, err)
	}

	var resp hereFlowResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, decodeError(ProviderHERE, err)
	}

	reading := &FlowReading{Provider: ProviderHERE, SpeedMissing: true}
	if len(resp.Results) == 0 {
		return reading, nil
	}

	flow := resp.Results[0].CurrentFlow
	if flow.Speed != nil {
		reading.CurrentSpeed = *flow.Speed * metersPerSecondToKmh
		reading.SpeedMissing = false
	}
	if flow.FreeFlow != nil {
		reading.FreeFlowSpeed = *flow.FreeFlow * metersPerSecondToKmh
	}
	reading.JamFactor = flow.JamFactor
	reading.Closed = flow.Traversability == "closed"
	return reading, nil
}

type hereFlowResponse struct {
	Results []struct {
		CurrentFlow struct {
			Speed          *float64 `json:"speed"`
			FreeFlow       *float64 `json:"freeFlow"`
			JamFactor      *float64 `json:"jamFactor"`
			Confidence     float64  `json:"confidence"`
			Traversability string   `json:"traversability"`
		} `json:"currentFlow"`
	} `json:"results"`
}
