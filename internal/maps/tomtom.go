package maps

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/richxcame/truckroute/pkg/httpclient"
)

const tomtomBaseURL = "https://api.tomtom.com"

// TomTomProvider reads the TomTom Flow Segment Data API.
type TomTomProvider struct {
	apiKey string
	client *httpclient.Client
}

// NewTomTomProvider creates a new TomTom traffic provider
func NewTomTomProvider(config ProviderConfig) *TomTomProvider {
	return &TomTomProvider{
		apiKey: config.APIKey,
		client: config.client(tomtomBaseURL),
	}
}

// Name returns the provider name
func (t *TomTomProvider) Name() Provider {
	return ProviderTomTom
}

// Flow returns the flow of the road segment closest to at.
func (t *TomTomProvider) Flow(ctx context.Context, at Coordinate) (*FlowReading, error) {
	params := url.Values{}
	params.Set("key", t.apiKey)
	params.Set("point", fmt.Sprintf("%.6f,%.6f", at.Latitude, at.Longitude))
	params.Set("unit", "KMPH")

	body, err := t.client.Get(ctx, "/traffic/services/4/flowSegmentData/absolute/10/json", params, nil)
	if err != nil {
		return nil, classify(ProviderTomTom, err)
	}

	var resp tomtomFlowResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, decodeError(ProviderTomTom, err)
	}

	data := resp.FlowSegmentData
	return &FlowReading{
		Provider:      ProviderTomTom,
		CurrentSpeed:  data.CurrentSpeed,
		FreeFlowSpeed: data.FreeFlowSpeed,
		Closed:        data.RoadClosure,
	}, nil
}

type tomtomFlowResponse struct {
	FlowSegmentData struct {
		CurrentSpeed  float64 `json:"currentSpeed"`
		FreeFlowSpeed float64 `json:"freeFlowSpeed"`
		Confidence    float64 `json:"confidence"`
		RoadClosure   bool    `json:"roadClosure"`
	} `json:"flowSegmentData"`
}
