package restrictions

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/paulmach/osm"
	"github.com/richxcame/truckroute/internal/maps"
	"github.com/richxcame/truckroute/pkg/geo"
	"github.com/richxcame/truckroute/pkg/httpclient"
)

// Source answers bounded spatial queries for restriction-tagged elements.
type Source interface {
	Name() string
	Query(ctx context.Context, center maps.Coordinate, radiusMeters float64) ([]Element, error)
}

// OverpassSource queries an Overpass API endpoint.
type OverpassSource struct {
	name   string
	client *httpclient.Client
}

// NewOverpassSource creates a source for the interpreter at endpoint, e.g.
// https://overpass-api.de/api.
func NewOverpassSource(name, endpoint string, timeout time.Duration) *OverpassSource {
	return &OverpassSource{
		name:   name,
		client: httpclient.NewClient(endpoint, timeout, httpclient.WithUserAgent("truckroute-navigator/1.0 (restriction lookup)")),
	}
}

// Name returns the source label.
func (o *OverpassSource) Name() string {
	return o.name
}

// Query returns ways and nodes with dimension or weight limits around center.
func (o *OverpassSource) Query(ctx context.Context, center maps.Coordinate, radiusMeters float64) ([]Element, error) {
	form := url.Values{}
	form.Set("data", overpassQuery(center, radiusMeters))

	body, err := o.client.PostForm(ctx, "/interpreter", form, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", o.name, maps.ErrRestrictionQueryFailed, err)
	}

	var resp overpassResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", o.name, maps.ErrDecode, err)
	}

	elements := make([]Element, 0, len(resp.Elements))
	for _, e := range resp.Elements {
		el, ok := e.toElement()
		if ok {
			elements = append(elements, el)
		}
	}
	return elements, nil
}

func overpassQuery(c maps.Coordinate, radius float64) string {
	around := fmt.Sprintf("around:%.0f,%.6f,%.6f", radius, c.Latitude, c.Longitude)
	return fmt.Sprintf(`[out:json][timeout:10];
(
  way(%[1]s)[~"^max(height|width|length|weight)(:physical)?$"~"."];
  node(%[1]s)[~"^max(height|width|weight)(:physical)?$"~"."];
);
out tags geom;`, around)
}

type overpassResponse struct {
	Elements []overpassElement `json:"elements"`
}

type overpassElement struct {
	Type     osm.Type         `json:"type"`
	ID       int64            `json:"id"`
	Lat      *float64         `json:"lat"`
	Lon      *float64         `json:"lon"`
	Geometry []overpassLatLon `json:"geometry"`
	Tags     osm.Tags         `json:"tags"`
}

type overpassLatLon struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// toElement keeps a way's full geometry and anchors it at the way's
// midpoint, so every sample that returns the way yields the same location.
func (e overpassElement) toElement() (Element, bool) {
	var roadID string
	switch e.Type {
	case osm.TypeWay:
		roadID = fmt.Sprintf("%s/%d", osm.TypeWay, osm.WayID(e.ID))
	case osm.TypeNode:
		roadID = fmt.Sprintf("%s/%d", osm.TypeNode, osm.NodeID(e.ID))
	default:
		return Element{}, false
	}

	el := Element{RoadID: roadID, Tags: e.Tags.Map()}
	switch {
	case len(e.Geometry) > 0:
		el.Geometry = make([]maps.Coordinate, len(e.Geometry))
		for i, p := range e.Geometry {
			el.Geometry[i] = maps.Coordinate{Latitude: p.Lat, Longitude: p.Lon}
		}
		line := geo.NewPolyline(maps.LineString(el.Geometry))
		el.Location = maps.CoordinateFromPoint(line.PointAt(line.Length() / 2))
		if len(el.Geometry) < 2 {
			el.Geometry = nil
		}
	case e.Lat != nil && e.Lon != nil:
		el.Location = maps.Coordinate{Latitude: *e.Lat, Longitude: *e.Lon}
	default:
		return Element{}, false
	}
	return el, true
}
