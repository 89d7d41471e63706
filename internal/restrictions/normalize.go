package restrictions

import (
	"errors"
	"fmt"

	"github.com/richxcame/truckroute/internal/units"
	"github.com/richxcame/truckroute/internal/vehicle"
)

type tagRule struct {
	key        string
	dimension  vehicle.Dimension
	confidence float64
}

// Physical clearances are measured, the legal signs are usually rounded
// down, so both are read and dedup keeps the lower.
var tagRules = []tagRule{
	{key: "maxheight", dimension: vehicle.DimensionHeight, confidence: 0.9},
	{key: "maxheight:physical", dimension: vehicle.DimensionHeight, confidence: 1.0},
	{key: "maxwidth", dimension: vehicle.DimensionWidth, confidence: 0.9},
	{key: "maxwidth:physical", dimension: vehicle.DimensionWidth, confidence: 1.0},
	{key: "maxlength", dimension: vehicle.DimensionLength, confidence: 0.9},
	{key: "maxweight", dimension: vehicle.DimensionWeight, confidence: 0.9},
}

// Normalize converts an element's tags into restrictions. Tags with an
// explicit "no limit" value are ignored; unparseable ones are counted.
func Normalize(el Element) ([]Restriction, int) {
	var (
		out     []Restriction
		skipped int
	)
	name := el.Tags["name"]
	if name == "" {
		name = el.Tags["ref"]
	}

	for _, rule := range tagRules {
		raw, ok := el.Tags[rule.key]
		if !ok {
			continue
		}

		var (
			limit float64
			err   error
		)
		if rule.dimension == vehicle.DimensionWeight {
			limit, err = units.ParseWeight(raw)
		} else {
			limit, err = units.ParseLength(raw)
		}
		if errors.Is(err, units.ErrNoLimit) {
			continue
		}
		if err != nil {
			skipped++
			continue
		}

		out = append(out, Restriction{
			ID:         fmt.Sprintf("%s:%s", el.RoadID, rule.key),
			Type:       rule.dimension,
			Limit:      limit,
			RoadID:     el.RoadID,
			RoadName:   name,
			Location:   el.Location,
			Segment:    el.Geometry,
			Confidence: rule.confidence,
			RawValue:   raw,
		})
	}
	return out, skipped
}
