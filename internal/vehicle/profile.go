package vehicle

import (
	"fmt"
	"sort"
	"strings"

	"github.com/richxcame/truckroute/pkg/validation"
)

// Dimension names a physical property of the vehicle that a road can limit.
type Dimension string

const (
	DimensionHeight Dimension = "max_height"
	DimensionWidth  Dimension = "max_width"
	DimensionLength Dimension = "max_length"
	DimensionWeight Dimension = "max_weight"
)

// Dimensions lists every restricted dimension in evaluation order.
var Dimensions = []Dimension{DimensionHeight, DimensionWidth, DimensionLength, DimensionWeight}

// Unit returns the canonical unit symbol for the dimension.
func (d Dimension) Unit() string {
	if d == DimensionWeight {
		return "t"
	}
	return "m"
}

// Label is the human readable name used in advisory text.
func (d Dimension) Label() string {
	switch d {
	case DimensionHeight:
		return "height"
	case DimensionWidth:
		return "width"
	case DimensionLength:
		return "length"
	case DimensionWeight:
		return "weight"
	default:
		return string(d)
	}
}

// Profile is an immutable snapshot of the vehicle being routed. Lengths are
// metres, weight is metric tonnes. A zero dimension is unknown and never
// conflicts with a restriction.
type Profile struct {
	HeightMeters  float64  `json:"height_m" validate:"omitempty,gt=0,lte=6"`
	WidthMeters   float64  `json:"width_m" validate:"omitempty,gt=0,lte=5"`
	LengthMeters  float64  `json:"length_m" validate:"omitempty,gt=0,lte=40"`
	WeightTonnes  float64  `json:"weight_t" validate:"omitempty,gt=0,lte=200"`
	AxleCount     int      `json:"axle_count" validate:"omitempty,gte=2,lte=12"`
	HazmatClasses []string `json:"hazmat_classes,omitempty" validate:"omitempty,dive,hazmat_class"`
	Commercial    bool     `json:"commercial"`
}

// Validate checks the profile's ranges.
func (p Profile) Validate() error {
	return validation.ValidateStruct(p)
}

// Value returns the vehicle's measure for d and whether it is known.
func (p Profile) Value(d Dimension) (float64, bool) {
	var v float64
	switch d {
	case DimensionHeight:
		v = p.HeightMeters
	case DimensionWidth:
		v = p.WidthMeters
	case DimensionLength:
		v = p.LengthMeters
	case DimensionWeight:
		v = p.WeightTonnes
	}
	return v, v > 0
}

// HasHazmat reports whether the vehicle carries any dangerous goods.
func (p Profile) HasHazmat() bool {
	return len(p.HazmatClasses) > 0
}

// Fingerprint is a stable text form of the profile used in cache keys.
func (p Profile) Fingerprint() string {
	classes := append([]string(nil), p.HazmatClasses...)
	sort.Strings(classes)
	return fmt.Sprintf("h=%.2f;w=%.2f;l=%.2f;t=%.2f;a=%d;hz=%s;c=%t",
		p.HeightMeters, p.WidthMeters, p.LengthMeters, p.WeightTonnes,
		p.AxleCount, strings.Join(classes, ","), p.Commercial)
}
