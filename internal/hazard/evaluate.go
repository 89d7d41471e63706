package hazard

import (
	"fmt"
	"math"

	"github.com/richxcame/truckroute/internal/maps"
	"github.com/richxcame/truckroute/internal/restrictions"
	"github.com/richxcame/truckroute/internal/vehicle"
)

// tieDistance is how close two conflicts must be to count as equidistant.
const tieDistance = 1.0

// Conflict is a restriction ahead that the vehicle exceeds.
type Conflict struct {
	Restriction   restrictions.Restriction
	VehicleValue  float64
	Exceedance    float64
	Severity      Severity
	DistanceAhead float64
}

// Exceedance returns how far value passes limit once margin is taken off
// the limit. A positive result is a conflict.
func Exceedance(value, limit, margin float64) float64 {
	return value - (limit - margin)
}

// Grade maps an exceedance relative to its limit onto a severity.
func Grade(exceedance, limit float64) Severity {
	if limit <= 0 {
		return SeveritySevere
	}
	ratio := exceedance / limit
	switch {
	case ratio < 0.02:
		return SeverityMarginal
	case ratio < 0.05:
		return SeverityModerate
	default:
		return SeveritySevere
	}
}

// Evaluate returns the conflict to surface for a vehicle at pos, or nil.
// The nearest conflict ahead wins; within tieDistance the larger exceedance
// wins. Dismissed and passed restrictions are ignored.
func Evaluate(s *Snapshot, pos maps.Coordinate, settings Settings) *Conflict {
	if s == nil || s.Line == nil || s.Line.Len() < 2 || len(s.Placed) == 0 {
		return nil
	}
	settings = settings.withDefaults()

	here := s.Line.Project(pos.Point())
	if here.Offset > settings.OffRouteDistance {
		return nil
	}

	var best *Conflict
	for _, p := range s.Placed {
		if p.Offset > settings.CorridorWidth || s.IsDismissed(p.Restriction.ID) {
			continue
		}
		ahead := p.Along - here.Along
		if ahead <= 0 || ahead > settings.AdvisoryDistance {
			continue
		}

		value, ok := s.Profile.Value(p.Restriction.Type)
		if !ok {
			continue
		}
		exceedance := Exceedance(value, p.Restriction.Limit, settings.Margins.For(p.Restriction.Type))
		if exceedance <= 0 {
			continue
		}

		c := &Conflict{
			Restriction:   p.Restriction,
			VehicleValue:  value,
			Exceedance:    exceedance,
			Severity:      Grade(exceedance, p.Restriction.Limit),
			DistanceAhead: ahead,
		}
		if best == nil || preferred(c, best) {
			best = c
		}
	}
	return best
}

func preferred(c, best *Conflict) bool {
	if math.Abs(c.DistanceAhead-best.DistanceAhead) <= tieDistance {
		return c.Exceedance > best.Exceedance
	}
	return c.DistanceAhead < best.DistanceAhead
}

// Message renders the informational advisory text.
func (c *Conflict) Message() string {
	r := c.Restriction
	where := ""
	if r.RoadName != "" {
		where = " on " + r.RoadName
	}
	return fmt.Sprintf("Posted %s limit %s%s in %s. Your vehicle: %s.",
		r.Type.Label(), formatValue(r.Type, r.Limit), where,
		formatDistance(c.DistanceAhead), formatValue(r.Type, c.VehicleValue))
}

func formatValue(d vehicle.Dimension, v float64) string {
	if d == vehicle.DimensionWeight {
		return fmt.Sprintf("%.1f t", v)
	}
	return fmt.Sprintf("%.2f m", v)
}

func formatDistance(m float64) string {
	if m >= 1000 {
		return fmt.Sprintf("%.1f km", m/1000)
	}
	return fmt.Sprintf("%d m", int(math.Round(m/10)*10))
}
