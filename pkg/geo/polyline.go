package geo

import (
	"math"

	"github.com/paulmach/orb"
	orbgeo "github.com/paulmach/orb/geo"
)

// Polyline is a route geometry with precomputed cumulative arc lengths in metres.
// It is immutable once built and safe for concurrent readers.
type Polyline struct {
	line orb.LineString
	cum  []float64
}

// Sample is a point taken at a given arc length along a polyline.
type Sample struct {
	Point orb.Point
	Along float64
}

// Projection locates a point relative to a polyline.
type Projection struct {
	// Along is the arc length from the start to the closest point on the line.
	Along float64
	// Offset is the distance from the point to the line.
	Offset float64
	// Segment is the index of the segment holding the closest point.
	Segment int
	Closest orb.Point
}

// NewPolyline builds a polyline from an orb line string (lon, lat order).
func NewPolyline(line orb.LineString) *Polyline {
	cum := make([]float64, len(line))
	for i := 1; i < len(line); i++ {
		cum[i] = cum[i-1] + orbgeo.DistanceHaversine(line[i-1], line[i])
	}
	return &Polyline{line: line, cum: cum}
}

// Len returns the number of vertices.
func (p *Polyline) Len() int {
	return len(p.line)
}

// Length returns the total arc length in metres.
func (p *Polyline) Length() float64 {
	if len(p.cum) == 0 {
		return 0
	}
	return p.cum[len(p.cum)-1]
}

// LineString returns the underlying geometry.
func (p *Polyline) LineString() orb.LineString {
	return p.line
}

// Vertices returns every vertex with its arc length.
func (p *Polyline) Vertices() []Sample {
	out := make([]Sample, len(p.line))
	for i, pt := range p.line {
		out[i] = Sample{Point: pt, Along: p.cum[i]}
	}
	return out
}

// PointAt returns the point at arc length d, clamped to the line's ends.
func (p *Polyline) PointAt(d float64) orb.Point {
	switch {
	case len(p.line) == 0:
		return orb.Point{}
	case d <= 0 || len(p.line) == 1:
		return p.line[0]
	case d >= p.Length():
		return p.line[len(p.line)-1]
	}

	i := p.segmentAt(d)
	segLen := p.cum[i+1] - p.cum[i]
	if segLen == 0 {
		return p.line[i]
	}
	return interpolate(p.line[i], p.line[i+1], (d-p.cum[i])/segLen)
}

// Sample returns points every interval metres along the line. The first and
// last vertices are always included.
func (p *Polyline) Sample(interval float64) []Sample {
	if len(p.line) == 0 {
		return nil
	}
	total := p.Length()
	if interval <= 0 || total == 0 {
		return []Sample{{Point: p.line[0], Along: 0}}
	}

	samples := make([]Sample, 0, int(total/interval)+2)
	for d := 0.0; d < total; d += interval {
		samples = append(samples, Sample{Point: p.PointAt(d), Along: d})
	}
	return append(samples, Sample{Point: p.line[len(p.line)-1], Along: total})
}

// Project finds the closest point on the line to pt.
func (p *Polyline) Project(pt orb.Point) Projection {
	if len(p.line) == 0 {
		return Projection{Offset: math.Inf(1)}
	}
	if len(p.line) == 1 {
		return Projection{Offset: orbgeo.DistanceHaversine(pt, p.line[0]), Closest: p.line[0]}
	}

	best := Projection{Offset: math.Inf(1)}
	for i := 0; i < len(p.line)-1; i++ {
		t := segmentParam(p.line[i], p.line[i+1], pt)
		closest := interpolate(p.line[i], p.line[i+1], t)
		offset := orbgeo.DistanceHaversine(pt, closest)
		if offset < best.Offset {
			best = Projection{
				Along:   p.cum[i] + t*(p.cum[i+1]-p.cum[i]),
				Offset:  offset,
				Segment: i,
				Closest: closest,
			}
		}
	}
	return best
}

// segmentAt returns i such that cum[i] <= d < cum[i+1].
func (p *Polyline) segmentAt(d float64) int {
	lo, hi := 0, len(p.cum)-1
	for lo < hi-1 {
		mid := (lo + hi) / 2
		if p.cum[mid] <= d {
			lo = mid
		} else {
			hi = mid
		}
	}
	return lo
}

// segmentParam returns the clamped parameter of the closest point to pt on
// segment a-b, computed on a local equirectangular plane.
func segmentParam(a, b, pt orb.Point) float64 {
	cosLat := math.Cos(a[1] * math.Pi / 180)
	abx, aby := (b[0]-a[0])*cosLat, b[1]-a[1]
	apx, apy := (pt[0]-a[0])*cosLat, pt[1]-a[1]

	den := abx*abx + aby*aby
	if den == 0 {
		return 0
	}
	t := (apx*abx + apy*aby) / den
	return math.Max(0, math.Min(1, t))
}

func interpolate(a, b orb.Point, t float64) orb.Point {
	return orb.Point{a[0] + (b[0]-a[0])*t, a[1] + (b[1]-a[1])*t}
}
