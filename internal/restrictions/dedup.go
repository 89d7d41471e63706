package restrictions

import (
	"sort"

	"github.com/richxcame/truckroute/pkg/geo"
	"github.com/uber/h3-go/v4"
)

// mergeDistance merges same-road records closer than this even when no
// H3 neighbourhood links them.
const mergeDistance = 10.0

type dedupKey struct {
	roadID string
	kind   string
}

type bucket struct {
	cell h3.Cell
	best Restriction
}

// Dedup collapses restrictions of the same road and type that sit in the
// same or a neighbouring H3 cell, keeping the lowest limit. Output is
// sorted by ID for stable results.
func Dedup(in []Restriction) []Restriction {
	groups := make(map[dedupKey][]*bucket, len(in))
	for _, r := range in {
		key := dedupKey{roadID: r.RoadID, kind: string(r.Type)}
		cell := geo.LatLngToCell(r.Location.Latitude, r.Location.Longitude, geo.H3ResolutionRestriction)

		b := nearBucket(groups[key], cell, r)
		if b == nil {
			groups[key] = append(groups[key], &bucket{cell: cell, best: r})
			continue
		}
		if r.Limit < b.best.Limit {
			b.best = r
		}
	}

	out := make([]Restriction, 0, len(in))
	for _, buckets := range groups {
		for _, b := range buckets {
			out = append(out, b.best)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ID != out[j].ID {
			return out[i].ID < out[j].ID
		}
		return out[i].Limit < out[j].Limit
	})
	return out
}

func nearBucket(buckets []*bucket, cell h3.Cell, r Restriction) *bucket {
	for _, b := range buckets {
		if geo.AdjacentCells(b.cell, cell) {
			return b
		}
		d := geo.DistanceMeters(b.best.Location.Latitude, b.best.Location.Longitude, r.Location.Latitude, r.Location.Longitude)
		if d <= mergeDistance {
			return b
		}
	}
	return nil
}
