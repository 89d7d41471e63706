package geo

import (
	"github.com/uber/h3-go/v4"
)

// H3 resolution used by the navigator.
// See: https://h3geo.org/docs/core-library/restable
const (
	// H3ResolutionRestriction buckets restriction records (~9 m edge).
	H3ResolutionRestriction = 12
)

// LatLngToCell converts latitude/longitude to an H3 cell index at the given
// resolution. Invalid input yields cell 0.
func LatLngToCell(lat, lng float64, resolution int) h3.Cell {
	cell, err := h3.LatLngToCell(h3.NewLatLng(lat, lng), resolution)
	if err != nil {
		return 0
	}
	return cell
}

// AdjacentCells reports whether b is a or one of its immediate neighbours.
func AdjacentCells(a, b h3.Cell) bool {
	if a == b {
		return true
	}
	ring, err := a.GridDisk(1)
	if err != nil {
		return false
	}
	for _, c := range ring {
		if c == b {
			return true
		}
	}
	return false
}
