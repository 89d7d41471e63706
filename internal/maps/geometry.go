package maps

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/twpayne/go-polyline"
)

var polyline6 = polyline.Codec{Dim: 2, Scale: 1e6}

// decodePolyline decodes a Google-format encoded polyline at precision 5 or 6.
func decodePolyline(encoded string, precision int) ([]Coordinate, error) {
	var (
		coords [][]float64
		rest   []byte
		err    error
	)
	switch precision {
	case 5:
		coords, rest, err = polyline.DecodeCoords([]byte(encoded))
	case 6:
		coords, rest, err = polyline6.DecodeCoords([]byte(encoded))
	default:
		return nil, fmt.Errorf("unsupported polyline precision %d", precision)
	}
	if err != nil {
		return nil, err
	}
	if len(rest) > 0 {
		return nil, fmt.Errorf("trailing %d bytes after polyline", len(rest))
	}

	out := make([]Coordinate, len(coords))
	for i, c := range coords {
		out[i] = Coordinate{Latitude: c[0], Longitude: c[1]}
	}
	return out, nil
}

// pathSegment renders coordinates as "lon,lat;lon,lat" for Mapbox URLs.
func pathSegment(coords []Coordinate) string {
	parts := make([]string, len(coords))
	for i, c := range coords {
		parts[i] = strconv.FormatFloat(c.Longitude, 'f', 6, 64) + "," + strconv.FormatFloat(c.Latitude, 'f', 6, 64)
	}
	return strings.Join(parts, ";")
}
