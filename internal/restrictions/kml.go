package restrictions

import (
	"fmt"
	"io"

	"github.com/twpayne/go-kml"
)

// WriteKML renders restrictions as KML placemarks for map overlays.
func WriteKML(w io.Writer, routeID string, restrictions []Restriction) error {
	placemarks := make([]kml.Element, 0, len(restrictions)+1)
	placemarks = append(placemarks, kml.Name(fmt.Sprintf("Restrictions for route %s", routeID)))

	for _, r := range restrictions {
		title := fmt.Sprintf("%s %.2f %s", r.Type.Label(), r.Limit, r.Unit())
		if r.RoadName != "" {
			title = fmt.Sprintf("%s (%s)", title, r.RoadName)
		}
		var geometry kml.Element = kml.Point(
			kml.Coordinates(kml.Coordinate{Lon: r.Location.Longitude, Lat: r.Location.Latitude}),
		)
		if len(r.Segment) > 1 {
			coords := make([]kml.Coordinate, len(r.Segment))
			for i, c := range r.Segment {
				coords[i] = kml.Coordinate{Lon: c.Longitude, Lat: c.Latitude}
			}
			geometry = kml.MultiGeometry(geometry, kml.LineString(kml.Coordinates(coords...)))
		}
		placemarks = append(placemarks, kml.Placemark(
			kml.Name(title),
			kml.Description(fmt.Sprintf("road %s, posted %q, confidence %.1f", r.RoadID, r.RawValue, r.Confidence)),
			geometry,
		))
	}

	return kml.KML(kml.Document(placemarks...)).WriteIndent(w, "", "  ")
}
