package ctdf

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/planar"
)

type Location struct {
	Type        string    `json:"-"`
	Coordinates []float64 `json:"coordinates"`
}

func NewLocation(latitude float64, longitude float64) Location {
	return Location{
		Type:        "Point",
		Coordinates: []float64{longitude, latitude},
	}
}

func LocationFromPoint(point orb.Point) Location {
	return NewLocation(point.Lat(), point.Lon())
}

func (l Location) IsValid() bool {
	if len(l.Coordinates) != 2 {
		return false
	}

	return !math.IsNaN(l.Coordinates[0]) && !math.IsNaN(l.Coordinates[1])
}

func (l Location) Longitude() float64 {
	if len(l.Coordinates) != 2 {
		return math.NaN()
	}
	return l.Coordinates[0]
}

func (l Location) Latitude() float64 {
	if len(l.Coordinates) != 2 {
		return math.NaN()
	}
	return l.Coordinates[1]
}

func (l Location) Point() orb.Point {
	return orb.Point{l.Longitude(), l.Latitude()}
}

// Distance is the great-circle distance in metres
func (l Location) Distance(other Location) float64 {
	return geo.Distance(l.Point(), other.Point())
}

// Bearing from this location to the other in degrees, normalised to [0, 360)
func (l Location) Bearing(other Location) float64 {
	bearing := geo.Bearing(l.Point(), other.Point())
	if bearing < 0 {
		bearing += 360
	}
	return bearing
}

func (l Location) Equal(other Location) bool {
	if !l.IsValid() || !other.IsValid() {
		return l.IsValid() == other.IsValid()
	}

	return l.Point().Equal(other.Point())
}

// ClosestPointOnLine returns the point on the segment a-b closest to l and the
// fraction (0..1) along the segment where it lies. The projection happens in
// degree space scaled by the cosine of the latitude which is plenty accurate
// for the short segments of a shape.
func (l Location) ClosestPointOnLine(a Location, b Location) (Location, float64) {
	scale := math.Cos(a.Latitude() * math.Pi / 180)

	ax, ay := a.Longitude()*scale, a.Latitude()
	bx, by := b.Longitude()*scale, b.Latitude()
	px, py := l.Longitude()*scale, l.Latitude()

	dx := bx - ax
	dy := by - ay
	lengthSquared := dx*dx + dy*dy

	fraction := 0.0
	if lengthSquared != 0 {
		fraction = ((px-ax)*dx + (py-ay)*dy) / lengthSquared
	}
	fraction = math.Max(0, math.Min(1, fraction))

	return Interpolate(a, b, fraction), fraction
}

// Interpolate linearly between two locations
func Interpolate(a Location, b Location, fraction float64) Location {
	return NewLocation(
		a.Latitude()+(b.Latitude()-a.Latitude())*fraction,
		a.Longitude()+(b.Longitude()-a.Longitude())*fraction,
	)
}

// Polygon is a closed ring of locations, used for geofences
type Polygon []Location

func (p Polygon) Contains(location Location) bool {
	if len(p) < 3 || !location.IsValid() {
		return false
	}

	ring := make(orb.Ring, 0, len(p)+1)
	for _, vertex := range p {
		ring = append(ring, vertex.Point())
	}
	if !ring[0].Equal(ring[len(ring)-1]) {
		ring = append(ring, ring[0])
	}

	return planar.PolygonContains(orb.Polygon{ring}, location.Point())
}
