// Package geo holds the distance helpers shared by graph construction and
// snapping. Coordinates are WGS84 degrees, distances meters.
package geo

import "math"

const earthRadiusMeters = 6_371_000.0

// MetersPerDegree converts degree-scaled projected distances to meters.
const MetersPerDegree = math.Pi / 180 * earthRadiusMeters

func radians(deg float64) float64 { return deg * math.Pi / 180 }

// Haversine returns the great-circle distance between two points.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := radians(lat2 - lat1)
	dLon := radians(lon2 - lon1)
	sinLat, sinLon := math.Sin(dLat/2), math.Sin(dLon/2)

	a := sinLat*sinLat + math.Cos(radians(lat1))*math.Cos(radians(lat2))*sinLon*sinLon
	return 2 * earthRadiusMeters * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// Projection is a local equirectangular projection: longitudes are scaled
// by the cosine of a reference latitude so both axes share degree units.
// Good to well under 1% within a few kilometres of the reference.
type Projection struct {
	cosLat float64
}

// NewProjection returns the projection centred on refLat.
func NewProjection(refLat float64) Projection {
	return Projection{cosLat: math.Cos(radians(refLat))}
}

// Project maps a coordinate to planar degree-scaled x, y.
func (p Projection) Project(lat, lon float64) (x, y float64) {
	return lon * p.cosLat, lat
}

// PointToSegmentDist returns the distance from P to segment AB and the
// projection ratio of P along AB clamped to [0, 1]. The projection is
// centred on the segment.
func PointToSegmentDist(pLat, pLon, aLat, aLon, bLat, bLon float64) (dist float64, ratio float64) {
	proj := NewProjection((aLat + bLat) / 2)
	ax, ay := proj.Project(aLat, aLon)
	bx, by := proj.Project(bLat, bLon)
	px, py := proj.Project(pLat, pLon)

	// Compare the raw coordinates: scaling by cosLat can make identical
	// longitudes differ in the last bit.
	if aLat == bLat && aLon == bLon {
		return math.Hypot(px-ax, py-ay) * MetersPerDegree, 0
	}

	dx, dy := bx-ax, by-ay
	if lenSq := dx*dx + dy*dy; lenSq > 0 {
		ratio = ((px-ax)*dx + (py-ay)*dy) / lenSq
		ratio = min(max(ratio, 0), 1)
	}
	return math.Hypot(px-(ax+ratio*dx), py-(ay+ratio*dy)) * MetersPerDegree, ratio
}
