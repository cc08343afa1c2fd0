// Package geo assigns incidents to stations by great-circle distance.
package geo

import (
	"math"

	"github.com/couchcryptid/station-risk-forecast/internal/domain"
)

const earthRadiusMeters = 6371000

const degToRad = math.Pi / 180

// Haversine returns the great-circle distance in meters between a and b.
func Haversine(a, b domain.Point) float64 {
	phi1 := a.Lat * degToRad
	phi2 := b.Lat * degToRad
	deltaPhi := (b.Lat - a.Lat) * degToRad
	deltaLambda := (b.Lon - a.Lon) * degToRad

	h := math.Sin(deltaPhi/2)*math.Sin(deltaPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(deltaLambda/2)*math.Sin(deltaLambda/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusMeters * c
}

// Distances returns the distance in meters from origin to every point, in input order.
func Distances(origin domain.Point, points []domain.Point) []float64 {
	out := make([]float64, len(points))
	// The origin terms are shared by every point.
	phi1 := origin.Lat * degToRad
	cosPhi1 := math.Cos(phi1)
	for i, p := range points {
		phi2 := p.Lat * degToRad
		sinDPhi := math.Sin((phi2 - phi1) / 2)
		sinDLambda := math.Sin((p.Lon - origin.Lon) * degToRad / 2)
		h := sinDPhi*sinDPhi + cosPhi1*math.Cos(phi2)*sinDLambda*sinDLambda
		out[i] = earthRadiusMeters * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	}
	return out
}

// WithinRadius returns the indices of points whose distance from origin is at
// most radius meters. A non-positive radius matches nothing.
func WithinRadius(origin domain.Point, points []domain.Point, radius float64) []int {
	if radius <= 0 || len(points) == 0 {
		return nil
	}
	var idx []int
	for i, d := range Distances(origin, points) {
		if d <= radius {
			idx = append(idx, i)
		}
	}
	return idx
}

// FilterIncidents returns the incidents within radius meters of origin,
// preserving input order.
func FilterIncidents(origin domain.Point, incidents []domain.Incident, radius float64) []domain.Incident {
	if radius <= 0 || len(incidents) == 0 {
		return nil
	}
	points := make([]domain.Point, len(incidents))
	for i := range incidents {
		points[i] = incidents[i].Point
	}
	idx := WithinRadius(origin, points, radius)
	out := make([]domain.Incident, 0, len(idx))
	for _, i := range idx {
		out = append(out, incidents[i])
	}
	return out
}
