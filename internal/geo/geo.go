package geo

import (
	"errors"
	"math"

	"github.com/fieldsentry/backend/internal/models"
)

var ErrMalformedCoordinate = errors.New("malformed coordinate")

const earthRadiusM = 6371000.0

// DistanceMeters returns the great-circle (haversine) distance between two
// lat/lon pairs. Geofence radii are tens to hundreds of meters, where the
// curvature correction matters at the boundary.
func DistanceMeters(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := degreesToRadians(lat2 - lat1)
	dLon := degreesToRadians(lon2 - lon1)

	lat1R := degreesToRadians(lat1)
	lat2R := degreesToRadians(lat2)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Sin(dLon/2)*math.Sin(dLon/2)*math.Cos(lat1R)*math.Cos(lat2R)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusM * c
}

// Validate rejects non-finite or out-of-range coordinates before they reach
// the state machine.
func Validate(lat, lon float64) error {
	if math.IsNaN(lat) || math.IsInf(lat, 0) || math.IsNaN(lon) || math.IsInf(lon, 0) {
		return ErrMalformedCoordinate
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return ErrMalformedCoordinate
	}
	return nil
}

// WithinGeofence reports whether the coordinate falls inside the circular
// boundary. The boundary itself (distance == radius) counts as inside.
func WithinGeofence(lat, lon float64, fence models.Geofence) (bool, error) {
	if err := Validate(lat, lon); err != nil {
		return false, err
	}
	return DistanceMeters(lat, lon, fence.Lat, fence.Lon) <= fence.RadiusM, nil
}

func degreesToRadians(d float64) float64 {
	return d * math.Pi / 180
}
