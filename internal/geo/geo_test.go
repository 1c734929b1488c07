package geo

import (
	"errors"
	"math"
	"testing"

	"github.com/fieldsentry/backend/internal/models"
)

func TestWithinGeofence_InsideSmallRadius(t *testing.T) {
	fence := models.Geofence{Lat: 28.6139, Lon: 77.2090, RadiusM: 100}
	in, err := WithinGeofence(28.6140, 77.2095, fence)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !in {
		t.Fatalf("expected coordinate ~50m from center to be inside 100m fence")
	}
}

func TestWithinGeofence_Outside(t *testing.T) {
	fence := models.Geofence{Lat: 28.6139, Lon: 77.2090, RadiusM: 100}
	// ~1.1km north of center
	in, err := WithinGeofence(28.6239, 77.2090, fence)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if in {
		t.Fatalf("expected coordinate ~1.1km from center to be outside 100m fence")
	}
}

func TestWithinGeofence_BoundaryInclusive(t *testing.T) {
	centerLat, centerLon := 28.6139, 77.2090
	ptLat, ptLon := 28.6150, 77.2100
	d := DistanceMeters(ptLat, ptLon, centerLat, centerLon)

	fence := models.Geofence{Lat: centerLat, Lon: centerLon, RadiusM: d}
	in, err := WithinGeofence(ptLat, ptLon, fence)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !in {
		t.Fatalf("expected distance == radius to count as inside")
	}
}

func TestWithinGeofence_MalformedCoordinates(t *testing.T) {
	fence := models.Geofence{Lat: 0, Lon: 0, RadiusM: 100}
	cases := [][2]float64{
		{math.NaN(), 0},
		{0, math.Inf(1)},
		{95, 0},
		{0, -200},
	}
	for _, c := range cases {
		if _, err := WithinGeofence(c[0], c[1], fence); !errors.Is(err, ErrMalformedCoordinate) {
			t.Fatalf("expected ErrMalformedCoordinate for (%v, %v), got %v", c[0], c[1], err)
		}
	}
}

func TestDistanceMeters_ZeroAndSymmetry(t *testing.T) {
	if d := DistanceMeters(28.6139, 77.2090, 28.6139, 77.2090); d != 0 {
		t.Fatalf("expected zero distance for identical points, got %v", d)
	}
	a := DistanceMeters(28.6139, 77.2090, 28.7, 77.3)
	b := DistanceMeters(28.7, 77.3, 28.6139, 77.2090)
	if math.Abs(a-b) > 1e-9 {
		t.Fatalf("expected symmetric distance, got %v vs %v", a, b)
	}
}
