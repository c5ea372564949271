package internal

import (
	"math"
	"testing"
)

func TestHaversineZeroDistance(t *testing.T) {
	d := HaversineMeters(40.0, -73.0, 40.0, -73.0)
	if d != 0 {
		t.Fatalf("expected 0 distance, got %f", d)
	}
}

func TestHaversineKnownDistance(t *testing.T) {
	// One degree of longitude at the equator is ~111.19 km on a 6371 km sphere.
	d := HaversineMeters(0, 0, 0, 1)
	if math.Abs(d-111195) > 10 {
		t.Fatalf("expected ~111195m, got %f", d)
	}
}

func TestHaversineSymmetric(t *testing.T) {
	ab := HaversineMeters(40.7128, -74.0060, 34.0522, -118.2437)
	ba := HaversineMeters(34.0522, -118.2437, 40.7128, -74.0060)
	if math.Abs(ab-ba) > 1e-6 {
		t.Fatalf("distance not symmetric: %f vs %f", ab, ba)
	}
}

func TestWithinRadiusBoundary(t *testing.T) {
	// 0.00068 degrees of longitude at the equator is ~75.6m: inside 76.2m.
	if !WithinRadius(0, 0, 0, 0.00068, DefaultRadiusMeters) {
		t.Fatalf("expected 75.6m to be within 76.2m radius")
	}
	// 0.0008 degrees is ~89m: outside.
	if WithinRadius(0, 0, 0, 0.0008, DefaultRadiusMeters) {
		t.Fatalf("expected 89m to be outside 76.2m radius")
	}
}

func TestWithinRadiusInclusive(t *testing.T) {
	d := HaversineMeters(0, 0, 0, 0.0005)
	if !WithinRadius(0, 0, 0, 0.0005, d) {
		t.Fatalf("boundary must be inclusive")
	}
	if WithinRadius(0, 0, 0, 0.0005, d-0.0001) {
		t.Fatalf("just beyond the radius must be excluded")
	}
}
