package catchment_test

import (
	"errors"
	"math"
	"testing"

	"github.com/SchoolZones/SZ-Backend/internal/catchment"
	"github.com/paulmach/orb/geo"
)

// TestBuffer_RadiusHoldsAtHighLatitudes verifies the generated disk keeps
// its metric radius regardless of latitude, the reason buffering is done
// geodesically instead of in raw degrees.
func TestBuffer_RadiusHoldsAtHighLatitudes(t *testing.T) {
	const radius = 5000.0

	centers := []catchment.Point{
		{Lat: -33.8688, Lng: 151.2093}, // Sydney
		{Lat: 60.0, Lng: 10.0},
		{Lat: -60.0, Lng: -70.0},
		{Lat: 80.0, Lng: 20.0},
		{Lat: -80.0, Lng: 140.0},
	}

	for _, center := range centers {
		poly, err := catchment.Buffer(center, radius)
		if err != nil {
			t.Fatalf("Buffer(%v): %v", center, err)
		}
		if len(poly) != 1 {
			t.Fatalf("Buffer(%v): expected single ring, got %d", center, len(poly))
		}

		ring := poly[0]
		if ring[0] != ring[len(ring)-1] {
			t.Errorf("Buffer(%v): ring is not closed", center)
		}

		c := center.Orb()
		maxDist := 0.0
		for _, v := range ring[:len(ring)-1] {
			d := geo.Distance(c, v)
			if d > maxDist {
				maxDist = d
			}
			// Every boundary vertex sits at the radius within 0.1%.
			if rel := math.Abs(d-radius) / radius; rel > 0.001 {
				t.Errorf("Buffer(%v): vertex at distance %.2fm, relative error %.4f", center, d, rel)
			}
		}
		if rel := math.Abs(maxDist-radius) / radius; rel > 0.001 {
			t.Errorf("Buffer(%v): max boundary distance %.2fm, want %.2fm", center, maxDist, radius)
		}
	}
}

// TestBuffer_CentroidRoundTrip verifies the vertex centroid lands back on
// the generating point.
func TestBuffer_CentroidRoundTrip(t *testing.T) {
	const radius = 5000.0

	for _, center := range []catchment.Point{
		{Lat: -33.8688, Lng: 151.2093},
		{Lat: 60.0, Lng: 10.0},
		{Lat: -80.0, Lng: 140.0},
	} {
		poly, err := catchment.Buffer(center, radius)
		if err != nil {
			t.Fatalf("Buffer(%v): %v", center, err)
		}

		ring := poly[0]
		var sumLat, sumLng float64
		n := len(ring) - 1 // skip the closing duplicate
		for _, v := range ring[:n] {
			sumLng += v[0]
			sumLat += v[1]
		}
		centroid := catchment.Point{Lat: sumLat / float64(n), Lng: sumLng / float64(n)}

		// Within 0.5% of the radius of the generating point.
		if d := geo.Distance(center.Orb(), centroid.Orb()); d > radius*0.005 {
			t.Errorf("Buffer(%v): centroid drifted %.2fm from center", center, d)
		}
	}
}

func TestBuffer_InvalidInput(t *testing.T) {
	if _, err := catchment.Buffer(catchment.Point{Lat: -95, Lng: 151}, 5000); !errors.Is(err, catchment.ErrInvalidQuery) {
		t.Errorf("expected ErrInvalidQuery for bad center, got %v", err)
	}
	if _, err := catchment.Buffer(catchment.Point{Lat: -33.8, Lng: 151.2}, 0); !errors.Is(err, catchment.ErrInvalidQuery) {
		t.Errorf("expected ErrInvalidQuery for zero radius, got %v", err)
	}
	if _, err := catchment.Buffer(catchment.Point{Lat: -33.8, Lng: 151.2}, -100); !errors.Is(err, catchment.ErrInvalidQuery) {
		t.Errorf("expected ErrInvalidQuery for negative radius, got %v", err)
	}
}

// TestZoneCatchment_NoCoordinates verifies a school without coordinates
// yields no zone and no error; downstream treats "no zone" as valid.
func TestZoneCatchment_NoCoordinates(t *testing.T) {
	zc, poly, err := catchment.ZoneCatchment(catchment.School{ID: 1, Name: "Remote School"}, 5000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if zc != nil || poly != nil {
		t.Errorf("expected nil zone for school without coordinates, got %v / %v", zc, poly)
	}
}

func TestZoneCatchment_BuildsDefaultRadiusZone(t *testing.T) {
	lat, lng := -33.8688, 151.2093
	s := catchment.School{ID: 41319, Name: "Sydney Grammar", State: "NSW", Latitude: &lat, Longitude: &lng}

	zc, poly, err := catchment.ZoneCatchment(s, 5000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if zc == nil || poly == nil {
		t.Fatal("expected a synthetic zone")
	}
	if zc.Kind != catchment.KindDefaultRadiusZone {
		t.Errorf("zone kind = %q, want %q", zc.Kind, catchment.KindDefaultRadiusZone)
	}
	if zc.SchoolID != s.ID {
		t.Errorf("zone school id = %d, want %d", zc.SchoolID, s.ID)
	}
}
