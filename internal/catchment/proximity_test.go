package catchment_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/SchoolZones/SZ-Backend/internal/catchment"
	"github.com/SchoolZones/SZ-Backend/internal/catchment/geoindex"
	"github.com/paulmach/orb/geo"
)

// sydneyCBD is the reference point for the proximity scenarios.
var sydneyCBD = catchment.Point{Lat: -33.8688, Lng: 151.2093}

// syntheticPoint places an address at an exact geodesic distance and
// bearing from the reference point.
func syntheticPoint(id string, bearing, distanceMeters float64, suburb, street string) catchment.AddressPoint {
	dest := geo.PointAtBearingAndDistance(sydneyCBD.Orb(), bearing, distanceMeters)
	lat, lng := dest[1], dest[0]
	return catchment.AddressPoint{
		ID:         id,
		StreetName: street,
		Suburb:     suburb,
		State:      "NSW",
		Postcode:   "2000",
		Latitude:   &lat,
		Longitude:  &lng,
	}
}

// sydneyStore builds the in-memory index with ten synthetic addresses at
// known distances from the CBD: 0.5, 0.6, 1.2, 2.5, 3.9, 4.999, 5.0, 5.1,
// 7.0 and 9.0 km.
func sydneyStore() *geoindex.Index {
	points := []catchment.AddressPoint{
		syntheticPoint("GA05", 10, 500, "Sydney", "George Street"),
		syntheticPoint("GA06", 95, 600, "Sydney", "Pitt Street"),
		syntheticPoint("GA12", 200, 1200, "Surry Hills", "Crown Street"),
		syntheticPoint("GA25", 310, 2500, "Glebe", "Glebe Point Road"),
		syntheticPoint("GA39", 45, 3900, "Mosman", "Military Road"),
		syntheticPoint("GA49", 130, 4999, "Randwick", "Alison Road"),
		syntheticPoint("GA50", 270, 5000, "Leichhardt", "Norton Street"),
		syntheticPoint("GA51", 80, 5100, "Bondi", "Campbell Parade"),
		syntheticPoint("GA70", 350, 7000, "Chatswood", "Victoria Avenue"),
		syntheticPoint("GA90", 225, 9000, "Hurstville", "Forest Road"),
	}
	return geoindex.NewIndex(points)
}

func sydneyQuery() catchment.ProximityQuery {
	return catchment.ProximityQuery{
		Center:       sydneyCBD,
		RadiusMeters: 5000,
		Limit:        1000,
	}
}

// TestFindNear_SydneyScenario verifies the 5 km query returns exactly the
// points at <= 5.0 km, ordered ascending by distance, excluding the 5.1 and
// 7.0 km points.
func TestFindNear_SydneyScenario(t *testing.T) {
	r := catchment.NewProximityResolver(sydneyStore())

	items, err := r.FindNear(context.Background(), sydneyQuery())
	if err != nil {
		t.Fatalf("FindNear: %v", err)
	}

	wantIDs := []string{"GA05", "GA06", "GA12", "GA25", "GA39", "GA49", "GA50"}
	if len(items) != len(wantIDs) {
		t.Fatalf("expected %d results, got %d: %+v", len(wantIDs), len(items), items)
	}
	for i, item := range items {
		if item.Address.ID != wantIDs[i] {
			t.Errorf("result %d: id = %s, want %s", i, item.Address.ID, wantIDs[i])
		}
		if item.Rank != i+1 {
			t.Errorf("result %d: rank = %d, want %d", i, item.Rank, i+1)
		}
		if item.DistanceKm > 5.0 {
			t.Errorf("result %d (%s): distance %.2f km exceeds radius", i, item.Address.ID, item.DistanceKm)
		}
		if i > 0 && item.DistanceKm < items[i-1].DistanceKm {
			t.Errorf("results not sorted ascending at index %d", i)
		}
	}
}

// TestCountNear_AgreesWithFindNear verifies the count matches an unbounded
// FindNear and that paginated pages are contiguous slices of the same
// ordering.
func TestCountNear_AgreesWithFindNear(t *testing.T) {
	r := catchment.NewProximityResolver(sydneyStore())
	ctx := context.Background()

	full, err := r.FindNear(ctx, sydneyQuery())
	if err != nil {
		t.Fatalf("FindNear: %v", err)
	}
	total, err := r.CountNear(ctx, sydneyQuery())
	if err != nil {
		t.Fatalf("CountNear: %v", err)
	}
	if int(total) != len(full) {
		t.Fatalf("CountNear = %d, FindNear returned %d", total, len(full))
	}

	var paged []catchment.ResultItem
	for offset := 0; offset < len(full); offset += 3 {
		q := sydneyQuery()
		q.Limit = 3
		q.Offset = offset
		page, err := r.FindNear(ctx, q)
		if err != nil {
			t.Fatalf("FindNear(offset=%d): %v", offset, err)
		}
		paged = append(paged, page...)
	}

	if len(paged) != len(full) {
		t.Fatalf("pages sum to %d items, want %d", len(paged), len(full))
	}
	for i := range full {
		if paged[i].Address.ID != full[i].Address.ID {
			t.Errorf("page item %d: id = %s, want %s", i, paged[i].Address.ID, full[i].Address.ID)
		}
		if paged[i].Rank != full[i].Rank {
			t.Errorf("page item %d: rank = %d, want %d", i, paged[i].Rank, full[i].Rank)
		}
	}
}

// TestFindNear_Idempotent verifies repeating the identical query yields
// identical ordered output.
func TestFindNear_Idempotent(t *testing.T) {
	r := catchment.NewProximityResolver(sydneyStore())
	ctx := context.Background()

	first, err := r.FindNear(ctx, sydneyQuery())
	if err != nil {
		t.Fatalf("FindNear: %v", err)
	}
	second, err := r.FindNear(ctx, sydneyQuery())
	if err != nil {
		t.Fatalf("FindNear (repeat): %v", err)
	}

	if fmt.Sprintf("%+v", first) != fmt.Sprintf("%+v", second) {
		t.Error("repeated identical query returned different output")
	}
}

// TestFindNear_TieBreakByID verifies two candidates at the same distance
// order deterministically by identifier.
func TestFindNear_TieBreakByID(t *testing.T) {
	a := syntheticPoint("GB02", 90, 1000, "Sydney", "Bridge Street")
	b := syntheticPoint("GB01", 90, 1000, "Sydney", "Bridge Street")
	idx := geoindex.NewIndex([]catchment.AddressPoint{a, b})

	r := catchment.NewProximityResolver(idx)
	items, err := r.FindNear(context.Background(), sydneyQuery())
	if err != nil {
		t.Fatalf("FindNear: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 results, got %d", len(items))
	}
	if items[0].Address.ID != "GB01" || items[1].Address.ID != "GB02" {
		t.Errorf("tie not broken by id: got %s, %s", items[0].Address.ID, items[1].Address.ID)
	}
}

// TestFindNear_AttributeFilters verifies filters narrow the spatially
// matched set with case-insensitive partial matching.
func TestFindNear_AttributeFilters(t *testing.T) {
	r := catchment.NewProximityResolver(sydneyStore())

	q := sydneyQuery()
	q.Filters = []catchment.AttributeFilter{
		{Field: catchment.FieldSuburb, Match: catchment.MatchContains, Value: "SYD"},
	}
	items, err := r.FindNear(context.Background(), q)
	if err != nil {
		t.Fatalf("FindNear: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 Sydney results, got %d", len(items))
	}
	for _, item := range items {
		if item.Address.Suburb != "Sydney" {
			t.Errorf("unexpected suburb %q", item.Address.Suburb)
		}
	}

	count, err := catchment.NewProximityResolver(sydneyStore()).CountNear(context.Background(), q)
	if err != nil {
		t.Fatalf("CountNear: %v", err)
	}
	if count != 2 {
		t.Errorf("CountNear with filter = %d, want 2", count)
	}
}

// TestFindNear_EmptyRegion verifies an index miss returns an empty result,
// not an error.
func TestFindNear_EmptyRegion(t *testing.T) {
	r := catchment.NewProximityResolver(sydneyStore())

	q := sydneyQuery()
	q.Center = catchment.Point{Lat: -54.5, Lng: 158.9} // Macquarie Island, nothing indexed
	items, err := r.FindNear(context.Background(), q)
	if err != nil {
		t.Fatalf("FindNear: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("expected empty result, got %d items", len(items))
	}
}

func TestFindNear_InvalidQueries(t *testing.T) {
	r := catchment.NewProximityResolver(sydneyStore())
	ctx := context.Background()

	q := sydneyQuery()
	q.RadiusMeters = 0
	if _, err := r.FindNear(ctx, q); !errors.Is(err, catchment.ErrInvalidQuery) {
		t.Errorf("zero radius: expected ErrInvalidQuery, got %v", err)
	}
	if _, err := r.CountNear(ctx, q); !errors.Is(err, catchment.ErrInvalidQuery) {
		t.Errorf("zero radius count: expected ErrInvalidQuery, got %v", err)
	}

	q = sydneyQuery()
	q.Center = catchment.Point{Lat: 91, Lng: 0}
	if _, err := r.FindNear(ctx, q); !errors.Is(err, catchment.ErrInvalidQuery) {
		t.Errorf("bad center: expected ErrInvalidQuery, got %v", err)
	}
}
