package catchment_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/SchoolZones/SZ-Backend/internal/catchment"
	"github.com/SchoolZones/SZ-Backend/internal/config"
)

func searchConfig() config.SearchConfig {
	return config.SearchConfig{
		DefaultRadiusMeters: 5000,
		IndexMargin:         1.1,
		DefaultPageSize:     100,
		MaxPageSize:         500,
	}
}

// testHandler wires the HTTP surface around the in-memory index with the
// Sydney scenario data plus one school and its square catchment.
func testHandler(t *testing.T) http.Handler {
	t.Helper()

	idx := sydneyStore()
	lat, lng := sydneyCBD.Lat, sydneyCBD.Lng
	idx.AddSchool(catchment.School{
		ID: 41319, Name: "Inner Sydney High School", State: "NSW",
		Sector: "Government", Latitude: &lat, Longitude: &lng,
	})
	meta, poly := squareCatchment(catchment.KindSecondary)
	if err := idx.AddCatchment(meta, poly); err != nil {
		t.Fatalf("AddCatchment: %v", err)
	}

	h := catchment.NewHandler(
		catchment.NewProximityResolver(idx),
		catchment.NewCatchmentResolver(idx, nil),
		idx,
		searchConfig(),
	)
	return h.SetupRoutes()
}

func doGet(t *testing.T, h http.Handler, url string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, url, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestGetSchoolsForPoint_Hit(t *testing.T) {
	h := testHandler(t)

	rec := doGet(t, h, "/schools?lat=-33.75&lng=151.25")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var body struct {
		Count   int                    `json:"count"`
		Schools []catchment.Membership `json:"schools"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Count != 1 || len(body.Schools) != 1 {
		t.Fatalf("expected one membership, got %+v", body)
	}
	if body.Schools[0].SchoolID != 41319 {
		t.Errorf("school id = %d, want 41319", body.Schools[0].SchoolID)
	}
}

func TestGetSchoolsForPoint_NoMembership(t *testing.T) {
	h := testHandler(t)

	rec := doGet(t, h, "/schools?lat=-35.0&lng=151.25")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for zero matches, got %d", rec.Code)
	}
	var body struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Count != 0 {
		t.Errorf("count = %d, want 0", body.Count)
	}
}

func TestGetSchoolsForPoint_BadParams(t *testing.T) {
	h := testHandler(t)

	for _, url := range []string{"/schools", "/schools?lat=abc&lng=151.2", "/schools?lat=-33.8"} {
		if rec := doGet(t, h, url); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", url, rec.Code)
		}
	}
}

func TestGetSchoolsForPoint_OutOfRange(t *testing.T) {
	h := testHandler(t)

	rec := doGet(t, h, "/schools?lat=-95&lng=151.25&type=secondary")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for out-of-range latitude, got %d", rec.Code)
	}
}

func TestGetSchool_WithZone(t *testing.T) {
	h := testHandler(t)

	rec := doGet(t, h, "/school/41319")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var body struct {
		School catchment.School `json:"school"`
		Zone   *struct {
			Type       string         `json:"type"`
			Properties map[string]any `json:"properties"`
		} `json:"zone"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.School.ID != 41319 {
		t.Errorf("school id = %d", body.School.ID)
	}
	if body.Zone == nil {
		t.Fatal("expected a zone feature")
	}
	if body.Zone.Type != "Feature" {
		t.Errorf("zone type = %q, want Feature", body.Zone.Type)
	}
	if kind, _ := body.Zone.Properties["kind"].(string); kind != catchment.KindDefaultRadiusZone {
		t.Errorf("zone kind = %q, want %q", kind, catchment.KindDefaultRadiusZone)
	}
}

func TestGetSchool_NotFound(t *testing.T) {
	h := testHandler(t)

	if rec := doGet(t, h, "/school/999"); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestGetSchoolAddresses(t *testing.T) {
	h := testHandler(t)

	rec := doGet(t, h, "/school/41319/addresses?limit=3")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var body struct {
		Addresses []catchment.ResultItem `json:"addresses"`
		Total     int64                  `json:"total"`
		Limit     int                    `json:"limit"`
		Offset    int                    `json:"offset"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(body.Addresses) != 3 {
		t.Fatalf("expected 3 addresses, got %d", len(body.Addresses))
	}
	if body.Total != 7 {
		t.Errorf("total = %d, want 7", body.Total)
	}
	if body.Addresses[0].FullAddress == "" {
		t.Error("expected assembled full_address")
	}
	for i := 1; i < len(body.Addresses); i++ {
		if body.Addresses[i].DistanceKm < body.Addresses[i-1].DistanceKm {
			t.Errorf("addresses not sorted ascending at %d", i)
		}
	}
}

func TestGetSchoolAddresses_CoordinateLikeFilter(t *testing.T) {
	h := testHandler(t)

	rec := doGet(t, h, "/school/41319/addresses?street=-33.8688")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for coordinate-like street filter, got %d", rec.Code)
	}
}

func TestSearchSchools(t *testing.T) {
	h := testHandler(t)

	rec := doGet(t, h, "/schools/search?q=inner+sydney")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Count   int                `json:"count"`
		Schools []catchment.School `json:"schools"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Count != 1 {
		t.Fatalf("expected one school, got %+v", body)
	}

	if rec := doGet(t, h, "/schools/search"); rec.Code != http.StatusBadRequest {
		t.Errorf("missing q: expected 400, got %d", rec.Code)
	}
	if rec := doGet(t, h, "/schools/search?q=nonexistent"); rec.Code != http.StatusOK {
		t.Errorf("zero matches should still be 200, got %d", rec.Code)
	}
}

// failingStore simulates an unreachable storage collaborator for every
// contract the handler consumes.
type failingStore struct{}

func (failingStore) Point(context.Context, string) (*catchment.AddressPoint, error) {
	return nil, fmt.Errorf("%w: connection refused", catchment.ErrStorageUnavailable)
}

func (failingStore) CandidatesWithin(context.Context, catchment.ProximityQuery) ([]catchment.Candidate, error) {
	return nil, fmt.Errorf("%w: connection refused", catchment.ErrStorageUnavailable)
}

func (failingStore) CountWithin(context.Context, catchment.ProximityQuery) (int64, error) {
	return 0, fmt.Errorf("%w: connection refused", catchment.ErrStorageUnavailable)
}

func (failingStore) Containing(context.Context, catchment.Point, string) (*catchment.SchoolCatchment, error) {
	return nil, fmt.Errorf("%w: connection refused", catchment.ErrStorageUnavailable)
}

func (failingStore) School(context.Context, int) (*catchment.School, error) {
	return nil, fmt.Errorf("%w: connection refused", catchment.ErrStorageUnavailable)
}

func (failingStore) SearchSchools(context.Context, string, []string, int) ([]catchment.School, error) {
	return nil, fmt.Errorf("%w: connection refused", catchment.ErrStorageUnavailable)
}

// TestStorageUnavailable verifies storage failures surface as 503 rather
// than degrading into empty 200 responses.
func TestStorageUnavailable(t *testing.T) {
	h := catchment.NewHandler(
		catchment.NewProximityResolver(failingStore{}),
		catchment.NewCatchmentResolver(failingStore{}, nil),
		failingStore{},
		searchConfig(),
	).SetupRoutes()

	for _, url := range []string{
		"/schools?lat=-33.75&lng=151.25",
		"/school/41319",
		"/schools/search?q=sydney",
	} {
		if rec := doGet(t, h, url); rec.Code != http.StatusServiceUnavailable {
			t.Errorf("%s: expected 503, got %d", url, rec.Code)
		}
	}
}
