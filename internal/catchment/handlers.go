package catchment

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/SchoolZones/SZ-Backend/internal/config"
	"github.com/go-chi/chi/v5"
	"github.com/paulmach/orb/geojson"
)

// Handler carries the injected resolvers and stores for the HTTP surface.
// No package-level state: tests construct a Handler around fakes.
type Handler struct {
	Proximity  *ProximityResolver
	Catchments *CatchmentResolver
	Schools    SchoolStore
	Search     config.SearchConfig
}

func NewHandler(prox *ProximityResolver, cat *CatchmentResolver, schools SchoolStore, search config.SearchConfig) *Handler {
	return &Handler{
		Proximity:  prox,
		Catchments: cat,
		Schools:    schools,
		Search:     search,
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the resolver error taxonomy onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidQuery):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ErrStorageUnavailable):
		log.Printf("[catchment] storage error: %v", err)
		http.Error(w, "Storage unavailable", http.StatusServiceUnavailable)
	default:
		log.Printf("[catchment] unexpected error: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// GetSchoolsForPoint resolves which catchments contain a coordinate.
// GET /schools?lat=-33.8688&lng=151.2093[&type=primary]
// Without a type, each known kind is resolved independently.
func (h *Handler) GetSchoolsForPoint(w http.ResponseWriter, r *http.Request) {
	lat, latErr := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lng, lngErr := strconv.ParseFloat(r.URL.Query().Get("lng"), 64)
	if latErr != nil || lngErr != nil {
		http.Error(w, "Valid lat and lng parameters required", http.StatusBadRequest)
		return
	}
	pt := Point{Lat: lat, Lng: lng}

	var memberships []Membership
	var err error
	if kind := r.URL.Query().Get("type"); kind != "" {
		var m *Membership
		m, err = h.Catchments.Resolve(r.Context(), pt, kind)
		if m != nil {
			memberships = append(memberships, *m)
		}
	} else {
		memberships, err = h.Catchments.ResolveAll(r.Context(), pt)
	}
	if err != nil {
		writeError(w, err)
		return
	}

	if memberships == nil {
		memberships = []Membership{}
	}
	writeJSON(w, map[string]any{
		"count":   len(memberships),
		"schools": memberships,
	})
}

// GetSchool returns school metadata plus its service-area polygon as a
// GeoJSON feature. Schools without coordinates come back with a null zone.
// GET /school/{id}
func (h *Handler) GetSchool(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Valid school id required", http.StatusBadRequest)
		return
	}

	school, err := h.Schools.School(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	var zone *geojson.Feature
	zc, poly, err := ZoneCatchment(*school, h.Search.DefaultRadiusMeters)
	if err != nil {
		writeError(w, err)
		return
	}
	if zc != nil {
		zone = geojson.NewFeature(poly)
		zone.Properties = geojson.Properties{
			"kind":      zc.Kind,
			"school_id": zc.SchoolID,
			"radius_km": RoundKm(h.Search.DefaultRadiusMeters),
		}
	}

	writeJSON(w, map[string]any{
		"school": school,
		"zone":   zone,
	})
}

// GetSchoolAddresses lists addresses within the service radius of a school,
// ranked by distance, with optional attribute filters and a total count.
// GET /school/{id}/addresses?limit=100&offset=0&street=George&suburb=Sydney
func (h *Handler) GetSchoolAddresses(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Valid school id required", http.StatusBadRequest)
		return
	}

	school, err := h.Schools.School(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	center, ok := school.Location()
	if !ok {
		http.Error(w, "School has no recorded coordinates", http.StatusBadRequest)
		return
	}

	q := ProximityQuery{
		Center:       center,
		RadiusMeters: h.Search.DefaultRadiusMeters,
		Filters:      filtersFromRequest(r),
		Limit:        h.pageSize(r.URL.Query().Get("limit")),
		Offset:       parseNonNegative(r.URL.Query().Get("offset"), 0),
	}

	items, err := h.Proximity.FindNear(r.Context(), q)
	if err != nil {
		writeError(w, err)
		return
	}
	total, err := h.Proximity.CountNear(r.Context(), q)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, map[string]any{
		"addresses": items,
		"total":     total,
		"limit":     q.Limit,
		"offset":    q.Offset,
	})
}

// SearchSchools resolves a school by name, tiered exact → prefix →
// substring, optionally narrowed to sectors.
// GET /schools/search?q=sydney&sector=Government
func (h *Handler) SearchSchools(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.URL.Query().Get("q"))
	if name == "" {
		http.Error(w, "Query parameter q required", http.StatusBadRequest)
		return
	}
	if IsCoordinateLike(name) {
		http.Error(w, "Invalid school name: looks like a coordinate value", http.StatusBadRequest)
		return
	}

	var sectors []string
	if raw := r.URL.Query().Get("sector"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			if s = strings.TrimSpace(s); s != "" {
				sectors = append(sectors, s)
			}
		}
	}

	schools, err := h.Schools.SearchSchools(r.Context(), name, sectors, 20)
	if err != nil {
		writeError(w, err)
		return
	}
	if schools == nil {
		schools = []School{}
	}
	writeJSON(w, map[string]any{
		"count":   len(schools),
		"schools": schools,
	})
}

// filtersFromRequest builds the attribute predicates from query parameters.
// Values are passed through untrimmed of case; matching semantics live in
// the stores.
func filtersFromRequest(r *http.Request) []AttributeFilter {
	var filters []AttributeFilter
	qs := r.URL.Query()

	add := func(param string, field FilterField, match MatchKind, canon func(string) string) {
		v := strings.TrimSpace(qs.Get(param))
		if v == "" {
			return
		}
		if canon != nil {
			v = canon(v)
		}
		filters = append(filters, AttributeFilter{Field: field, Match: match, Value: v})
	}

	add("street_number", FieldStreetNumber, MatchContains, nil)
	add("street", FieldStreet, MatchContains, nil)
	add("suburb", FieldSuburb, MatchContains, nil)
	add("postcode", FieldPostcode, MatchEquals, nil)
	add("state", FieldState, MatchEquals, strings.ToUpper)

	return filters
}

func (h *Handler) pageSize(raw string) int {
	n := parseNonNegative(raw, h.Search.DefaultPageSize)
	if n == 0 {
		n = h.Search.DefaultPageSize
	}
	if n > h.Search.MaxPageSize {
		n = h.Search.MaxPageSize
	}
	return n
}

func parseNonNegative(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
