package catchment

import (
	"fmt"
	"strconv"
	"strings"
)

// FilterField names a descriptive attribute a proximity query can match on.
type FilterField string

const (
	FieldStreetNumber FilterField = "street_number"
	FieldStreet       FilterField = "street"
	FieldSuburb       FilterField = "suburb"
	FieldPostcode     FilterField = "postcode"
	FieldState        FilterField = "state"
)

// MatchKind selects how a filter value is compared.
type MatchKind int

const (
	// MatchContains is a case-insensitive substring match.
	MatchContains MatchKind = iota
	// MatchEquals is an exact match.
	MatchEquals
)

// AttributeFilter is one predicate over a descriptive field. Each filter
// contributes exactly one bound parameter and one clause to the store's
// query; the store assembles them after its spatial clause, never before,
// so index selectivity is preserved structurally.
type AttributeFilter struct {
	Field FilterField
	Match MatchKind
	Value string
}

// ProximityQuery is the request value object for "addresses near point X".
type ProximityQuery struct {
	Center       Point
	RadiusMeters float64
	Filters      []AttributeFilter
	Limit        int
	Offset       int
}

// freeTextFields take arbitrary user input and are screened for
// coordinate-like values.
var freeTextFields = map[FilterField]bool{
	FieldStreet: true,
	FieldSuburb: true,
}

// Validate enforces the query invariants. Every violation wraps
// ErrInvalidQuery so the HTTP layer can map it to a 400.
func (q ProximityQuery) Validate() error {
	if !q.Center.Valid() {
		return fmt.Errorf("%w: reference point (%v, %v) outside WGS84 range",
			ErrInvalidQuery, q.Center.Lat, q.Center.Lng)
	}
	if q.RadiusMeters <= 0 {
		return fmt.Errorf("%w: radius must be positive, got %v", ErrInvalidQuery, q.RadiusMeters)
	}
	if q.Limit <= 0 {
		return fmt.Errorf("%w: limit must be positive, got %d", ErrInvalidQuery, q.Limit)
	}
	if q.Offset < 0 {
		return fmt.Errorf("%w: offset must be non-negative, got %d", ErrInvalidQuery, q.Offset)
	}
	for _, f := range q.Filters {
		if f.Value == "" {
			return fmt.Errorf("%w: empty value for filter %q", ErrInvalidQuery, f.Field)
		}
		if freeTextFields[f.Field] && IsCoordinateLike(f.Value) {
			return fmt.Errorf("%w: filter %q looks like a coordinate value", ErrInvalidQuery, f.Field)
		}
	}
	return nil
}

// IsCoordinateLike reports whether a free-text value is actually a decimal
// coordinate. Map widgets occasionally submit the raw lat/lng pair into the
// street or suburb box; matching those against street names would silently
// return nothing.
func IsCoordinateLike(value string) bool {
	v := strings.TrimSpace(value)
	if v == "" || !strings.Contains(v, ".") {
		return false
	}
	num, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return false
	}
	// Anything inside the lat or lng range with decimal places is suspect.
	return num >= -180 && num <= 180
}
