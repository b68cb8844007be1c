package catchment

import (
	"github.com/google/uuid"
	"github.com/paulmach/orb"
)

// Point is a WGS84 coordinate pair.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether the point is inside the WGS84 coordinate range.
func (p Point) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// Orb converts to orb's lon/lat ordering.
func (p Point) Orb() orb.Point {
	return orb.Point{p.Lng, p.Lat}
}

// AddressPoint is one geocoded address record from the coordinate store.
// Rows are created and maintained by the ETL importer; the service only
// reads them. Geom is derived from Latitude/Longitude by the importer and
// is null exactly when either coordinate is null.
type AddressPoint struct {
	ID           string   `gorm:"primaryKey;size:16;column:address_pid" json:"gnaf_id"`
	StreetNumber string   `gorm:"size:12" json:"street_number"`
	StreetName   string   `gorm:"size:100" json:"street_name"`
	StreetType   string   `gorm:"size:50" json:"street_type"`
	Suburb       string   `gorm:"size:100" json:"suburb"`
	State        string   `gorm:"index;size:3" json:"state"`
	Postcode     string   `gorm:"size:4" json:"postcode"`
	Latitude     *float64 `json:"latitude"`
	Longitude    *float64 `json:"longitude"`

	// Geometry stored as PostGIS POINT in WGS84 (SRID 4326).
	Geom *string `gorm:"type:geometry(Point,4326)" json:"-"`
}

func (AddressPoint) TableName() string {
	return "gnaf.address_points"
}

// Location returns the point's coordinates, or false when either is null.
func (a AddressPoint) Location() (Point, bool) {
	if a.Latitude == nil || a.Longitude == nil {
		return Point{}, false
	}
	return Point{Lat: *a.Latitude, Lng: *a.Longitude}, true
}

// School carries the descriptive metadata joined onto resolver output.
type School struct {
	ID        int      `gorm:"primaryKey;column:acara_id" json:"acara_id"`
	Name      string   `gorm:"index;size:200" json:"name"`
	State     string   `gorm:"index;size:3" json:"state"`
	Sector    string   `gorm:"size:20" json:"sector"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

func (School) TableName() string {
	return "gnaf.schools"
}

func (s School) Location() (Point, bool) {
	if s.Latitude == nil || s.Longitude == nil {
		return Point{}, false
	}
	return Point{Lat: *s.Latitude, Lng: *s.Longitude}, true
}

// Catchment kinds. Kinds are queried independently; there is no precedence
// or fallback between them.
const (
	KindPrimary   = "primary"
	KindSecondary = "secondary"
	KindFuture    = "future"

	// KindDefaultRadiusZone marks the synthetic disk generated around a
	// school when no authoritative catchment polygon exists.
	KindDefaultRadiusZone = "default-radius-zone"
)

// KnownKinds are the kinds with authoritative polygons in the store.
var KnownKinds = []string{KindPrimary, KindSecondary, KindFuture}

// SchoolCatchment stores one named service-area boundary. Bulk-loaded once
// from the state shapefiles and static afterwards.
type SchoolCatchment struct {
	ID       uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	SchoolID int       `gorm:"index" json:"school_id"`
	Name     string    `gorm:"size:200" json:"name"`
	Kind     string    `gorm:"index;size:32" json:"kind"`
	State    string    `gorm:"index;size:3" json:"state"`

	// POLYGON or MULTIPOLYGON in WGS84 (SRID 4326).
	Geometry string `gorm:"type:geometry(Geometry,4326)" json:"-"`

	Source     string `json:"source"` // e.g. "nsw_doe_2024"
	ImportedAt string `json:"imported_at"`
}

func (SchoolCatchment) TableName() string {
	return "gnaf.school_catchments"
}

// Membership is the outcome of catchment resolution: the owning polygon's
// identifying attributes. A point outside every polygon of the requested
// kind yields no Membership at all (nil, not an error).
type Membership struct {
	CatchmentID uuid.UUID `json:"catchment_id"`
	SchoolID    int       `json:"school_id"`
	Name        string    `json:"name"`
	Kind        string    `json:"kind"`
}

// Candidate is one spatially-filtered address with its exact
// geography-based distance from the query's reference point.
type Candidate struct {
	Address        AddressPoint
	DistanceMeters float64
}

// ResultItem is one ranked proximity match, ready for serialization.
type ResultItem struct {
	Address     AddressPoint `json:"address"`
	FullAddress string       `json:"full_address"`
	DistanceKm  float64      `json:"distance_km"`
	Rank        int          `json:"rank"`
}
