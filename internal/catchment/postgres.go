package catchment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

// PostgresStore implements PointStore, CatchmentStore and SchoolStore over
// the GNAF schema, pushing spatial filtering down to the GIST-indexed
// geometry columns. The *gorm.DB handle is injected so tests and tools can
// supply their own connection.
type PostgresStore struct {
	db     *gorm.DB
	margin float64 // index prefilter padding, >= 1
}

func NewPostgresStore(db *gorm.DB, indexMargin float64) *PostgresStore {
	if indexMargin < 1 {
		indexMargin = 1
	}
	return &PostgresStore{db: db, margin: indexMargin}
}

// filterColumns maps attribute filters onto their GNAF columns. Only fields
// present here can reach the SQL layer.
var filterColumns = map[FilterField]string{
	FieldStreetNumber: "ap.street_number",
	FieldStreet:       "ap.street_name",
	FieldSuburb:       "ap.suburb",
	FieldPostcode:     "ap.postcode",
	FieldState:        "ap.state",
}

// buildFilterClauses renders each attribute filter into one clause fragment
// with one bound parameter, continuing the positional-argument numbering at
// argIdx. The caller appends these after the spatial clause.
func buildFilterClauses(filters []AttributeFilter, argIdx int) (string, []interface{}, error) {
	var conditions []string
	var args []interface{}

	for _, f := range filters {
		col, ok := filterColumns[f.Field]
		if !ok {
			return "", nil, fmt.Errorf("%w: unknown filter field %q", ErrInvalidQuery, f.Field)
		}
		switch f.Match {
		case MatchEquals:
			conditions = append(conditions, fmt.Sprintf("%s = $%d", col, argIdx))
			args = append(args, f.Value)
		default:
			conditions = append(conditions, fmt.Sprintf("%s ILIKE $%d", col, argIdx))
			args = append(args, "%"+f.Value+"%")
		}
		argIdx++
	}

	if len(conditions) == 0 {
		return "", nil, nil
	}
	return " AND " + strings.Join(conditions, " AND "), args, nil
}

// candidateRow receives one scanned proximity row before mapping into the
// typed Candidate.
type candidateRow struct {
	ID             string
	StreetNumber   sql.NullString
	StreetName     sql.NullString
	StreetType     sql.NullString
	Suburb         sql.NullString
	State          sql.NullString
	Postcode       sql.NullString
	Latitude       sql.NullFloat64
	Longitude      sql.NullFloat64
	DistanceMeters float64
}

func (cr candidateRow) toCandidate() Candidate {
	a := AddressPoint{
		ID:           cr.ID,
		StreetNumber: cr.StreetNumber.String,
		StreetName:   cr.StreetName.String,
		StreetType:   cr.StreetType.String,
		Suburb:       cr.Suburb.String,
		State:        cr.State.String,
		Postcode:     cr.Postcode.String,
	}
	if cr.Latitude.Valid {
		lat := cr.Latitude.Float64
		a.Latitude = &lat
	}
	if cr.Longitude.Valid {
		lng := cr.Longitude.Float64
		a.Longitude = &lng
	}
	return Candidate{Address: a, DistanceMeters: cr.DistanceMeters}
}

// CandidatesWithin runs the two-stage proximity query in one statement:
// ST_DWithin on the indexed geometry column prunes via the GIST index (with
// the conservative degree margin), attribute clauses narrow the survivors,
// and exact geography distance excludes the margin's over-inclusion. The
// geometry columns are precomputed by the importer, never built per row at
// query time, so the planner can stay on the index.
func (s *PostgresStore) CandidatesWithin(ctx context.Context, q ProximityQuery) ([]Candidate, error) {
	filterSQL, filterArgs, err := buildFilterClauses(q.Filters, 4)
	if err != nil {
		return nil, err
	}

	degRadius := DegreeRadius(q.Center.Lat, q.RadiusMeters, s.margin)
	limitIdx := 4 + len(filterArgs)

	query := fmt.Sprintf(`
		SELECT
			ap.address_pid,
			ap.street_number,
			ap.street_name,
			ap.street_type,
			ap.suburb,
			ap.state,
			ap.postcode,
			ap.latitude,
			ap.longitude,
			ST_Distance(
				ap.geom::geography,
				ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography
			) AS distance_meters
		FROM gnaf.address_points ap
		WHERE ap.geom IS NOT NULL
			AND ST_DWithin(
				ap.geom,
				ST_SetSRID(ST_MakePoint($1, $2), 4326),
				$3
			)%s
			AND ST_Distance(
				ap.geom::geography,
				ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography
			) <= $%d
		ORDER BY distance_meters, ap.address_pid
		LIMIT $%d OFFSET $%d`,
		filterSQL, limitIdx, limitIdx+1, limitIdx+2)

	args := []interface{}{q.Center.Lng, q.Center.Lat, degRadius}
	args = append(args, filterArgs...)
	args = append(args, q.RadiusMeters, q.Limit, q.Offset)

	rows, err := s.db.WithContext(ctx).Raw(query, args...).Rows()
	if err != nil {
		return nil, fmt.Errorf("%w: proximity scan: %v", ErrStorageUnavailable, err)
	}
	defer rows.Close()

	var out []Candidate
	for rows.Next() {
		var cr candidateRow
		if err := rows.Scan(
			&cr.ID, &cr.StreetNumber, &cr.StreetName, &cr.StreetType,
			&cr.Suburb, &cr.State, &cr.Postcode,
			&cr.Latitude, &cr.Longitude, &cr.DistanceMeters,
		); err != nil {
			return nil, fmt.Errorf("%w: scan candidate: %v", ErrStorageUnavailable, err)
		}
		out = append(out, cr.toCandidate())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: candidate rows: %v", ErrStorageUnavailable, err)
	}

	return out, nil
}

// CountWithin applies the same predicate as CandidatesWithin minus
// pagination so the two always agree.
func (s *PostgresStore) CountWithin(ctx context.Context, q ProximityQuery) (int64, error) {
	filterSQL, filterArgs, err := buildFilterClauses(q.Filters, 4)
	if err != nil {
		return 0, err
	}

	degRadius := DegreeRadius(q.Center.Lat, q.RadiusMeters, s.margin)
	radiusIdx := 4 + len(filterArgs)

	query := fmt.Sprintf(`
		SELECT COUNT(*)
		FROM gnaf.address_points ap
		WHERE ap.geom IS NOT NULL
			AND ST_DWithin(
				ap.geom,
				ST_SetSRID(ST_MakePoint($1, $2), 4326),
				$3
			)%s
			AND ST_Distance(
				ap.geom::geography,
				ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography
			) <= $%d`,
		filterSQL, radiusIdx)

	args := []interface{}{q.Center.Lng, q.Center.Lat, degRadius}
	args = append(args, filterArgs...)
	args = append(args, q.RadiusMeters)

	var total int64
	if err := s.db.WithContext(ctx).Raw(query, args...).Scan(&total).Error; err != nil {
		return 0, fmt.Errorf("%w: proximity count: %v", ErrStorageUnavailable, err)
	}
	return total, nil
}

func (s *PostgresStore) Point(ctx context.Context, id string) (*AddressPoint, error) {
	var a AddressPoint
	err := s.db.WithContext(ctx).
		Select("address_pid", "street_number", "street_name", "street_type",
			"suburb", "state", "postcode", "latitude", "longitude").
		First(&a, "address_pid = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: address %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("%w: fetch address %s: %v", ErrStorageUnavailable, id, err)
	}
	return &a, nil
}

// Containing performs the point-in-polygon lookup against the catchments of
// one kind. ST_Contains rides the GIST index on the geometry column. At most
// one polygon should own a point per kind; overlap is a data anomaly, so the
// deterministic ORDER BY picks a stable winner rather than erroring.
func (s *PostgresStore) Containing(ctx context.Context, pt Point, kind string) (*SchoolCatchment, error) {
	query := `
		SELECT id, school_id, name, kind, state
		FROM gnaf.school_catchments
		WHERE kind = $1
			AND ST_Contains(
				geometry,
				ST_SetSRID(ST_MakePoint($2, $3), 4326)
			)
		ORDER BY name, id
		LIMIT 1`

	rows, err := s.db.WithContext(ctx).Raw(query, kind, pt.Lng, pt.Lat).Rows()
	if err != nil {
		return nil, fmt.Errorf("%w: catchment lookup: %v", ErrStorageUnavailable, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("%w: catchment rows: %v", ErrStorageUnavailable, err)
		}
		return nil, nil
	}

	var c SchoolCatchment
	if err := rows.Scan(&c.ID, &c.SchoolID, &c.Name, &c.Kind, &c.State); err != nil {
		return nil, fmt.Errorf("%w: scan catchment: %v", ErrStorageUnavailable, err)
	}
	return &c, nil
}

func (s *PostgresStore) School(ctx context.Context, id int) (*School, error) {
	var sc School
	err := s.db.WithContext(ctx).First(&sc, "acara_id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: school %d", ErrNotFound, id)
		}
		return nil, fmt.Errorf("%w: fetch school %d: %v", ErrStorageUnavailable, id, err)
	}
	return &sc, nil
}

// SearchSchools resolves a school name in three tiers (exact, prefix, then
// substring), returning the first tier with any hits so "Sydney" surfaces
// Sydney Grammar before every school with "sydney" somewhere in its name.
func (s *PostgresStore) SearchSchools(ctx context.Context, name string, sectors []string, limit int) ([]School, error) {
	tiers := []struct {
		cond string
		arg  string
	}{
		{"UPPER(name) = UPPER($1)", name},
		{"name ILIKE $1 || '%'", name},
		{"name ILIKE '%' || $1 || '%'", name},
	}

	for _, tier := range tiers {
		schools, err := s.searchTier(ctx, tier.cond, tier.arg, sectors, limit)
		if err != nil {
			return nil, err
		}
		if len(schools) > 0 {
			return schools, nil
		}
	}
	return nil, nil
}

func (s *PostgresStore) searchTier(ctx context.Context, cond, name string, sectors []string, limit int) ([]School, error) {
	sectorSQL := ""
	args := []interface{}{name}
	if len(sectors) > 0 {
		sectorSQL = " AND sector = ANY($2)"
		args = append(args, pq.Array(sectors))
	}
	args = append(args, limit)

	query := fmt.Sprintf(`
		SELECT acara_id, name, state, sector, latitude, longitude
		FROM gnaf.schools
		WHERE %s%s
		ORDER BY name, acara_id
		LIMIT $%d`, cond, sectorSQL, len(args))

	rows, err := s.db.WithContext(ctx).Raw(query, args...).Rows()
	if err != nil {
		return nil, fmt.Errorf("%w: school search: %v", ErrStorageUnavailable, err)
	}
	defer rows.Close()

	var out []School
	for rows.Next() {
		var sc School
		if err := rows.Scan(&sc.ID, &sc.Name, &sc.State, &sc.Sector, &sc.Latitude, &sc.Longitude); err != nil {
			return nil, fmt.Errorf("%w: scan school: %v", ErrStorageUnavailable, err)
		}
		out = append(out, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: school rows: %v", ErrStorageUnavailable, err)
	}
	return out, nil
}
