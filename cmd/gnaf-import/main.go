package main

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/SchoolZones/SZ-Backend/internal/catchment"
)

// CLI flags
var (
	addressPath   = flag.String("addresses", "", "Path to the G-NAF address CSV")
	schoolPath    = flag.String("schools", "", "Path to the ACARA school CSV")
	catchmentPath = flag.String("catchments", "", "Path to the catchment GeoJSON FeatureCollection")
	dsn           = flag.String("dsn", os.Getenv("DATABASE_URL"), "Postgres DSN (default: env DATABASE_URL)")
	dryRun        = flag.Bool("dry-run", false, "Parse + validate only; no DB writes")
	confirm       = flag.Bool("confirm", false, "Required to perform destructive replace")
	advisoryKey   = flag.Int64("advisory-lock", 0, "Optional Postgres advisory lock key (e.g., 424242). 0 = disabled")
)

// CSV contracts
// addresses: address_pid,street_number,street_name,street_type,suburb,state,postcode,latitude,longitude
//            latitude/longitude may be empty for non-geocoded records
// schools:   acara_id,name,state,sector,latitude,longitude
// catchments: GeoJSON features with properties acara_id, name, kind, state

type addressRow struct {
	catchment.AddressPoint
}

type schoolRow struct {
	catchment.School
}

type catchmentRow struct {
	SchoolID int
	Name     string
	Kind     string
	State    string
	GeomJSON string
}

type counts struct {
	Addresses  int64
	Schools    int64
	Catchments int64
}

func main() {
	_ = godotenv.Load(".env.local")
	flag.Parse()
	if *addressPath == "" && *schoolPath == "" && *catchmentPath == "" {
		fatalf("nothing to import: pass at least one of --addresses, --schools, --catchments")
	}
	if *dsn == "" {
		fatalf("--dsn not provided and DATABASE_URL not set")
	}

	addresses, err := loadAddressCSV(*addressPath)
	if err != nil {
		fatalf("address CSV error: %v", err)
	}
	schools, err := loadSchoolCSV(*schoolPath)
	if err != nil {
		fatalf("school CSV error: %v", err)
	}
	zones, err := loadCatchmentGeoJSON(*catchmentPath)
	if err != nil {
		fatalf("catchment GeoJSON error: %v", err)
	}

	fmt.Printf("Loaded %d addresses, %d schools, %d catchments\n", len(addresses), len(schools), len(zones))

	if *dryRun {
		printPlan(addresses, schools, zones)
		fmt.Println("Dry run complete. No changes made.")
		return
	}

	if !*confirm {
		fatalf("Refusing to run without --confirm. Add --dry-run to preview.")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	db, err := sql.Open("pgx", *dsn)
	if err != nil {
		fatalf("connect: %v", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		fatalf("ping: %v", err)
	}

	tx, err := db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		fatalf("begin tx: %v", err)
	}
	defer func() {
		_ = tx.Rollback() // no-op if already committed
	}()

	// Optional advisory lock to avoid concurrent runs
	if *advisoryKey != 0 {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, *advisoryKey); err != nil {
			fatalf("advisory lock: %v", err)
		}
	}

	before, err := countAll(ctx, tx)
	if err != nil {
		fatalf("pre-count: %v", err)
	}
	fmt.Printf("Before: addresses=%d schools=%d catchments=%d\n", before.Addresses, before.Schools, before.Catchments)

	// Destructive replace, per table, only for tables we have input for
	if len(addresses) > 0 {
		if err := replaceAddresses(ctx, tx, addresses); err != nil {
			fatalf("import addresses: %v", err)
		}
	}
	if len(schools) > 0 {
		if err := replaceSchools(ctx, tx, schools); err != nil {
			fatalf("import schools: %v", err)
		}
	}
	if len(zones) > 0 {
		if err := replaceCatchments(ctx, tx, zones); err != nil {
			fatalf("import catchments: %v", err)
		}
	}

	after, err := countAll(ctx, tx)
	if err != nil {
		fatalf("post-count: %v", err)
	}
	fmt.Printf("After:  addresses=%d schools=%d catchments=%d\n", after.Addresses, after.Schools, after.Catchments)

	if err := tx.Commit(); err != nil {
		fatalf("commit: %v", err)
	}
	fmt.Println("Import complete")
}

func openCSV(path string, required []string) (*csv.Reader, map[string]int, func() error, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, nil, err
	}
	r := csv.NewReader(bufio.NewReader(f))
	r.TrimLeadingSpace = true

	headers, err := r.Read()
	if err != nil {
		f.Close()
		return nil, nil, nil, fmt.Errorf("read header: %w", err)
	}
	idx := map[string]int{}
	for i, h := range headers {
		idx[strings.TrimSpace(h)] = i
	}
	for _, k := range required {
		if _, ok := idx[k]; !ok {
			f.Close()
			return nil, nil, nil, fmt.Errorf("missing required column: %s", k)
		}
	}
	return r, idx, f.Close, nil
}

func loadAddressCSV(path string) ([]addressRow, error) {
	if path == "" {
		return nil, nil
	}
	r, idx, closeFn, err := openCSV(path, []string{
		"address_pid", "street_number", "street_name", "street_type",
		"suburb", "state", "postcode", "latitude", "longitude",
	})
	if err != nil {
		return nil, err
	}
	defer closeFn()

	seen := map[string]struct{}{}
	var out []addressRow
	for line := 2; ; line++ {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csv read: %w", err)
		}

		pid := strings.TrimSpace(rec[idx["address_pid"]])
		if pid == "" {
			return nil, fmt.Errorf("row %d: address_pid is empty", line)
		}
		if _, dup := seen[pid]; dup {
			return nil, fmt.Errorf("row %d: duplicate address_pid '%s'", line, pid)
		}
		seen[pid] = struct{}{}

		row := addressRow{catchment.AddressPoint{
			ID:           pid,
			StreetNumber: strings.TrimSpace(rec[idx["street_number"]]),
			StreetName:   strings.TrimSpace(rec[idx["street_name"]]),
			StreetType:   strings.TrimSpace(rec[idx["street_type"]]),
			Suburb:       strings.TrimSpace(rec[idx["suburb"]]),
			State:        strings.ToUpper(strings.TrimSpace(rec[idx["state"]])),
			Postcode:     strings.TrimSpace(rec[idx["postcode"]]),
		}}

		latRaw := strings.TrimSpace(rec[idx["latitude"]])
		lngRaw := strings.TrimSpace(rec[idx["longitude"]])
		if (latRaw == "") != (lngRaw == "") {
			return nil, fmt.Errorf("row %d: latitude and longitude must be both present or both empty", line)
		}
		if latRaw != "" {
			lat, err := strconv.ParseFloat(latRaw, 64)
			if err != nil {
				return nil, fmt.Errorf("row %d: bad latitude '%s'", line, latRaw)
			}
			lng, err := strconv.ParseFloat(lngRaw, 64)
			if err != nil {
				return nil, fmt.Errorf("row %d: bad longitude '%s'", line, lngRaw)
			}
			if !(catchment.Point{Lat: lat, Lng: lng}).Valid() {
				return nil, fmt.Errorf("row %d: coordinates out of range (%v, %v)", line, lat, lng)
			}
			row.Latitude = &lat
			row.Longitude = &lng
		}
		out = append(out, row)
	}
	return out, nil
}

func loadSchoolCSV(path string) ([]schoolRow, error) {
	if path == "" {
		return nil, nil
	}
	r, idx, closeFn, err := openCSV(path, []string{"acara_id", "name", "state", "sector", "latitude", "longitude"})
	if err != nil {
		return nil, err
	}
	defer closeFn()

	seen := map[int]struct{}{}
	var out []schoolRow
	for line := 2; ; line++ {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csv read: %w", err)
		}

		id, err := strconv.Atoi(strings.TrimSpace(rec[idx["acara_id"]]))
		if err != nil {
			return nil, fmt.Errorf("row %d: bad acara_id '%s'", line, rec[idx["acara_id"]])
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("row %d: duplicate acara_id %d", line, id)
		}
		seen[id] = struct{}{}

		name := strings.TrimSpace(rec[idx["name"]])
		if name == "" {
			return nil, fmt.Errorf("row %d: name is empty", line)
		}

		row := schoolRow{catchment.School{
			ID:     id,
			Name:   name,
			State:  strings.ToUpper(strings.TrimSpace(rec[idx["state"]])),
			Sector: strings.TrimSpace(rec[idx["sector"]]),
		}}

		latRaw := strings.TrimSpace(rec[idx["latitude"]])
		lngRaw := strings.TrimSpace(rec[idx["longitude"]])
		if latRaw != "" && lngRaw != "" {
			lat, errLat := strconv.ParseFloat(latRaw, 64)
			lng, errLng := strconv.ParseFloat(lngRaw, 64)
			if errLat != nil || errLng != nil {
				return nil, fmt.Errorf("row %d: bad coordinates '%s','%s'", line, latRaw, lngRaw)
			}
			row.Latitude = &lat
			row.Longitude = &lng
		}
		out = append(out, row)
	}
	return out, nil
}

func loadCatchmentGeoJSON(path string) ([]catchmentRow, error) {
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	fc, err := geojson.UnmarshalFeatureCollection(raw)
	if err != nil {
		return nil, fmt.Errorf("parse feature collection: %w", err)
	}

	var out []catchmentRow
	for i, feat := range fc.Features {
		switch feat.Geometry.(type) {
		case orb.Polygon, orb.MultiPolygon:
		default:
			return nil, fmt.Errorf("feature %d: geometry must be Polygon or MultiPolygon, got %s", i, feat.Geometry.GeoJSONType())
		}

		kind := strings.TrimSpace(feat.Properties.MustString("kind", ""))
		if !validKind(kind) {
			return nil, fmt.Errorf("feature %d: unknown kind '%s'", i, kind)
		}
		name := strings.TrimSpace(feat.Properties.MustString("name", ""))
		if name == "" {
			return nil, fmt.Errorf("feature %d: name is empty", i)
		}
		schoolID := feat.Properties.MustInt("acara_id", 0)
		if schoolID == 0 {
			return nil, fmt.Errorf("feature %d: acara_id is missing", i)
		}

		geomRaw, err := json.Marshal(geojson.NewGeometry(feat.Geometry))
		if err != nil {
			return nil, fmt.Errorf("feature %d: encode geometry: %w", i, err)
		}

		out = append(out, catchmentRow{
			SchoolID: schoolID,
			Name:     name,
			Kind:     kind,
			State:    strings.ToUpper(strings.TrimSpace(feat.Properties.MustString("state", ""))),
			GeomJSON: string(geomRaw),
		})
	}
	return out, nil
}

func validKind(kind string) bool {
	for _, k := range catchment.KnownKinds {
		if k == kind {
			return true
		}
	}
	return false
}

func printPlan(addresses []addressRow, schools []schoolRow, zones []catchmentRow) {
	georeferenced := 0
	for _, a := range addresses {
		if a.Latitude != nil {
			georeferenced++
		}
	}
	kinds := map[string]int{}
	for _, z := range zones {
		kinds[z.Kind]++
	}
	fmt.Println("Plan preview:")
	fmt.Printf("  Addresses to insert: %d (%d georeferenced)\n", len(addresses), georeferenced)
	fmt.Printf("  Schools to insert: %d\n", len(schools))
	fmt.Printf("  Catchments to insert: %d by kind %v\n", len(zones), kinds)
	fmt.Println("  Tables affected (destructive): gnaf.school_catchments, gnaf.schools, gnaf.address_points")
}

func countAll(ctx context.Context, tx *sql.Tx) (counts, error) {
	var c counts
	if err := tx.QueryRowContext(ctx, `SELECT count(*) FROM gnaf.address_points`).Scan(&c.Addresses); err != nil {
		return c, err
	}
	if err := tx.QueryRowContext(ctx, `SELECT count(*) FROM gnaf.schools`).Scan(&c.Schools); err != nil {
		return c, err
	}
	if err := tx.QueryRowContext(ctx, `SELECT count(*) FROM gnaf.school_catchments`).Scan(&c.Catchments); err != nil {
		return c, err
	}
	return c, nil
}

func replaceAddresses(ctx context.Context, tx *sql.Tx, rows []addressRow) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM gnaf.address_points`); err != nil {
		return fmt.Errorf("wipe address_points: %w", err)
	}

	// geom derives from the coordinate columns in the same statement so the
	// two can never disagree
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO gnaf.address_points
			(address_pid, street_number, street_name, street_type, suburb, state, postcode, latitude, longitude, geom)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,
			CASE WHEN $8::float8 IS NULL THEN NULL
			     ELSE ST_SetSRID(ST_MakePoint($9::float8, $8::float8), 4326) END)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range rows {
		var lat, lng sql.NullFloat64
		if r.Latitude != nil {
			lat = sql.NullFloat64{Float64: *r.Latitude, Valid: true}
			lng = sql.NullFloat64{Float64: *r.Longitude, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, r.ID, r.StreetNumber, r.StreetName, r.StreetType,
			r.Suburb, r.State, r.Postcode, lat, lng); err != nil {
			return fmt.Errorf("insert address '%s': %w", r.ID, err)
		}
	}
	return nil
}

func replaceSchools(ctx context.Context, tx *sql.Tx, rows []schoolRow) error {
	// catchments reference schools, so they go first
	if _, err := tx.ExecContext(ctx, `DELETE FROM gnaf.school_catchments`); err != nil {
		return fmt.Errorf("wipe school_catchments: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM gnaf.schools`); err != nil {
		return fmt.Errorf("wipe schools: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO gnaf.schools (acara_id, name, state, sector, latitude, longitude)
		VALUES ($1,$2,$3,$4,$5,$6)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range rows {
		var lat, lng sql.NullFloat64
		if r.Latitude != nil && r.Longitude != nil {
			lat = sql.NullFloat64{Float64: *r.Latitude, Valid: true}
			lng = sql.NullFloat64{Float64: *r.Longitude, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, r.ID, r.Name, r.State, r.Sector, lat, lng); err != nil {
			return fmt.Errorf("insert school %d: %w", r.ID, err)
		}
	}
	return nil
}

func replaceCatchments(ctx context.Context, tx *sql.Tx, rows []catchmentRow) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM gnaf.school_catchments`); err != nil {
		return fmt.Errorf("wipe school_catchments: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO gnaf.school_catchments (id, school_id, name, kind, state, geometry)
		VALUES ($1,$2,$3,$4,$5, ST_SetSRID(ST_GeomFromGeoJSON($6), 4326))`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, uuid.New(), r.SchoolID, r.Name, r.Kind, r.State, r.GeomJSON); err != nil {
			return fmt.Errorf("insert catchment '%s' (%s): %w", r.Name, r.Kind, err)
		}
	}
	return nil
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
