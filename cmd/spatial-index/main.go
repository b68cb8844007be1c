// Command spatial-index rebuilds the GIST spatial indexes over the GNAF
// tables without blocking readers. CREATE INDEX CONCURRENTLY cannot run
// inside a transaction, so this uses a plain database/sql connection in
// autocommit mode rather than the service's gorm handle.
//
// Run after a bulk reload of address points or catchment polygons:
//
//	DATABASE_URL=postgres://... go run ./cmd/spatial-index
package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
)

type indexSpec struct {
	name  string
	table string
	stmt  string
}

// One canonical spatial index per geometry column.
var indexes = []indexSpec{
	{
		name:  "idx_address_points_geom",
		table: "address_points",
		stmt: `CREATE INDEX CONCURRENTLY IF NOT EXISTS idx_address_points_geom
			ON gnaf.address_points USING GIST (geom)`,
	},
	{
		name:  "idx_school_catchments_geometry",
		table: "school_catchments",
		stmt: `CREATE INDEX CONCURRENTLY IF NOT EXISTS idx_school_catchments_geometry
			ON gnaf.school_catchments USING GIST (geometry)`,
	},
}

func main() {
	_ = godotenv.Load(".env.local")

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL is empty")
	}

	conn, err := sql.Open("pgx", dsn)
	if err != nil {
		log.Fatal("Failed to open database: ", err)
	}
	defer conn.Close()

	for _, idx := range indexes {
		log.Printf("[spatial-index] building %s (this can take minutes on a full address load)...", idx.name)
		start := time.Now()
		if _, err := conn.Exec(idx.stmt); err != nil {
			log.Fatalf("[spatial-index] %s failed: %v", idx.name, err)
		}
		log.Printf("[spatial-index] %s built in %.1fs", idx.name, time.Since(start).Seconds())

		size, err := indexSize(conn, idx)
		if err != nil {
			log.Printf("[spatial-index] could not verify %s: %v", idx.name, err)
			continue
		}
		log.Printf("[spatial-index] verified %s, size %s", idx.name, size)
	}

	fmt.Println("All spatial indexes are in place.")
}

func indexSize(conn *sql.DB, idx indexSpec) (string, error) {
	var size string
	err := conn.QueryRow(`
		SELECT pg_size_pretty(pg_relation_size(schemaname || '.' || indexname))
		FROM pg_indexes
		WHERE schemaname = 'gnaf' AND tablename = $1 AND indexname = $2`,
		idx.table, idx.name,
	).Scan(&size)
	if err != nil {
		return "", err
	}
	return size, nil
}
