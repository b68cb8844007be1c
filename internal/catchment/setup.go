package catchment

import (
	"fmt"
	"time"

	"github.com/SchoolZones/SZ-Backend/internal/config"
	"github.com/SchoolZones/SZ-Backend/internal/db"
	"gorm.io/gorm"
)

// spatialIndexes are the canonical GIST indexes, exactly one per geometry
// column. Initial creation here blocks writes briefly on an empty schema;
// rebuilds over the populated tables go through cmd/spatial-index, which
// uses CREATE INDEX CONCURRENTLY so reads are never blocked.
var spatialIndexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_address_points_geom
		ON gnaf.address_points USING GIST (geom)`,
	`CREATE INDEX IF NOT EXISTS idx_school_catchments_geometry
		ON gnaf.school_catchments USING GIST (geometry)`,
}

// Init prepares the gnaf schema and wires the feature's handler around the
// Postgres store. The returned Handler owns no connection state of its own;
// everything hangs off the injected gorm handle.
func Init(conn *gorm.DB, cfg config.Config) (*Handler, error) {
	if err := db.EnsureSchema(conn, "gnaf"); err != nil {
		return nil, fmt.Errorf("ensure schema gnaf: %w", err)
	}
	for _, ext := range []string{"postgis", "uuid-ossp"} {
		if err := db.EnsureExtension(conn, ext); err != nil {
			return nil, fmt.Errorf("enable extension %s: %w", ext, err)
		}
	}

	if err := conn.AutoMigrate(
		&AddressPoint{},
		&School{},
		&SchoolCatchment{},
	); err != nil {
		return nil, fmt.Errorf("auto-migrate gnaf tables: %w", err)
	}

	for _, stmt := range spatialIndexes {
		if err := conn.Exec(stmt).Error; err != nil {
			return nil, fmt.Errorf("create spatial index: %w", err)
		}
	}

	store := NewPostgresStore(conn, cfg.Search.IndexMargin)
	cache := NewResolutionCache(cfg.Redis.Addr, time.Duration(cfg.Redis.TTLSeconds)*time.Second)

	return NewHandler(
		NewProximityResolver(store),
		NewCatchmentResolver(store, cache),
		store,
		cfg.Search,
	), nil
}
