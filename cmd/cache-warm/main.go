// Command cache-warm flushes and optionally re-populates the Redis
// resolution cache. Run it after gnaf-import so cached memberships never
// outlive the polygons they were resolved against. Warming resolves every
// kind at every school's own coordinates, which covers the hottest lookups.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"

	"github.com/SchoolZones/SZ-Backend/internal/catchment"
	"github.com/SchoolZones/SZ-Backend/internal/config"
	"github.com/SchoolZones/SZ-Backend/internal/db"
)

var (
	flushOnly = flag.Bool("flush-only", false, "Invalidate cached resolutions without re-warming")
	timeout   = flag.Duration("timeout", 10*time.Minute, "Overall deadline")
)

func main() {
	_ = godotenv.Load(".env.local")
	flag.Parse()

	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.Redis.Addr == "" {
		log.Fatal("REDIS_ADDR not set; nothing to warm")
	}
	if cfg.Database.URL == "" {
		log.Fatal("DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	conn, err := db.Connect(cfg.Database.URL)
	if err != nil {
		log.Fatalf("DB connection error: %v", err)
	}

	cache := catchment.NewResolutionCache(cfg.Redis.Addr, time.Duration(cfg.Redis.TTLSeconds)*time.Second)

	dropped, err := cache.Invalidate(ctx)
	if err != nil {
		log.Fatalf("invalidate: %v", err)
	}
	fmt.Printf("Invalidated %d cached resolutions\n", dropped)

	if *flushOnly {
		return
	}

	store := catchment.NewPostgresStore(conn, cfg.Search.IndexMargin)
	resolver := catchment.NewCatchmentResolver(store, cache)

	var schools []catchment.School
	if err := conn.WithContext(ctx).Find(&schools).Error; err != nil {
		log.Fatalf("list schools: %v", err)
	}

	warmed, skipped := 0, 0
	for _, s := range schools {
		loc, ok := s.Location()
		if !ok {
			skipped++
			continue
		}
		if _, err := resolver.ResolveAll(ctx, loc); err != nil {
			log.Fatalf("resolve at school %d: %v", s.ID, err)
		}
		warmed++
	}
	fmt.Printf("Warmed %d school locations (%d without coordinates skipped)\n", warmed, skipped)
}
