package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/SchoolZones/SZ-Backend/internal/catchment"
	"github.com/SchoolZones/SZ-Backend/internal/config"
	"github.com/SchoolZones/SZ-Backend/internal/db"
	"github.com/SchoolZones/SZ-Backend/internal/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
)

func RootHandler(w http.ResponseWriter, r *http.Request) {
	response := "Server is up!"
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintln(w, response)
}

func main() {
	_ = godotenv.Load(".env.local")

	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatal("Failed to load config: ", err)
	}

	conn, err := db.Connect(cfg.Database.URL)
	if err != nil {
		log.Fatal("Failed to connect to database: ", err)
	}

	handler, err := catchment.Init(conn, cfg)
	if err != nil {
		log.Fatal("Failed to initialize catchment service: ", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.CORSMiddleware)
	r.Use(middleware.RequestIDMiddleware)
	if cfg.RateLimit.Enabled {
		rl := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
		r.Use(rl.Middleware)
	}
	r.Get("/", RootHandler)

	r.Mount("/catchment", handler.SetupRoutes())

	log.Printf("Server listening on port :%s...", cfg.Server.Port)

	if err := http.ListenAndServe("0.0.0.0:"+cfg.Server.Port, r); err != nil {
		log.Fatal(err)
	}
}
