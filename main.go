package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"campusfeed_backend/config"
	"campusfeed_backend/db"
	"campusfeed_backend/feed"
	"campusfeed_backend/routes"
	"campusfeed_backend/store"
	"campusfeed_backend/ws"

	_ "github.com/lib/pq"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found") // Non-fatal in production
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Error loading configuration: %v", err)
	}

	jwtSecret := []byte(cfg.JWTSecret)
	if len(jwtSecret) == 0 {
		log.Fatal("JWT_SECRET environment variable is required")
	}

	// Without database credentials the server runs against the in-memory
	// store. Data does not survive a restart; meant for local development.
	var s store.Store
	if cfg.DBPassword == "" {
		log.Println("Warning: DB_PASSWORD not set, using in-memory store")
		mem := store.NewMemory()
		defer mem.Close()
		s = mem
	} else {
		dbCfg := db.Config{
			Host:     cfg.DBHost,
			Port:     cfg.DBPort,
			User:     cfg.DBUser,
			Password: cfg.DBPassword,
			DBName:   cfg.DBName,
		}
		database, err := db.Initialize(dbCfg)
		if err != nil {
			log.Fatalf("Error connecting to database: %v", err)
		}
		defer database.Close()

		if err := db.InitSchema(database); err != nil {
			log.Fatalf("Error initializing database schema: %v", err)
		}

		pg, err := store.NewPostgres(database, dbCfg.DSN())
		if err != nil {
			log.Fatalf("Error starting change listener: %v", err)
		}
		defer pg.Close()
		s = pg
	}

	pending, err := feed.NewPendingCounter(context.Background(), s)
	if err != nil {
		log.Fatalf("Error starting pending counter: %v", err)
	}
	defer pending.Close()

	ticker := feed.NewCountdownTicker()

	done := make(chan struct{})
	defer close(done)

	hub := ws.NewHub()
	hub.OnFirstClient = ticker.Activate
	hub.OnLastClient = ticker.Deactivate
	go hub.Run(done)
	go ws.Forward(s, ticker, hub, done)

	// Initialize router
	r := gin.Default()

	// Setup CORS - Simplified for mobile app
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowHeaders = []string{
		"Origin",
		"Content-Length",
		"Content-Type",
		"Authorization",
		"X-Anon-Session",
		"X-Feed-Session",
	}
	corsConfig.AllowMethods = []string{
		"GET",
		"POST",
		"PUT",
		"DELETE",
		"PATCH",
	}
	r.Use(cors.New(corsConfig))

	// Setup routes
	routes.SetupRoutes(r, s, jwtSecret, pending, hub)

	// Run server
	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}
}
