package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/nasubi-dev/artsdeck/internal/auth"
	"github.com/nasubi-dev/artsdeck/internal/config"
	"github.com/nasubi-dev/artsdeck/internal/db"
	"github.com/nasubi-dev/artsdeck/internal/imageapi"
	"github.com/nasubi-dev/artsdeck/internal/server"
	"github.com/nasubi-dev/artsdeck/internal/services"
)

var migrateOnlyFlag = flag.Bool("migrate-only", false, "Run DB migrations and exit")

func main() {
	flag.Parse()
	_ = godotenv.Load()
	cfg := config.Load()

	if *migrateOnlyFlag {
		if _, err := db.ConnectAndMigrate(cfg.DatabaseDSN); err != nil {
			log.Fatalf("migrate-only failed: %v", err)
		}
		log.Println("migrations completed; exiting as requested")
		return
	}

	dbConn, err := db.ConnectAndMigrate(cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	log.Printf("Starting server env=%s port=%s", cfg.Env, cfg.Port)

	api := imageapi.New(cfg.ImageAPIBaseURL, cfg.UploadAuthKey, &http.Client{Timeout: 30 * time.Second})
	sessions := auth.NewSessions(cfg.SessionSecret)
	var google *auth.GoogleProvider
	if cfg.GoogleClientID != "" && cfg.GoogleClientSecret != "" {
		google = auth.NewGoogleProvider(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleCallbackURL)
	} else {
		log.Println("Google OAuth not configured; only local login available")
	}

	handler := server.New(server.Deps{
		DB:       dbConn,
		Sessions: sessions,
		Google:   google,
		Decks:    services.NewDeckService(dbConn, api, cfg.Env),
		Images:   services.NewCardImageService(dbConn, api),
	})
	srv := &http.Server{Addr: ":" + cfg.Port, Handler: handler}

	go func() {
		log.Printf("Server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutdown signal received")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}
	log.Println("Server gracefully stopped")
}
