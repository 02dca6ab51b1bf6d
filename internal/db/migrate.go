package db

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	migrate "github.com/golang-migrate/migrate/v4"
	// Blank imports register the postgres driver and file source for golang-migrate.
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/nasubi-dev/artsdeck/internal/models"
)

// ConnectAndMigrate opens the database and brings the schema up to date.
// With MIGRATIONS=1 SQL migrations in ./migrations run via golang-migrate;
// otherwise AutoMigrate covers the dev loop.
func ConnectAndMigrate(dsn string) (*gorm.DB, error) {
	dsn = NormalizeDSN(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("database DSN is empty; check DATABASE_DSN")
	}
	var db *gorm.DB
	var err error
	logLevel := logger.Silent
	if os.Getenv("DB_DEBUG") == "1" {
		logLevel = logger.Info
	}
	cfg := &gorm.Config{Logger: logger.Default.LogMode(logLevel)}
	for i := 0; i < 10; i++ {
		db, err = gorm.Open(postgres.Open(dsn), cfg)
		if err == nil {
			break
		}
		log.Println("Retrying DB connection...", err)
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect database after retries: %w", err)
	}

	if pingErr := db.Exec("SELECT 1").Error; pingErr != nil {
		return nil, fmt.Errorf("db ping failed: %w", pingErr)
	}

	log.Println("[DB] Using DSN:", MaskDSN(dsn))

	if v := strings.ToLower(os.Getenv("MIGRATIONS")); v == "1" || v == "true" || v == "yes" {
		if err := runSQLMigrations(dsn); err != nil {
			return nil, fmt.Errorf("sql migrations failed: %w", err)
		}
	} else {
		if err := AutoMigrate(db); err != nil {
			return nil, err
		}
	}

	// sanity check: required core tables must exist after migration
	for _, table := range []string{"users", "decks", "deck_histories", "deck_codes", "card_images"} {
		if !db.Migrator().HasTable(table) {
			return nil, errors.New("missing table after migration: " + table)
		}
	}
	if v := strings.ToLower(os.Getenv("DB_SEED")); v == "1" || v == "true" || v == "yes" {
		seed(db)
	}
	return db, nil
}

// AutoMigrate creates/updates all application tables. Shared with tests.
func AutoMigrate(db *gorm.DB) error {
	modelsToMigrate := []interface{}{
		&models.User{}, &models.Deck{}, &models.DeckHistory{}, &models.DeckCode{}, &models.CardImage{},
	}
	for _, m := range modelsToMigrate {
		if migErr := db.AutoMigrate(m); migErr != nil {
			return fmt.Errorf("automigrate %T: %w", m, migErr)
		}
	}
	return nil
}

func seed(db *gorm.DB) {
	// A demo account with one deck so fresh dev environments render something.
	var existing models.User
	if err := db.Where("email = ?", "demo@artsdeck.local").First(&existing).Error; err != gorm.ErrRecordNotFound {
		return
	}
	u := models.User{Email: "demo@artsdeck.local", Name: "Demo", Nickname: "demo"}
	if err := db.Create(&u).Error; err != nil {
		return
	}
	d := models.Deck{UserID: u.ID, Title: "Starter deck", Description: "Seeded example deck"}
	if err := db.Create(&d).Error; err != nil {
		return
	}
	db.Create(&models.DeckHistory{DeckID: d.ID, Status: models.StatusMain, Content: "Initial build"})
}

// runSQLMigrations executes migrations in ./migrations using golang-migrate file source.
func runSQLMigrations(dsn string) error {
	m, err := migrate.New("file://migrations", dsn)
	if err != nil {
		return err
	}
	if err = m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}
