package main

import (
	"fmt"
	"log"

	"printshop/internal/config"
	"printshop/internal/database"
	"printshop/internal/migrations"
	"printshop/internal/models"
)

func main() {
	fmt.Println("Initializing database...")

	// Load configuration
	cfg := config.Load()

	// Initialize database
	db, err := database.Initialize(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	// Force recreate all tables
	fmt.Println("Dropping existing tables...")
	err = db.Migrator().DropTable(
		&models.EstimateItem{},
		&models.Estimate{},
		&models.Material{},
		&models.FinishingOption{},
		&models.SiteSetting{},
		&models.User{},
	)
	if err != nil {
		log.Printf("Warning: Error dropping tables: %v", err)
	}

	// Recreate tables and seed defaults
	fmt.Println("Creating tables...")
	if err := migrations.RunMigrations(db); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	fmt.Println("Database initialization completed successfully!")
}
