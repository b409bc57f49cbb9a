package migrations

import (
	"log"

	"printshop/internal/models"
	"printshop/internal/repository"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// RunMigrations brings the schema up to date and seeds default data on a
// fresh database. Existing rows are never dropped here; scripts/init-db.go
// handles destructive resets.
func RunMigrations(db *gorm.DB) error {
	log.Println("Running database migrations...")

	err := db.AutoMigrate(
		&models.User{},
		&models.Material{},
		&models.FinishingOption{},
		&models.SiteSetting{},
		&models.Estimate{},
		&models.EstimateItem{},
	)
	if err != nil {
		return err
	}

	if err := createDefaultData(db); err != nil {
		log.Printf("Warning: Failed to create default data: %v", err)
	}

	log.Println("Database migrations completed successfully!")
	return nil
}

// createDefaultData seeds the admin account, site settings, and a starter
// catalog. Each seed is skipped if the row already exists.
func createDefaultData(db *gorm.DB) error {
	userRepo := repository.NewUserRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)
	materialRepo := repository.NewMaterialRepository(db)
	finishingRepo := repository.NewFinishingRepository(db)

	if _, err := userRepo.GetByUsername("admin"); err != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte("admin123"), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		admin := &models.User{
			Username:     "admin",
			Email:        "admin@localhost",
			PasswordHash: string(hash),
			Role:         string(models.RoleAdmin),
			IsActive:     true,
		}
		if err := userRepo.Create(admin); err != nil {
			log.Printf("Warning: Failed to create admin user: %v", err)
		} else {
			log.Println("Default admin user created (username: admin, password: admin123)")
			log.Println("Change the admin password before going live.")
		}
	}

	defaultSettings := []models.SiteSetting{
		{SettingKey: models.SettingTaxRate, Value: "8.0", NumericValue: 8.0},
		{SettingKey: models.SettingCurrency, Value: "USD"},
	}
	for i := range defaultSettings {
		if _, err := settingsRepo.Get(defaultSettings[i].SettingKey); err != nil {
			if err := settingsRepo.Upsert(&defaultSettings[i]); err != nil {
				log.Printf("Warning: Failed to seed setting %s: %v", defaultSettings[i].SettingKey, err)
			}
		}
	}

	var materialCount int64
	db.Model(&models.Material{}).Count(&materialCount)
	if materialCount == 0 {
		materials := []models.Material{
			{Name: "PLA", Description: "General purpose, easy to print", PricePerKg: 20.0, IsActive: true, SortOrder: 1},
			{Name: "ABS", Description: "Impact resistant, heat tolerant", PricePerKg: 25.0, IsActive: true, SortOrder: 2},
			{Name: "PETG", Description: "Durable and chemically resistant", PricePerKg: 28.0, IsActive: true, SortOrder: 3},
			{Name: "Resin", Description: "High detail SLA prints", PricePerKg: 60.0, IsActive: true, SortOrder: 4},
		}
		for i := range materials {
			if err := materialRepo.Create(&materials[i]); err != nil {
				log.Printf("Warning: Failed to seed material %s: %v", materials[i].Name, err)
			}
		}
	}

	var finishingCount int64
	db.Model(&models.FinishingOption{}).Count(&finishingCount)
	if finishingCount == 0 {
		options := []models.FinishingOption{
			{Name: "Sanding", Description: "Smooth surface finish", Fee: 15.0, IsActive: true, SortOrder: 1},
			{Name: "Painting", Description: "Primer and single color coat", Fee: 25.0, IsActive: true, SortOrder: 2},
			{Name: "Vapor smoothing", Description: "Acetone vapor finish for ABS", Fee: 20.0, IsActive: true, SortOrder: 3},
		}
		for i := range options {
			if err := finishingRepo.Create(&options[i]); err != nil {
				log.Printf("Warning: Failed to seed finishing option %s: %v", options[i].Name, err)
			}
		}
	}

	return nil
}
