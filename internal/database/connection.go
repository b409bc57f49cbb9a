package database

import (
	"fmt"
	"log"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Initialize opens the postgres connection. Schema migration is owned by
// the migrations package, which callers run after connecting.
func Initialize(databaseURL string) (*gorm.DB, error) {
	// Configure GORM. TranslateError surfaces unique-constraint violations
	// as gorm.ErrDuplicatedKey, which the estimate number retry relies on.
	config := &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	}

	// Connect to database
	db, err := gorm.Open(postgres.Open(databaseURL), config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	log.Println("Database connected successfully")
	return db, nil
}
