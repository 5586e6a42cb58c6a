package audit

import (
	"fmt"
	"log"

	"gorm.io/gorm"

	"github.com/pavelength/pavelength/internal/db"
)

// Init prepares the pavelength schema and its audit tables.
func Init(d *gorm.DB) error {
	if err := db.EnsureSchema(d, "pavelength"); err != nil {
		return fmt.Errorf("ensure schema pavelength: %w", err)
	}

	if err := d.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp"`).Error; err != nil {
		return fmt.Errorf("enable uuid-ossp extension: %w", err)
	}

	if err := d.AutoMigrate(
		&MappingSubmission{},
		&TranslationAttempt{},
	); err != nil {
		return fmt.Errorf("auto-migrate audit tables: %w", err)
	}

	log.Println("Audit module initialized")
	return nil
}
