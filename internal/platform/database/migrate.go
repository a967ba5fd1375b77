package database

import (
	"fmt"

	"membership_backend/internal/intent"
	"membership_backend/internal/user"

	"gorm.io/gorm"
)

// AutoMigrate brings the schema up to date for all application models.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&user.User{},
		&user.Account{},
		&intent.EphemeralToken{},
	); err != nil {
		return fmt.Errorf("schema migration failed: %w", err)
	}
	return nil
}
