package database

import (
	"gorm.io/gorm"

	"github.com/noah-isme/gema-access/internal/models"
)

// Migrate creates or updates every table owned by the access-control service.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Module{},
		&models.CustomRole{},
		&models.RoleModulePermission{},
		&models.UserRole{},
		&models.UserModulePermission{},
		&models.ActivityLog{},
		&models.Profile{},
	)
}
