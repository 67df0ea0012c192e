package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-access/internal/models"
)

// ProfileRepository reads the user directory.
type ProfileRepository interface {
	FindByIDs(ctx context.Context, ids []string) ([]models.Profile, error)
}

// LegacyPermissionRepository reads the deprecated per-user override table.
type LegacyPermissionRepository interface {
	ListByUser(ctx context.Context, userID string) ([]models.UserModulePermission, error)
}

type profileRepository struct {
	db *gorm.DB
}

// NewProfileRepository constructs the profile repository.
func NewProfileRepository(db *gorm.DB) ProfileRepository {
	return &profileRepository{db: db}
}

func (r *profileRepository) FindByIDs(ctx context.Context, ids []string) ([]models.Profile, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var profiles []models.Profile
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&profiles).Error; err != nil {
		return nil, err
	}
	return profiles, nil
}

type legacyPermissionRepository struct {
	db *gorm.DB
}

// NewLegacyPermissionRepository constructs the read-only legacy override repository.
func NewLegacyPermissionRepository(db *gorm.DB) LegacyPermissionRepository {
	return &legacyPermissionRepository{db: db}
}

func (r *legacyPermissionRepository) ListByUser(ctx context.Context, userID string) ([]models.UserModulePermission, error) {
	var rows []models.UserModulePermission
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("module_id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
