package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-access/internal/models"
)

// CustomRoleRepository persists roles created at runtime.
type CustomRoleRepository interface {
	List(ctx context.Context) ([]models.CustomRole, error)
	Exists(ctx context.Context, roleName string) (bool, error)
	Create(ctx context.Context, role *models.CustomRole) error
}

type customRoleRepository struct {
	db *gorm.DB
}

// NewCustomRoleRepository constructs the custom role repository.
func NewCustomRoleRepository(db *gorm.DB) CustomRoleRepository {
	return &customRoleRepository{db: db}
}

func (r *customRoleRepository) List(ctx context.Context) ([]models.CustomRole, error) {
	var roles []models.CustomRole
	if err := r.db.WithContext(ctx).Order("role_name ASC").Find(&roles).Error; err != nil {
		return nil, err
	}
	return roles, nil
}

func (r *customRoleRepository) Exists(ctx context.Context, roleName string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.CustomRole{}).
		Where("LOWER(role_name) = ?", strings.ToLower(strings.TrimSpace(roleName))).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *customRoleRepository) Create(ctx context.Context, role *models.CustomRole) error {
	return r.db.WithContext(ctx).Create(role).Error
}
