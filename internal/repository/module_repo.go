package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/gema-access/internal/models"
)

// ModuleRepository exposes read access to the module catalog.
type ModuleRepository interface {
	List(ctx context.Context) ([]models.Module, error)
	GetByID(ctx context.Context, id string) (models.Module, error)
	GetByName(ctx context.Context, name string) (models.Module, error)
	InsertMissing(ctx context.Context, modules []models.Module) (int64, error)
}

type moduleRepository struct {
	db *gorm.DB
}

// NewModuleRepository constructs the module repository.
func NewModuleRepository(db *gorm.DB) ModuleRepository {
	return &moduleRepository{db: db}
}

func (r *moduleRepository) List(ctx context.Context) ([]models.Module, error) {
	var modules []models.Module
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&modules).Error; err != nil {
		return nil, err
	}
	return modules, nil
}

func (r *moduleRepository) GetByID(ctx context.Context, id string) (models.Module, error) {
	var module models.Module
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&module).Error
	return module, err
}

func (r *moduleRepository) GetByName(ctx context.Context, name string) (models.Module, error) {
	var module models.Module
	err := r.db.WithContext(ctx).Where("LOWER(name) = ?", strings.ToLower(strings.TrimSpace(name))).First(&module).Error
	return module, err
}

func (r *moduleRepository) InsertMissing(ctx context.Context, modules []models.Module) (int64, error) {
	if len(modules) == 0 {
		return 0, nil
	}

	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoNothing: true,
	}).Create(&modules)
	return result.RowsAffected, result.Error
}
