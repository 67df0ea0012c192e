package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/gema-access/internal/models"
)

// RolePermissionFilter narrows batch loads of permission rows. Empty slices match everything.
type RolePermissionFilter struct {
	Roles     []models.Role
	ModuleIDs []string
}

// RolePermissionRepository persists (role, module) permission cells.
type RolePermissionRepository interface {
	Get(ctx context.Context, role models.Role, moduleID string) (models.PermissionSet, error)
	List(ctx context.Context, filter RolePermissionFilter) ([]models.RoleModulePermission, error)
	UpsertFields(ctx context.Context, role models.Role, moduleID string, fields map[models.Action]bool) (models.PermissionSet, error)
	Toggle(ctx context.Context, role models.Role, moduleID string, action models.Action) (models.PermissionSet, error)
}

type rolePermissionRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewRolePermissionRepository constructs the role permission repository.
func NewRolePermissionRepository(db *gorm.DB) RolePermissionRepository {
	return &rolePermissionRepository{db: db, now: time.Now}
}

var conflictColumns = []clause.Column{{Name: "role"}, {Name: "module_id"}}

func (r *rolePermissionRepository) Get(ctx context.Context, role models.Role, moduleID string) (models.PermissionSet, error) {
	return r.get(r.db.WithContext(ctx), role, moduleID)
}

func (r *rolePermissionRepository) get(tx *gorm.DB, role models.Role, moduleID string) (models.PermissionSet, error) {
	var row models.RoleModulePermission
	err := tx.Where("role = ? AND module_id = ?", role, moduleID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.PermissionSet{}, nil
	}
	if err != nil {
		return models.PermissionSet{}, err
	}
	return row.Set(), nil
}

func (r *rolePermissionRepository) List(ctx context.Context, filter RolePermissionFilter) ([]models.RoleModulePermission, error) {
	query := r.db.WithContext(ctx).Model(&models.RoleModulePermission{})
	if len(filter.Roles) > 0 {
		query = query.Where("role IN ?", filter.Roles)
	}
	if len(filter.ModuleIDs) > 0 {
		query = query.Where("module_id IN ?", filter.ModuleIDs)
	}

	var rows []models.RoleModulePermission
	if err := query.Order("role ASC, module_id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// UpsertFields writes only the supplied columns. A missing row is created with the
// remaining flags false.
func (r *rolePermissionRepository) UpsertFields(ctx context.Context, role models.Role, moduleID string, fields map[models.Action]bool) (models.PermissionSet, error) {
	var result models.PermissionSet
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		set := models.PermissionSet{}
		columns := make([]string, 0, len(fields)+1)
		for _, action := range models.Actions {
			if value, ok := fields[action]; ok {
				set = set.With(action, value)
				columns = append(columns, action.Column())
			}
		}
		columns = append(columns, "updated_at")

		row := newPermissionRow(role, moduleID, set, r.now())
		err := tx.Clauses(clause.OnConflict{
			Columns:   conflictColumns,
			DoUpdates: clause.AssignmentColumns(columns),
		}).Create(&row).Error
		if err != nil {
			return err
		}

		result, err = r.get(tx, role, moduleID)
		return err
	})
	return result, err
}

// Toggle flips one flag in a single statement so concurrent toggles never lose the
// other five columns.
func (r *rolePermissionRepository) Toggle(ctx context.Context, role models.Role, moduleID string, action models.Action) (models.PermissionSet, error) {
	var result models.PermissionSet
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := r.now()
		column := action.Column()
		row := newPermissionRow(role, moduleID, models.PermissionSet{}.With(action, true), now)

		err := tx.Clauses(clause.OnConflict{
			Columns: conflictColumns,
			DoUpdates: clause.Set{
				{Column: clause.Column{Name: column}, Value: gorm.Expr("NOT " + models.RoleModulePermission{}.TableName() + "." + column)},
				{Column: clause.Column{Name: "updated_at"}, Value: now},
			},
		}).Create(&row).Error
		if err != nil {
			return err
		}

		result, err = r.get(tx, role, moduleID)
		return err
	})
	return result, err
}

func newPermissionRow(role models.Role, moduleID string, set models.PermissionSet, now time.Time) models.RoleModulePermission {
	return models.RoleModulePermission{
		Role:       role,
		ModuleID:   moduleID,
		CanCreate:  set.CanCreate,
		CanRead:    set.CanRead,
		CanUpdate:  set.CanUpdate,
		CanDelete:  set.CanDelete,
		CanAssign:  set.CanAssign,
		CanApprove: set.CanApprove,
		UpdatedAt:  now,
	}
}
