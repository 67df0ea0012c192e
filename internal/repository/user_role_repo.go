package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/gema-access/internal/models"
)

// ErrLastHolder is returned when a delete would leave a role without holders.
var ErrLastHolder = errors.New("last holder of role")

// UserRoleRepository persists (user, role) membership.
type UserRoleRepository interface {
	RolesOf(ctx context.Context, userID string) ([]models.Role, error)
	Has(ctx context.Context, userID string, role models.Role) (bool, error)
	Insert(ctx context.Context, userID string, role models.Role) error
	Delete(ctx context.Context, userID string, role models.Role) (int64, error)
	DeleteUnlessLast(ctx context.Context, userID string, role models.Role) (int64, error)
	ListAssignments(ctx context.Context, userIDs []string) ([]models.UserRole, error)
	CountByRole(ctx context.Context) (map[models.Role]int64, error)
	CountHolders(ctx context.Context, role models.Role) (int64, error)
}

type userRoleRepository struct {
	db *gorm.DB
}

// NewUserRoleRepository constructs the user role repository.
func NewUserRoleRepository(db *gorm.DB) UserRoleRepository {
	return &userRoleRepository{db: db}
}

func (r *userRoleRepository) RolesOf(ctx context.Context, userID string) ([]models.Role, error) {
	var roles []models.Role
	err := r.db.WithContext(ctx).
		Model(&models.UserRole{}).
		Where("user_id = ?", userID).
		Order("role ASC").
		Pluck("role", &roles).Error
	if err != nil {
		return nil, err
	}
	return roles, nil
}

func (r *userRoleRepository) Has(ctx context.Context, userID string, role models.Role) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.UserRole{}).
		Where("user_id = ? AND role = ?", userID, role).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *userRoleRepository) Insert(ctx context.Context, userID string, role models.Role) error {
	return r.db.WithContext(ctx).Create(&models.UserRole{UserID: userID, Role: role}).Error
}

func (r *userRoleRepository) Delete(ctx context.Context, userID string, role models.Role) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("user_id = ? AND role = ?", userID, role).
		Delete(&models.UserRole{})
	return result.RowsAffected, result.Error
}

// DeleteUnlessLast removes the membership only when another holder of the role
// remains. The role's rows stay locked between the count and the delete.
func (r *userRoleRepository) DeleteUnlessLast(ctx context.Context, userID string, role models.Role) (int64, error) {
	var affected int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var holders []models.UserRole
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("role = ?", role).
			Find(&holders).Error; err != nil {
			return err
		}

		held := false
		for _, holder := range holders {
			if holder.UserID == userID {
				held = true
				break
			}
		}
		if !held {
			return nil
		}
		if len(holders) <= 1 {
			return ErrLastHolder
		}

		result := tx.Where("user_id = ? AND role = ?", userID, role).Delete(&models.UserRole{})
		affected = result.RowsAffected
		return result.Error
	})
	return affected, err
}

func (r *userRoleRepository) ListAssignments(ctx context.Context, userIDs []string) ([]models.UserRole, error) {
	query := r.db.WithContext(ctx).Model(&models.UserRole{})
	if len(userIDs) > 0 {
		query = query.Where("user_id IN ?", userIDs)
	}

	var rows []models.UserRole
	if err := query.Order("user_id ASC, role ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

type roleCount struct {
	Role  models.Role
	Total int64
}

func (r *userRoleRepository) CountByRole(ctx context.Context) (map[models.Role]int64, error) {
	var rows []roleCount
	err := r.db.WithContext(ctx).
		Model(&models.UserRole{}).
		Select("role, COUNT(*) AS total").
		Group("role").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[models.Role]int64, len(rows))
	for _, row := range rows {
		counts[row.Role] = row.Total
	}
	return counts, nil
}

func (r *userRoleRepository) CountHolders(ctx context.Context, role models.Role) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.UserRole{}).
		Where("role = ?", role).
		Count(&count).Error
	return count, err
}
