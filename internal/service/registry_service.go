package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-access/internal/dto"
	"github.com/noah-isme/gema-access/internal/models"
	"github.com/noah-isme/gema-access/internal/repository"
)

// ModuleSeed describes a catalog entry inserted at start-up.
type ModuleSeed struct {
	Name        string
	Description string
}

// DefaultModules is the module catalog seeded when none is configured.
var DefaultModules = []ModuleSeed{
	{Name: "analytics", Description: "Dashboards and reporting"},
	{Name: "assignments", Description: "Assignment authoring, submission and grading"},
	{Name: "categories", Description: "Course and library categories"},
	{Name: "courses", Description: "Course catalog and course management"},
	{Name: "enrollments", Description: "Course enrollment and waitlists"},
	{Name: "lessons", Description: "Lesson content and scheduling"},
	{Name: "library", Description: "Books and videos"},
	{Name: "quizzes", Description: "Quizzes and exams"},
	{Name: "site_content", Description: "Landing page content"},
	{Name: "users", Description: "User accounts and role assignment"},
}

// RegistryService exposes the role and module reference data.
type RegistryService interface {
	ListModules(ctx context.Context) ([]models.Module, error)
	GetModule(ctx context.Context, id string) (models.Module, error)
	ResolveModule(ctx context.Context, ref string) (models.Module, error)
	SeedModules(ctx context.Context, seeds []ModuleSeed) (int64, error)
	ListRoles(ctx context.Context) ([]dto.RoleSummary, error)
	KnownRoles(ctx context.Context) ([]models.Role, error)
	RoleExists(ctx context.Context, role models.Role) (bool, error)
}

type registryService struct {
	modules     repository.ModuleRepository
	customRoles repository.CustomRoleRepository
	userRoles   repository.UserRoleRepository
	logger      zerolog.Logger
}

// NewRegistryService constructs the registry service.
func NewRegistryService(modules repository.ModuleRepository, customRoles repository.CustomRoleRepository, userRoles repository.UserRoleRepository, logger zerolog.Logger) RegistryService {
	return &registryService{
		modules:     modules,
		customRoles: customRoles,
		userRoles:   userRoles,
		logger:      logger.With().Str("component", "registry_service").Logger(),
	}
}

func (s *registryService) ListModules(ctx context.Context) ([]models.Module, error) {
	return s.modules.List(ctx)
}

func (s *registryService) GetModule(ctx context.Context, id string) (models.Module, error) {
	module, err := s.modules.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Module{}, fmt.Errorf("%w: module %q", ErrNotFound, id)
		}
		return models.Module{}, err
	}
	return module, nil
}

// ResolveModule accepts either a module id or a module name.
func (s *registryService) ResolveModule(ctx context.Context, ref string) (models.Module, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return models.Module{}, validationError("module is required")
	}

	module, err := s.modules.GetByID(ctx, ref)
	if err == nil {
		return module, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Module{}, err
	}

	module, err = s.modules.GetByName(ctx, ref)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Module{}, fmt.Errorf("%w: module %q", ErrNotFound, ref)
		}
		return models.Module{}, err
	}
	return module, nil
}

func (s *registryService) SeedModules(ctx context.Context, seeds []ModuleSeed) (int64, error) {
	if len(seeds) == 0 {
		seeds = DefaultModules
	}

	modules := make([]models.Module, 0, len(seeds))
	for _, seed := range seeds {
		name := strings.ToLower(strings.TrimSpace(seed.Name))
		if name == "" {
			continue
		}
		modules = append(modules, models.Module{
			ID:          uuid.NewString(),
			Name:        name,
			Description: strings.TrimSpace(seed.Description),
		})
	}

	affected, err := s.modules.InsertMissing(ctx, modules)
	if err != nil {
		return 0, err
	}
	if affected > 0 {
		s.logger.Info().Int64("affected", affected).Msg("modules seeded")
	}
	return affected, nil
}

func (s *registryService) ListRoles(ctx context.Context) ([]dto.RoleSummary, error) {
	custom, err := s.customRoles.List(ctx)
	if err != nil {
		return nil, err
	}

	counts, err := s.userRoles.CountByRole(ctx)
	if err != nil {
		return nil, err
	}

	summaries := make([]dto.RoleSummary, 0, len(models.BuiltinRoles)+len(custom))
	for _, role := range models.BuiltinRoles {
		summaries = append(summaries, dto.RoleSummary{
			Role:        role,
			DisplayName: humanizeRole(role),
			Builtin:     true,
			UserCount:   counts[role],
		})
	}
	for _, item := range custom {
		role := models.Role(item.RoleName)
		createdAt := item.CreatedAt
		summaries = append(summaries, dto.RoleSummary{
			Role:        role,
			DisplayName: item.DisplayName,
			UserCount:   counts[role],
			CreatedBy:   item.CreatedBy,
			CreatedAt:   &createdAt,
		})
	}
	return summaries, nil
}

func (s *registryService) KnownRoles(ctx context.Context) ([]models.Role, error) {
	custom, err := s.customRoles.List(ctx)
	if err != nil {
		return nil, err
	}

	roles := make([]models.Role, 0, len(models.BuiltinRoles)+len(custom))
	roles = append(roles, models.BuiltinRoles...)
	for _, item := range custom {
		roles = append(roles, models.Role(item.RoleName))
	}
	return roles, nil
}

func (s *registryService) RoleExists(ctx context.Context, role models.Role) (bool, error) {
	if role == "" {
		return false, nil
	}
	if role.IsBuiltin() {
		return true, nil
	}
	return s.customRoles.Exists(ctx, string(role))
}

func humanizeRole(role models.Role) string {
	words := strings.Split(string(role), "_")
	for i, word := range words {
		if word == "" {
			continue
		}
		words[i] = strings.ToUpper(word[:1]) + word[1:]
	}
	return strings.Join(words, " ")
}
