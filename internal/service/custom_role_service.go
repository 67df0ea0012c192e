package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-access/internal/models"
	"github.com/noah-isme/gema-access/internal/repository"
)

const maxRoleNameLength = 64

var (
	roleSeparatorPattern = regexp.MustCompile(`[\s\-]+`)
	roleInvalidPattern   = regexp.MustCompile(`[^a-z0-9_]`)
)

// CustomRoleService creates roles at runtime.
type CustomRoleService interface {
	CreateCustomRole(ctx context.Context, actor Actor, name string) (models.Role, error)
}

type customRoleService struct {
	repo      repository.CustomRoleRepository
	cache     *MatrixCache
	activity  ActivityRecorder
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
}

// NewCustomRoleService constructs the custom role service.
func NewCustomRoleService(repo repository.CustomRoleRepository, cache *MatrixCache, activity ActivityRecorder, logger zerolog.Logger) CustomRoleService {
	return &customRoleService{
		repo:      repo,
		cache:     cache,
		activity:  activity,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "custom_role_service").Logger(),
	}
}

func (s *customRoleService) CreateCustomRole(ctx context.Context, actor Actor, name string) (role models.Role, err error) {
	defer func() { recordMutation(ActionCustomRoleCreated, err) }()

	role, err = NormalizeRoleName(name)
	if err != nil {
		return "", err
	}
	if err := authorize(actor, role, OpCreateRole); err != nil {
		return "", err
	}
	if role.IsBuiltin() {
		return "", fmt.Errorf("%w: %q is a built-in role", ErrDuplicateRole, role)
	}

	exists, err := s.repo.Exists(ctx, string(role))
	if err != nil {
		return "", storeError("lookup", string(role), err)
	}
	if exists {
		return "", fmt.Errorf("%w: %q", ErrDuplicateRole, role)
	}

	displayName := strings.TrimSpace(s.sanitizer.Sanitize(strings.TrimSpace(name)))
	if displayName == "" {
		displayName = string(role)
	}

	model := models.CustomRole{
		RoleName:    string(role),
		DisplayName: displayName,
		CreatedBy:   normalizeActor(actor.ID),
	}
	if err := s.repo.Create(ctx, &model); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return "", fmt.Errorf("%w: %q", ErrDuplicateRole, role)
		}
		return "", storeError("create_role", string(role), err)
	}

	s.logger.Info().Str("actor_id", actor.ID).Str("role", string(role)).Msg("custom role created")
	s.cache.Invalidate(ctx)
	audit(ctx, s.activity, ActivityEntry{
		UserID:     actor.ID,
		ActionType: ActionCustomRoleCreated,
		EntityType: "role",
		EntityID:   string(role),
		Metadata:   map[string]interface{}{"display_name": displayName},
	})
	return role, nil
}

// NormalizeRoleName converts free text into a snake_case role identifier.
func NormalizeRoleName(name string) (models.Role, error) {
	value := strings.ToLower(strings.TrimSpace(name))
	value = roleSeparatorPattern.ReplaceAllString(value, "_")
	value = roleInvalidPattern.ReplaceAllString(value, "")

	if value == "" {
		return "", validationError("role name is required")
	}
	if value[0] < 'a' || value[0] > 'z' {
		return "", validationError("role name must start with a letter")
	}
	if len(value) > maxRoleNameLength {
		return "", validationError("role name exceeds %d characters", maxRoleNameLength)
	}
	return models.Role(value), nil
}
