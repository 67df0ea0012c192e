package service

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-access/internal/models"
	"github.com/noah-isme/gema-access/internal/repository"
)

// UserRoleService manages role membership of users.
type UserRoleService interface {
	AssignRole(ctx context.Context, actor Actor, userID string, role models.Role) error
	RevokeRole(ctx context.Context, actor Actor, userID string, role models.Role) error
	ToggleRole(ctx context.Context, actor Actor, userID string, role models.Role) (bool, error)
	RolesOf(ctx context.Context, userID string) ([]models.Role, error)
}

// UserRoleOptions tunes the user role service.
type UserRoleOptions struct {
	GuardLastSuperAdmin bool
}

type userRoleService struct {
	repo     repository.UserRoleRepository
	registry RegistryService
	cache    *MatrixCache
	activity ActivityRecorder
	options  UserRoleOptions
	tracer   trace.Tracer
	logger   zerolog.Logger
}

// NewUserRoleService constructs the user role service.
func NewUserRoleService(repo repository.UserRoleRepository, registry RegistryService, cache *MatrixCache, activity ActivityRecorder, options UserRoleOptions, logger zerolog.Logger) UserRoleService {
	return &userRoleService{
		repo:     repo,
		registry: registry,
		cache:    cache,
		activity: activity,
		options:  options,
		tracer:   otel.Tracer("github.com/noah-isme/gema-access/internal/service/user_role"),
		logger:   logger.With().Str("component", "user_role_service").Logger(),
	}
}

func (s *userRoleService) AssignRole(ctx context.Context, actor Actor, userID string, role models.Role) (err error) {
	defer func() { recordMutation(ActionRoleAssigned, err) }()

	userID, err = s.validate(ctx, userID, role)
	if err != nil {
		return err
	}
	if err := authorize(actor, role, OpAssign); err != nil {
		return err
	}
	return s.assign(ctx, actor, userID, role)
}

func (s *userRoleService) RevokeRole(ctx context.Context, actor Actor, userID string, role models.Role) (err error) {
	defer func() { recordMutation(ActionRoleRevoked, err) }()

	userID, err = s.validate(ctx, userID, role)
	if err != nil {
		return err
	}
	if err := authorize(actor, role, OpRevoke); err != nil {
		return err
	}
	return s.revoke(ctx, actor, userID, role)
}

// ToggleRole assigns the role when the user lacks it and revokes it otherwise.
// It reports whether the user holds the role afterwards.
func (s *userRoleService) ToggleRole(ctx context.Context, actor Actor, userID string, role models.Role) (bool, error) {
	trimmed := strings.TrimSpace(userID)
	if trimmed == "" {
		return false, validationError("user id is required")
	}

	held, err := s.repo.Has(ctx, trimmed, role)
	if err != nil {
		return false, storeError("lookup", membershipKey(trimmed, role), err)
	}

	if held {
		if err := s.RevokeRole(ctx, actor, trimmed, role); err != nil {
			return true, err
		}
		return false, nil
	}

	if err := s.AssignRole(ctx, actor, trimmed, role); err != nil {
		return false, err
	}
	return true, nil
}

func (s *userRoleService) RolesOf(ctx context.Context, userID string) ([]models.Role, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, validationError("user id is required")
	}
	roles, err := s.repo.RolesOf(ctx, userID)
	if err != nil {
		return nil, storeError("roles_of", userID, err)
	}
	if roles == nil {
		roles = []models.Role{}
	}
	return roles, nil
}

func (s *userRoleService) validate(ctx context.Context, userID string, role models.Role) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", validationError("user id is required")
	}
	if role == "" {
		return "", validationError("role is required")
	}
	exists, err := s.registry.RoleExists(ctx, role)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", validationError("unknown role %q", role)
	}
	return userID, nil
}

func (s *userRoleService) assign(ctx context.Context, actor Actor, userID string, role models.Role) error {
	spanCtx, span := s.startSpan(ctx, "user_roles.assign", userID, role)
	defer span.End()

	held, err := s.repo.Has(spanCtx, userID, role)
	if err != nil {
		span.RecordError(err)
		return storeError("lookup", membershipKey(userID, role), err)
	}
	if held {
		return validationError("user %q already holds role %q", userID, role)
	}

	if err := s.repo.Insert(spanCtx, userID, role); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return validationError("user %q already holds role %q", userID, role)
		}
		span.RecordError(err)
		return storeError("assign", membershipKey(userID, role), err)
	}

	s.logger.Info().Str("actor_id", actor.ID).Str("user_id", userID).Str("role", role.String()).Msg("role assigned")
	s.afterWrite(spanCtx, actor, userID, role, ActionRoleAssigned)
	return nil
}

func (s *userRoleService) revoke(ctx context.Context, actor Actor, userID string, role models.Role) error {
	spanCtx, span := s.startSpan(ctx, "user_roles.revoke", userID, role)
	defer span.End()

	held, err := s.repo.Has(spanCtx, userID, role)
	if err != nil {
		span.RecordError(err)
		return storeError("lookup", membershipKey(userID, role), err)
	}
	if !held {
		return validationError("user %q does not hold role %q", userID, role)
	}

	var affected int64
	if role == models.RoleSuperAdmin && s.options.GuardLastSuperAdmin {
		affected, err = s.repo.DeleteUnlessLast(spanCtx, userID, role)
		if errors.Is(err, repository.ErrLastHolder) {
			return ErrLastSuperAdmin
		}
	} else {
		affected, err = s.repo.Delete(spanCtx, userID, role)
	}
	if err != nil {
		span.RecordError(err)
		return storeError("revoke", membershipKey(userID, role), err)
	}
	if affected == 0 {
		return validationError("user %q does not hold role %q", userID, role)
	}

	s.logger.Info().Str("actor_id", actor.ID).Str("user_id", userID).Str("role", role.String()).Msg("role revoked")
	s.afterWrite(spanCtx, actor, userID, role, ActionRoleRevoked)
	return nil
}

func (s *userRoleService) afterWrite(ctx context.Context, actor Actor, userID string, role models.Role, actionType string) {
	s.cache.Invalidate(ctx)
	audit(ctx, s.activity, ActivityEntry{
		UserID:     actor.ID,
		ActionType: actionType,
		EntityType: "user",
		EntityID:   userID,
		Metadata:   map[string]interface{}{"role": role.String()},
	})
}

func (s *userRoleService) startSpan(ctx context.Context, name, userID string, role models.Role) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("rbac.user_id", userID),
		attribute.String("rbac.role", role.String()),
	))
}

func membershipKey(userID string, role models.Role) string {
	return userID + "/" + role.String()
}
