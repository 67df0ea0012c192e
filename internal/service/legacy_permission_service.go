package service

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-access/internal/models"
	"github.com/noah-isme/gema-access/internal/repository"
)

// LegacyPermission is a historical per-user override row.
type LegacyPermission struct {
	ModuleID    string               `json:"module_id"`
	Permissions models.PermissionSet `json:"permissions"`
}

// LegacyPermissionService exposes the deprecated per-user overrides for display.
// Resolution never reads them.
type LegacyPermissionService interface {
	ListForUser(ctx context.Context, userID string) ([]LegacyPermission, error)
}

type legacyPermissionService struct {
	repo   repository.LegacyPermissionRepository
	logger zerolog.Logger
}

// NewLegacyPermissionService constructs the legacy override reader.
func NewLegacyPermissionService(repo repository.LegacyPermissionRepository, logger zerolog.Logger) LegacyPermissionService {
	return &legacyPermissionService{
		repo:   repo,
		logger: logger.With().Str("component", "legacy_permission_service").Logger(),
	}
}

func (s *legacyPermissionService) ListForUser(ctx context.Context, userID string) ([]LegacyPermission, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, validationError("user id is required")
	}

	rows, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("failed to load legacy overrides")
		return nil, storeError("legacy", userID, err)
	}

	items := make([]LegacyPermission, 0, len(rows))
	for _, row := range rows {
		items = append(items, LegacyPermission{
			ModuleID: row.ModuleID,
			Permissions: models.PermissionSet{
				CanCreate: row.CanCreate,
				CanRead:   row.CanRead,
				CanUpdate: row.CanUpdate,
				CanDelete: row.CanDelete,
			},
		})
	}
	return items, nil
}
