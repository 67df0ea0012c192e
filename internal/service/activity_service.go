package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"gorm.io/datatypes"

	"github.com/noah-isme/gema-access/internal/dto"
	"github.com/noah-isme/gema-access/internal/middleware"
	"github.com/noah-isme/gema-access/internal/models"
	"github.com/noah-isme/gema-access/internal/repository"
)

const (
	defaultActivityLimit = 50
	maxActivityLimit     = 200
)

// Activity action types emitted by the access-control services.
const (
	ActionRoleAssigned         = "role_assigned"
	ActionRoleRevoked          = "role_revoked"
	ActionPermissionUpdated    = "permission_updated"
	ActionPermissionToggled    = "permission_toggled"
	ActionPermissionsSetAll    = "permissions_set_all"
	ActionPermissionsBulkSaved = "permissions_bulk_saved"
	ActionCustomRoleCreated    = "custom_role_created"
)

// ActivityEntry captures the details required to persist an audit entry.
type ActivityEntry struct {
	UserID     string
	ActionType string
	EntityType string
	EntityID   string
	Metadata   map[string]interface{}
}

// ActivityRecorder defines behaviour for recording activity logs.
type ActivityRecorder interface {
	Record(ctx context.Context, entry ActivityEntry) (dto.ActivityResponse, error)
}

// ActivityService exposes methods to query and persist activity logs.
type ActivityService interface {
	ActivityRecorder
	Query(ctx context.Context, query dto.ActivityQuery) (dto.ActivityListResponse, error)
}

// ActivityPublisher fans recorded entries out to other nodes. *nats.Conn satisfies it.
type ActivityPublisher interface {
	Publish(subject string, data []byte) error
}

type activityService struct {
	repo      repository.ActivityLogRepository
	directory UserDirectory
	publisher ActivityPublisher
	subject   string
	logger    zerolog.Logger
}

// NewActivityService constructs the activity log service. directory and publisher may be nil.
func NewActivityService(repo repository.ActivityLogRepository, directory UserDirectory, publisher ActivityPublisher, channelBase string, logger zerolog.Logger) ActivityService {
	subject := ""
	if channelBase != "" {
		subject = strings.ReplaceAll(channelBase, ":", ".") + ".activity"
	}
	return &activityService{
		repo:      repo,
		directory: directory,
		publisher: publisher,
		subject:   subject,
		logger:    logger.With().Str("component", "activity_service").Logger(),
	}
}

func (s *activityService) Record(ctx context.Context, entry ActivityEntry) (dto.ActivityResponse, error) {
	if strings.TrimSpace(entry.ActionType) == "" {
		return dto.ActivityResponse{}, fmt.Errorf("action type is required")
	}
	if strings.TrimSpace(entry.EntityType) == "" {
		return dto.ActivityResponse{}, fmt.Errorf("entity type is required")
	}

	model := models.ActivityLog{
		UserID:     normalizeActor(entry.UserID),
		ActionType: strings.ToLower(strings.TrimSpace(entry.ActionType)),
		EntityType: strings.ToLower(strings.TrimSpace(entry.EntityType)),
		EntityID:   strings.TrimSpace(entry.EntityID),
		Metadata:   sanitizeMetadata(entry.Metadata),
	}
	if correlation := middleware.CorrelationIDFromContext(ctx); correlation != "" {
		if _, exists := model.Metadata["correlation_id"]; !exists {
			model.Metadata["correlation_id"] = correlation
		}
	}

	if err := s.repo.Create(ctx, &model); err != nil {
		s.logger.Error().Err(err).Str("action_type", model.ActionType).Str("entity_id", model.EntityID).Msg("failed to persist activity log")
		return dto.ActivityResponse{}, err
	}

	response := dto.NewActivityResponse(model)
	s.publish(response)

	return response, nil
}

func (s *activityService) publish(response dto.ActivityResponse) {
	if s.publisher == nil || s.subject == "" {
		return
	}
	payload, err := json.Marshal(response)
	if err != nil {
		return
	}
	if err := s.publisher.Publish(s.subject, payload); err != nil {
		s.logger.Warn().Err(err).Msg("failed to publish activity event")
	}
}

func (s *activityService) Query(ctx context.Context, query dto.ActivityQuery) (dto.ActivityListResponse, error) {
	limit := query.Limit
	if limit <= 0 {
		limit = defaultActivityLimit
	} else if limit > maxActivityLimit {
		limit = maxActivityLimit
	}

	entries, err := s.repo.List(ctx, repository.ActivityLogFilter{
		Limit:      limit,
		UserID:     strings.TrimSpace(query.UserID),
		ActionType: strings.ToLower(strings.TrimSpace(query.ActionType)),
		EntityType: strings.ToLower(strings.TrimSpace(query.EntityType)),
		EntityID:   strings.TrimSpace(query.EntityID),
	})
	if err != nil {
		return dto.ActivityListResponse{}, err
	}

	items := make([]dto.ActivityResponse, 0, len(entries))
	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		items = append(items, dto.NewActivityResponse(entry))
		ids = append(ids, entry.UserID)
	}

	s.decorate(ctx, items, ids)

	return dto.ActivityListResponse{Items: items, Limit: limit}, nil
}

// decorate fills display names; on failure the raw user id stays in place.
func (s *activityService) decorate(ctx context.Context, items []dto.ActivityResponse, ids []string) {
	if s.directory == nil || len(ids) == 0 {
		return
	}

	names, err := s.directory.Lookup(ctx, ids)
	if err != nil {
		s.logger.Warn().Err(err).Msg("user directory lookup failed")
	}

	for i := range items {
		if entry, ok := names[items[i].UserID]; ok {
			items[i].DisplayName = entry.DisplayName
			items[i].AvatarURL = entry.AvatarURL
		}
	}
}

// audit records an entry without ever failing the caller.
func audit(ctx context.Context, recorder ActivityRecorder, entry ActivityEntry) {
	if recorder == nil {
		return
	}
	_, _ = recorder.Record(ctx, entry)
}

func sanitizeMetadata(metadata map[string]interface{}) datatypes.JSONMap {
	if metadata == nil {
		return datatypes.JSONMap{}
	}

	sanitized := datatypes.JSONMap{}
	for key, value := range metadata {
		lower := strings.ToLower(key)
		if strings.Contains(lower, "email") || strings.Contains(lower, "token") {
			sanitized[key] = "***"
			continue
		}
		sanitized[key] = value
	}
	return sanitized
}

func normalizeActor(id string) string {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return "system"
	}
	return trimmed
}
