package dto

import (
	"time"

	"gorm.io/datatypes"

	"github.com/noah-isme/gema-access/internal/models"
)

// ActivityQuery defines filters for retrieving activity log entries.
type ActivityQuery struct {
	Limit      int
	UserID     string
	ActionType string
	EntityType string
	EntityID   string
}

// ActivityResponse serializes an activity log entry.
type ActivityResponse struct {
	ID          uint                   `json:"id"`
	UserID      string                 `json:"user_id"`
	DisplayName string                 `json:"display_name"`
	AvatarURL   string                 `json:"avatar_url,omitempty"`
	ActionType  string                 `json:"action_type"`
	EntityType  string                 `json:"entity_type"`
	EntityID    string                 `json:"entity_id"`
	Metadata    map[string]interface{} `json:"metadata"`
	CreatedAt   time.Time              `json:"created_at"`
}

// ActivityListResponse wraps activity entries returned newest-first.
type ActivityListResponse struct {
	Items []ActivityResponse `json:"items"`
	Limit int                `json:"limit"`
}

func metadataFromJSON(data datatypes.JSONMap) map[string]interface{} {
	if data == nil {
		return map[string]interface{}{}
	}
	return map[string]interface{}(data)
}

// NewActivityResponse converts a model into an activity DTO. The display name
// defaults to the raw user id until the directory decorates it.
func NewActivityResponse(entry models.ActivityLog) ActivityResponse {
	return ActivityResponse{
		ID:          entry.ID,
		UserID:      entry.UserID,
		DisplayName: entry.UserID,
		ActionType:  entry.ActionType,
		EntityType:  entry.EntityType,
		EntityID:    entry.EntityID,
		Metadata:    metadataFromJSON(entry.Metadata),
		CreatedAt:   entry.CreatedAt,
	}
}
