package service

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-access/internal/repository"
)

// DirectoryEntry is the display information of a user.
type DirectoryEntry struct {
	DisplayName string
	AvatarURL   string
}

// UserDirectory resolves user ids to display information. It only decorates
// output and is never consulted for an authorization decision.
type UserDirectory interface {
	Lookup(ctx context.Context, ids []string) (map[string]DirectoryEntry, error)
}

type cachedUserDirectory struct {
	repo   repository.ProfileRepository
	cache  *lru.LRU[string, DirectoryEntry]
	logger zerolog.Logger
}

// NewUserDirectory builds a profile-backed directory with an in-process LRU cache.
func NewUserDirectory(repo repository.ProfileRepository, size int, ttl time.Duration, logger zerolog.Logger) UserDirectory {
	if size <= 0 {
		size = 512
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &cachedUserDirectory{
		repo:   repo,
		cache:  lru.NewLRU[string, DirectoryEntry](size, nil, ttl),
		logger: logger.With().Str("component", "user_directory").Logger(),
	}
}

func (d *cachedUserDirectory) Lookup(ctx context.Context, ids []string) (map[string]DirectoryEntry, error) {
	result := make(map[string]DirectoryEntry, len(ids))
	missing := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))

	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		if entry, ok := d.cache.Get(id); ok {
			result[id] = entry
			continue
		}
		missing = append(missing, id)
	}

	if len(missing) == 0 {
		return result, nil
	}

	profiles, err := d.repo.FindByIDs(ctx, missing)
	if err != nil {
		return result, err
	}

	for _, profile := range profiles {
		entry := DirectoryEntry{DisplayName: profile.FullName, AvatarURL: profile.AvatarURL}
		if entry.DisplayName == "" {
			entry.DisplayName = profile.ID
		}
		d.cache.Add(profile.ID, entry)
		result[profile.ID] = entry
	}

	return result, nil
}
