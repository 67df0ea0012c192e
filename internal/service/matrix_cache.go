package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-access/internal/dto"
	"github.com/noah-isme/gema-access/internal/observability"
)

const matrixCacheKey = "rbac:matrix:v1"

// MatrixCache stores the rendered role × module matrix in Redis. A nil client
// turns every call into a miss.
type MatrixCache struct {
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewMatrixCache constructs the matrix cache.
func NewMatrixCache(client *redis.Client, ttl time.Duration, logger zerolog.Logger) *MatrixCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &MatrixCache{
		client: client,
		ttl:    ttl,
		logger: logger.With().Str("component", "matrix_cache").Logger(),
	}
}

func (c *MatrixCache) get(ctx context.Context) (dto.RoleMatrixResponse, bool) {
	if c == nil || c.client == nil {
		return dto.RoleMatrixResponse{}, false
	}

	payload, err := c.client.Get(ctx, matrixCacheKey).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn().Err(err).Msg("failed to read matrix cache")
			observability.MatrixCache().WithLabelValues("error").Inc()
		} else {
			observability.MatrixCache().WithLabelValues("miss").Inc()
		}
		return dto.RoleMatrixResponse{}, false
	}

	var result dto.RoleMatrixResponse
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		c.logger.Warn().Err(err).Msg("failed to decode matrix cache")
		observability.MatrixCache().WithLabelValues("error").Inc()
		return dto.RoleMatrixResponse{}, false
	}
	observability.MatrixCache().WithLabelValues("hit").Inc()
	return result, true
}

func (c *MatrixCache) set(ctx context.Context, matrix dto.RoleMatrixResponse) {
	if c == nil || c.client == nil {
		return
	}
	payload, err := json.Marshal(matrix)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, matrixCacheKey, payload, c.ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Msg("failed to store matrix cache")
	}
}

// Invalidate drops the cached matrix. Called after every permission or role write.
func (c *MatrixCache) Invalidate(ctx context.Context) {
	if c == nil || c.client == nil {
		return
	}
	if err := c.client.Del(ctx, matrixCacheKey).Err(); err != nil {
		c.logger.Warn().Err(err).Msg("failed to invalidate matrix cache")
	}
}
