package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/campus-grievance-api/pkg/errors"
)

// Cache key layout for tracking reads. Both keys for a grievance are
// dropped together after every successful write.
const (
	cacheKeyStatusFmt  = "tracking:status:%s"
	cacheKeyHistoryFmt = "tracking:history:%s"
)

// StatusCacheKey returns the current-status cache key for a grievance.
func StatusCacheKey(grievanceID string) string {
	return fmt.Sprintf(cacheKeyStatusFmt, grievanceID)
}

// HistoryCacheKey returns the history cache key for a grievance.
func HistoryCacheKey(grievanceID string) string {
	return fmt.Sprintf(cacheKeyHistoryFmt, grievanceID)
}

// CacheRepository provides helpers around Redis for caching tracking reads.
type CacheRepository struct {
	client *redis.Client
	logger *zap.Logger
}

// NewCacheRepository constructs a cache repository.
func NewCacheRepository(client *redis.Client, logger *zap.Logger) *CacheRepository {
	return &CacheRepository{client: client, logger: logger}
}

// Get retrieves and unmarshals the cached value into the provided destination.
func (r *CacheRepository) Get(ctx context.Context, key string, dest interface{}) error {
	if r.client == nil {
		return appErrors.ErrCacheMiss
	}

	raw, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return appErrors.ErrCacheMiss
		}
		return fmt.Errorf("redis get %s: %w", key, err)
	}

	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("unmarshal cache value for %s: %w", key, err)
	}

	return nil
}

// Set marshals the provided value and stores it with the given TTL.
func (r *CacheRepository) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if r.client == nil {
		return nil
	}

	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value for %s: %w", key, err)
	}

	if err := r.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}

	return nil
}

// InvalidateGrievance drops both tracking keys for the grievance.
func (r *CacheRepository) InvalidateGrievance(ctx context.Context, grievanceID string) error {
	if r.client == nil {
		return nil
	}
	if err := r.client.Del(ctx, StatusCacheKey(grievanceID), HistoryCacheKey(grievanceID)).Err(); err != nil {
		return fmt.Errorf("redis delete tracking keys for %s: %w", grievanceID, err)
	}
	return nil
}

// Close releases the underlying Redis connection if present.
func (r *CacheRepository) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}
