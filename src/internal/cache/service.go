package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"parking-svc/src/internal/config"
	"parking-svc/src/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Service caches the occupancy snapshot. Every invalidation bumps a
// generation counter; a snapshot is only saved if the generation read before
// computing it is still current.
type Service interface {
	GetOccupancy(ctx context.Context) ([]models.ClassOccupancy, error)
	OccupancyGeneration(ctx context.Context) (int64, error)
	SaveOccupancy(ctx context.Context, generation int64, occupancy []models.ClassOccupancy) error
	InvalidateOccupancy(ctx context.Context) error
}

var saveIfCurrentScript = redis.NewScript(`
local current = redis.call("GET", KEYS[1])
if current == false then
	current = "0"
end
if current ~= ARGV[1] then
	return 0
end
if tonumber(ARGV[3]) > 0 then
	redis.call("SET", KEYS[2], ARGV[2], "PX", ARGV[3])
else
	redis.call("SET", KEYS[2], ARGV[2])
end
return 1
`)

type cacheService struct {
	client *redis.Client
	cfg    *config.CacheConfig
}

func NewCacheService(client *redis.Client, cfg *config.Configuration) Service {
	return &cacheService{
		client: client,
		cfg:    &cfg.Cache,
	}
}

// GetOccupancy returns nil without error on a cache miss.
func (c *cacheService) GetOccupancy(ctx context.Context) ([]models.ClassOccupancy, error) {
	data, err := c.client.Get(ctx, c.cfg.OccupancyKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			logrus.Debug("Occupancy not found in cache")
			return nil, nil // Not an error, just not found
		}
		logrus.WithError(err).Error("Failed to get occupancy from cache")
		return nil, models.ErrRedisGet
	}

	var occupancy []models.ClassOccupancy
	if err := json.Unmarshal([]byte(data), &occupancy); err != nil {
		logrus.WithError(err).Error("Failed to unmarshal occupancy from cache")
		return nil, models.ErrRedisGet
	}

	logrus.Debug("Occupancy retrieved from cache successfully")
	return occupancy, nil
}

func (c *cacheService) OccupancyGeneration(ctx context.Context) (int64, error) {
	generation, err := c.client.Get(ctx, c.generationKey()).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		logrus.WithError(err).Error("Failed to get occupancy generation")
		return 0, models.ErrRedisGet
	}
	return generation, nil
}

// SaveOccupancy is a no-op when the cache was invalidated after generation was read.
func (c *cacheService) SaveOccupancy(ctx context.Context, generation int64, occupancy []models.ClassOccupancy) error {
	data, err := json.Marshal(occupancy)
	if err != nil {
		logrus.WithError(err).Error("Failed to marshal occupancy for cache")
		return models.ErrRedisSet
	}

	expiration := time.Duration(c.cfg.OccupancyExpirationSeconds) * time.Second
	saved, err := saveIfCurrentScript.Run(ctx, c.client,
		[]string{c.generationKey(), c.cfg.OccupancyKey},
		generation, data, expiration.Milliseconds()).Int()
	if err != nil {
		logrus.WithError(err).Error("Failed to cache occupancy")
		return models.ErrRedisSet
	}
	if saved == 0 {
		logrus.WithField("generation", generation).Debug("Occupancy changed while computing, not cached")
	}
	return nil
}

func (c *cacheService) InvalidateOccupancy(ctx context.Context) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, c.generationKey())
		pipe.Del(ctx, c.cfg.OccupancyKey)
		return nil
	})
	if err != nil {
		logrus.WithError(err).Error("Failed to invalidate occupancy cache")
		return models.ErrRedisDelete
	}
	return nil
}

func (c *cacheService) generationKey() string {
	return c.cfg.OccupancyKey + ":generation"
}

type noopService struct{}

// NewNoopService returns a cache that never hits. Used when Redis is disabled.
func NewNoopService() Service {
	return noopService{}
}

func (noopService) GetOccupancy(context.Context) ([]models.ClassOccupancy, error) { return nil, nil }

func (noopService) OccupancyGeneration(context.Context) (int64, error) { return 0, nil }

func (noopService) SaveOccupancy(context.Context, int64, []models.ClassOccupancy) error { return nil }

func (noopService) InvalidateOccupancy(context.Context) error { return nil }
