package clients

import (
	"context"
	"errors"
	"strings"
	"time"

	"parking-svc/src/internal/config"

	"github.com/redis/go-redis/v9"
)

const (
	defaultDialTimeout  = 5 * time.Second
	defaultReadTimeout  = 3 * time.Second
	defaultWriteTimeout = 3 * time.Second
)

type RedisClient struct {
	Client *redis.Client
}

// NewRedisClient returns a configured go-redis client and validates the connection with PING.
func NewRedisClient(cfg *config.Redis) (*RedisClient, error) {
	addr := strings.TrimSpace(cfg.Url)
	if addr == "" {
		return nil, errors.New("redis: url is empty")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     cfg.Password,
		DB:           cfg.Db,
		DialTimeout:  defaultDialTimeout,
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: defaultWriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), defaultDialTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		log.WithError(err).WithField("addr", addr).Error("Failed to connect to Redis")
		_ = client.Close()
		return nil, err
	}

	log.WithField("addr", addr).Info("Connected to Redis")
	return &RedisClient{Client: client}, nil
}

func (r *RedisClient) Close() error {
	if r.Client == nil {
		return nil
	}
	if err := r.Client.Close(); err != nil {
		log.WithError(err).Error("Failed to close Redis client")
		return err
	}
	log.Info("Redis connection closed")
	return nil
}
