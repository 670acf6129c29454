package redis

import (
	"context"
	"time"

	"github.com/deepgram/chatform/internal/config"
	"github.com/deepgram/chatform/internal/logger"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

type Service struct {
	client *redis.Client
}

// NewService connects to REDIS_URL. It returns nil when Redis is not
// configured or not reachable, in which case callers fall back to memory.
func NewService() *Service {
	url := config.GetRedisURL()

	if url == "" {
		log.Warn().Str("component", logger.REDIS).Msg("Redis URL not configured - service will be unavailable")
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     url,
		Password: config.GetRedisPassword(),
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		log.Error().
			Str("component", logger.REDIS).
			Err(err).
			Str("addr", url).
			Msg("Failed to establish Redis connection")
		_ = client.Close()
		return nil
	}

	return &Service{
		client: client,
	}
}

// NewServiceWithClient wraps an existing client without pinging it.
func NewServiceWithClient(client *redis.Client) *Service {
	return &Service{client: client}
}

// PushCapped prepends value to the list at key and trims it to limit entries.
func (s *Service) PushCapped(ctx context.Context, key string, value interface{}, limit int) error {
	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, key, value)
	if limit > 0 {
		pipe.LTrim(ctx, key, 0, int64(limit-1))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		log.Error().
			Str("component", logger.REDIS).
			Err(err).
			Str("key", key).
			Msg("Critical Redis LPUSH operation failed")
		return err
	}
	return nil
}

// Range returns the list entries between start and stop inclusive.
func (s *Service) Range(ctx context.Context, key string, start, stop int64) ([]string, error) {
	vals, err := s.client.LRange(ctx, key, start, stop).Result()
	if err != nil && err != redis.Nil {
		log.Error().
			Str("component", logger.REDIS).
			Err(err).
			Str("key", key).
			Msg("Critical Redis LRANGE operation failed")
		return nil, err
	}
	return vals, nil
}

// Ping checks if Redis is accessible
func (s *Service) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (s *Service) Close() error {
	return s.client.Close()
}
