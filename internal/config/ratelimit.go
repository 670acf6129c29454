package config

import (
	"time"

	"github.com/deepgram/chatform/internal/logger"
	"github.com/rs/zerolog/log"
)

type RateLimitConfig struct {
	Enabled bool
	MaxHits int
	Window  time.Duration
}

func GetRateLimitConfig(key string) RateLimitConfig {
	enabled := parseEnvBool("RATELIMIT_ENABLED", false)

	configs := map[string]RateLimitConfig{
		"global": {
			Enabled: enabled,
			MaxHits: parseEnvInt("RATELIMIT_GLOBAL", 1000), // 1000 requests per minute globally
			Window:  time.Minute,
		},
		"chat": {
			Enabled: enabled,
			MaxHits: parseEnvInt("RATELIMIT_CHAT", 120),
			Window:  time.Minute,
		},
		"rag_chat": {
			Enabled: enabled,
			MaxHits: parseEnvInt("RATELIMIT_RAG_CHAT", 60),
			Window:  time.Minute,
		},
		"upload": {
			Enabled: enabled,
			MaxHits: parseEnvInt("RATELIMIT_UPLOAD", 10),
			Window:  time.Minute,
		},
	}

	if config, exists := configs[key]; exists {
		return config
	}

	log.Warn().Str("component", logger.CONFIG).Str("key", key).Msg("No rate limit config found")
	return RateLimitConfig{Enabled: false}
}
