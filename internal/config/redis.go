package config

import (
	"github.com/deepgram/chatform/internal/logger"
	"github.com/rs/zerolog/log"
)

func GetRedisURL() string {
	log.Debug().Str("component", logger.CONFIG).Msg("Attempting to retrieve Redis URL from environment")
	value := GetEnvOrDefault("REDIS_URL", "")
	if value == "" {
		log.Warn().Str("component", logger.CONFIG).Msg("Redis URL not set - file history will be kept in memory")
	} else {
		log.Info().Str("component", logger.CONFIG).Msg("Redis URL successfully loaded")
	}
	return value
}

func GetRedisPassword() string {
	return GetEnvOrDefault("REDIS_PASSWORD", "")
}

// GetFileHistoryLimit returns how many uploads the history keeps.
func GetFileHistoryLimit() int {
	return parseEnvInt("FILE_HISTORY_LIMIT", 20)
}
