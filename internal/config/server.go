package config

import "time"

// ServerConfig holds the HTTP server settings.
type ServerConfig struct {
	Port            string
	UploadMaxBytes  int64
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

func GetServerConfig() ServerConfig {
	return ServerConfig{
		Port:            GetEnvOrDefault("PORT", "8000"),
		UploadMaxBytes:  int64(parseEnvInt("UPLOAD_MAX_BYTES", 20<<20)),
		ShutdownTimeout: parseEnvDuration("SHUTDOWN_TIMEOUT", 5*time.Second),
		AllowedOrigins:  splitList(GetEnvOrDefault("CORS_ALLOWED_ORIGINS", "*")),
	}
}
