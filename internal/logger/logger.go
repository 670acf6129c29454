package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Component names attached to log lines as the "component" field.
const (
	APP        = "APP"
	CHAT       = "CHAT"
	CLIENT     = "CLIENT"
	CONFIG     = "CONFIG"
	HANDLER    = "HANDLER"
	HISTORY    = "HISTORY"
	MIDDLEWARE = "MIDDLEWARE"
	RAG        = "RAG"
	REDIS      = "REDIS"
	SERVICE    = "SERVICE"
	WEBSOCKET  = "WEBSOCKET"
)

func parseLevel(level string) zerolog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "TRACE":
		return zerolog.TraceLevel
	case "DEBUG":
		return zerolog.DebugLevel
	case "INFO":
		return zerolog.InfoLevel
	case "WARN":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Init configures the global zerolog logger from LOG_LEVEL and LOG_FORMAT.
func Init() {
	InitWithWriter(os.Stderr, os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
}

// InitWithWriter configures the global logger to write to w.
func InitWithWriter(w io.Writer, level, format string) {
	zerolog.SetGlobalLevel(parseLevel(level))
	zerolog.TimeFieldFormat = time.RFC3339

	if strings.EqualFold(format, "console") {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	log.Logger = zerolog.New(w).With().Timestamp().Logger()
}
