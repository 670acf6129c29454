package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/deepgram/chatform/internal/api/handlers"
	"github.com/deepgram/chatform/internal/api/middleware"
	"github.com/deepgram/chatform/internal/config"
	"github.com/deepgram/chatform/internal/logger"
	"github.com/deepgram/chatform/internal/services"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := config.LoadEnv(); err != nil {
		log.Warn().Err(err).Msg("Failed to load .env file")
	}
	logger.Init()

	svc, err := services.InitializeServices()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize services")
	}
	defer svc.Close()

	cfg := config.GetServerConfig()
	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: setupRouter(svc, cfg),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info().Str("component", logger.APP).Str("addr", server.Addr).Msg("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("ListenAndServe error")
		}
	}()

	<-ctx.Done()
	log.Info().Str("component", logger.APP).Msg("Shutting down server")

	// Hijacked websocket connections are not closed by Shutdown.
	svc.GetConnectionManager().CloseAll("server shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	}
}

func setupRouter(svc *services.Services, cfg config.ServerConfig) http.Handler {
	r := mux.NewRouter()
	handlers.RegisterRoutes(r, svc, cfg.UploadMaxBytes)

	var h http.Handler = r
	h = middleware.RateLimit("global")(h)
	h = middleware.CORS(cfg.AllowedOrigins)(h)
	return h
}
