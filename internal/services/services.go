package services

import (
	"fmt"
	"sync"

	"github.com/deepgram/chatform/internal/config"
	"github.com/deepgram/chatform/internal/connections"
	"github.com/deepgram/chatform/internal/infrastructure/openai"
	"github.com/deepgram/chatform/internal/infrastructure/redis"
	"github.com/deepgram/chatform/internal/services/chat"
	"github.com/deepgram/chatform/internal/services/history"
	"github.com/deepgram/chatform/internal/services/rag"
	"github.com/rs/zerolog/log"
)

var (
	// Mutex for thread-safe initialization
	servicesMu sync.RWMutex
)

type Services struct {
	chatService       chat.Service
	connectionManager *connections.Manager
	historyService    *history.Service
	ragService        *rag.Service
	redisService      *redis.Service
}

// InitializeServices initializes all required services
func InitializeServices() (*Services, error) {
	servicesMu.Lock()
	defer servicesMu.Unlock()

	log.Info().Msg("Initializing core services")

	// Initialize Redis service (optional)
	redisService := redis.NewService()
	log.Info().Bool("available", redisService != nil).Msg("Initializing Redis service")

	// Initialize file history with optional Redis
	historyService := history.NewService(redisService)
	log.Info().Msg("Initializing file history service")

	// Initialize OpenAI client factory (required)
	openAIService := openai.NewService()

	// Initialize chat service (required)
	chatService, err := chat.NewService(openAIService)
	if err != nil {
		log.Error().Err(err).Msg("Failed to initialize chat service - required for message processing")
		return nil, fmt.Errorf("failed to initialize chat service: %w", err)
	}
	log.Info().Msg("Initializing chat service")

	ragConfig := config.GetRAGConfig()
	embedder := rag.NewOpenAIEmbedder(openAIService, config.GetEmbeddingModel(), ragConfig.EmbeddingBatch)
	ragService := rag.NewService(embedder, chatService, historyService, ragConfig)
	log.Info().
		Int("chunk_size", ragConfig.ChunkSize).
		Int("chunk_overlap", ragConfig.ChunkOverlap).
		Int("top_k", ragConfig.TopK).
		Msg("Initializing RAG service")

	log.Info().Msg("All services initialized successfully")

	return &Services{
		chatService:       chatService,
		connectionManager: connections.NewManager(connections.DefaultTimeouts),
		historyService:    historyService,
		ragService:        ragService,
		redisService:      redisService,
	}, nil
}

// NewServices assembles a container from already built services.
func NewServices(chatService chat.Service, ragService *rag.Service, historyService *history.Service, manager *connections.Manager) *Services {
	return &Services{
		chatService:       chatService,
		connectionManager: manager,
		historyService:    historyService,
		ragService:        ragService,
	}
}

// GetChatService returns the chat service
func (s *Services) GetChatService() chat.Service {
	return s.chatService
}

// GetRAGService returns the document chat service
func (s *Services) GetRAGService() *rag.Service {
	return s.ragService
}

// GetHistoryService returns the file history service
func (s *Services) GetHistoryService() *history.Service {
	return s.historyService
}

// GetConnectionManager returns the WebSocket connection manager
func (s *Services) GetConnectionManager() *connections.Manager {
	return s.connectionManager
}

// Close releases external connections.
func (s *Services) Close() error {
	if s.redisService != nil {
		return s.redisService.Close()
	}
	return nil
}
