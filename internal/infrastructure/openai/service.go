package openai

import (
	"strings"
	"sync"

	"github.com/deepgram/chatform/internal/config"
	"github.com/deepgram/chatform/internal/logger"
	"github.com/rs/zerolog/log"
	"github.com/sashabaranov/go-openai"
)

// Service builds OpenAI clients for the credential carried by each request.
// Clients are cached per key so repeated requests share a transport.
type Service struct {
	mu      sync.RWMutex
	baseURL string
	clients map[string]*openai.Client
}

func NewService() *Service {
	log.Info().Str("component", logger.SERVICE).Msg("Initialising OpenAI service")
	return NewServiceWithBaseURL(config.GetOpenAIBaseURL())
}

// NewServiceWithBaseURL points every client at baseURL. Empty means the
// library default.
func NewServiceWithBaseURL(baseURL string) *Service {
	return &Service{
		baseURL: strings.TrimRight(baseURL, "/"),
		clients: make(map[string]*openai.Client),
	}
}

// GetClient returns the client for apiKey.
func (s *Service) GetClient(apiKey string) *openai.Client {
	s.mu.RLock()
	client, ok := s.clients[apiKey]
	s.mu.RUnlock()
	if ok {
		return client
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if client, ok := s.clients[apiKey]; ok {
		return client
	}

	cfg := openai.DefaultConfig(apiKey)
	if s.baseURL != "" {
		cfg.BaseURL = s.baseURL
	}
	client = openai.NewClientWithConfig(cfg)
	s.clients[apiKey] = client
	return client
}
