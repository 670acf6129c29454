package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/deepgram/chatform/internal/config"
	infraopenai "github.com/deepgram/chatform/internal/infrastructure/openai"
	"github.com/deepgram/chatform/internal/logger"
	"github.com/deepgram/chatform/internal/services/chat/models"
	"github.com/rs/zerolog/log"
	"github.com/sashabaranov/go-openai"
)

// EmitFunc receives each content delta in arrival order. Returning an error
// stops the stream.
type EmitFunc func(delta string) error

// Service defines the interface for chat operations
type Service interface {
	// StreamChat streams a plain chat completion.
	StreamChat(ctx context.Context, req models.ChatRequest, emit EmitFunc) error

	// StreamMessages streams a completion for an already assembled message list.
	StreamMessages(ctx context.Context, apiKey string, messages []openai.ChatCompletionMessage, emit EmitFunc) error
}

type Implementation struct {
	openAI       *infraopenai.Service
	defaultModel string
}

func NewService(openAIService *infraopenai.Service) (*Implementation, error) {
	if openAIService == nil {
		return nil, fmt.Errorf("OpenAI service is required")
	}

	return &Implementation{
		openAI:       openAIService,
		defaultModel: config.GetDefaultChatModel(),
	}, nil
}

func (s *Implementation) StreamChat(ctx context.Context, req models.ChatRequest, emit EmitFunc) error {
	model := req.Model
	if model == "" {
		model = s.defaultModel
	}

	temperature := float32(config.DefaultTemperature)
	if req.Temperature != nil {
		temperature = *req.Temperature
	}

	return s.stream(ctx, req.APIKey, openai.ChatCompletionRequest{
		Model:       model,
		Messages:    PlainMessages(req.SystemMessage, req.UserMessage),
		Temperature: nonZeroTemperature(temperature),
		Stream:      true,
	}, emit)
}

func (s *Implementation) StreamMessages(ctx context.Context, apiKey string, messages []openai.ChatCompletionMessage, emit EmitFunc) error {
	return s.stream(ctx, apiKey, openai.ChatCompletionRequest{
		Model:    s.defaultModel,
		Messages: messages,
		Stream:   true,
	}, emit)
}

func (s *Implementation) stream(ctx context.Context, apiKey string, req openai.ChatCompletionRequest, emit EmitFunc) error {
	log.Debug().
		Str("component", logger.CHAT).
		Str("model", req.Model).
		Int("messages", len(req.Messages)).
		Msg("Opening chat completion stream")

	stream, err := s.openAI.GetClient(apiKey).CreateChatCompletionStream(ctx, req)
	if err != nil {
		log.Error().Str("component", logger.CHAT).Err(err).Msg("Failed to open chat completion stream")
		return fmt.Errorf("failed to create chat completion stream: %w", err)
	}
	defer stream.Close()

	deltas := 0
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			log.Error().Str("component", logger.CHAT).Err(err).Int("deltas", deltas).Msg("Chat completion stream failed")
			return fmt.Errorf("failed to receive chat completion: %w", err)
		}

		if len(resp.Choices) == 0 || resp.Choices[0].Delta.Content == "" {
			continue
		}

		deltas++
		if err := emit(resp.Choices[0].Delta.Content); err != nil {
			return fmt.Errorf("failed to emit chat completion: %w", err)
		}
	}

	log.Debug().Str("component", logger.CHAT).Int("deltas", deltas).Msg("Chat completion stream finished")
	return nil
}

// go-openai omits a zero temperature from the request body.
func nonZeroTemperature(t float32) float32 {
	if t == 0 {
		return math.SmallestNonzeroFloat32
	}
	return t
}
