package client

import (
	"context"
	"fmt"

	"github.com/deepgram/chatform/internal/config"
	"github.com/deepgram/chatform/internal/services/chat/models"
	"github.com/deepgram/chatform/internal/transcript"
)

// Backend opens transcript streams over the configured transport.
type Backend struct {
	client    *Client
	transport string
}

// NewBackend returns a transcript.Backend using transport, which is
// config.TransportHTTP or config.TransportWebSocket.
func NewBackend(c *Client, transport string) (*Backend, error) {
	switch transport {
	case "", config.TransportHTTP:
		transport = config.TransportHTTP
	case config.TransportWebSocket:
	default:
		return nil, fmt.Errorf("unknown transport %q", transport)
	}
	return &Backend{client: c, transport: transport}, nil
}

func (b *Backend) Transport() string {
	return b.transport
}

// OpenStream sends exactly one request to the endpoint for req.Mode.
func (b *Backend) OpenStream(ctx context.Context, req transcript.Request) (transcript.Stream, error) {
	if b.transport == config.TransportWebSocket {
		return b.client.OpenWebSocketChat(ctx, models.StreamRequest{
			Mode:          req.Mode.String(),
			SystemMessage: req.SystemMessage,
			UserMessage:   req.UserMessage,
			Model:         req.Model,
			APIKey:        req.APIKey,
			Temperature:   req.Temperature,
		})
	}

	switch req.Mode {
	case transcript.ModeRetrieval:
		return b.client.OpenRAGChat(ctx, models.RAGChatRequest{
			UserMessage:   req.UserMessage,
			SystemMessage: req.SystemMessage,
			APIKey:        req.APIKey,
		})
	default:
		return b.client.OpenChat(ctx, models.ChatRequest{
			SystemMessage: req.SystemMessage,
			UserMessage:   req.UserMessage,
			Model:         req.Model,
			APIKey:        req.APIKey,
			Temperature:   req.Temperature,
		})
	}
}
