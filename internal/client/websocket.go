package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/deepgram/chatform/internal/logger"
	"github.com/deepgram/chatform/internal/services/chat/models"
	"github.com/deepgram/chatform/internal/transcript"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// OpenWebSocketChat dials the streaming endpoint and sends req as the single
// request frame. Each text frame the server sends is one chunk of the stream.
//
// The call blocks until the server either sends its first chunk or closes
// the connection, so a rejected request fails here with an *APIError rather
// than on the first Next. A normal closure with no chunks yields an empty
// stream.
func (c *Client) OpenWebSocketChat(ctx context.Context, req models.StreamRequest) (transcript.Stream, error) {
	wsURL, err := websocketURL(c.baseURL, "/api/ws/chat")
	if err != nil {
		return nil, err
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		if resp != nil {
			if apiErr := checkResponse(resp); apiErr != nil {
				return nil, apiErr
			}
		}
		return nil, fmt.Errorf("failed to connect to %s: %w", wsURL, err)
	}

	if err := conn.WriteJSON(req); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to send request frame: %w", err)
	}

	s := &wsStream{conn: conn}
	first, err := s.read(ctx)
	switch {
	case errors.Is(err, io.EOF):
		s.Close()
	case err != nil:
		s.Close()
		return nil, err
	default:
		s.pending = first
	}

	log.Debug().Str("component", logger.CLIENT).Str("mode", req.Mode).Msg("WebSocket stream opened")
	return s, nil
}

type wsStream struct {
	conn      *websocket.Conn
	pending   []byte
	err       error
	closeOnce sync.Once
}

func (s *wsStream) Next(ctx context.Context) ([]byte, error) {
	if s.pending != nil {
		chunk := s.pending
		s.pending = nil
		return chunk, nil
	}
	return s.read(ctx)
}

// read returns the next non-empty data frame. Errors are sticky.
func (s *wsStream) read(ctx context.Context) ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// ReadMessage does not take a context; closing the connection unblocks it.
	stop := context.AfterFunc(ctx, func() {
		s.conn.Close()
	})
	defer stop()

	for {
		msgType, data, err := s.conn.ReadMessage()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				s.err = ctxErr
			} else {
				s.err = closeError(err)
			}
			return nil, s.err
		}
		if msgType != websocket.TextMessage && msgType != websocket.BinaryMessage {
			continue
		}
		if len(data) == 0 {
			continue
		}
		return data, nil
	}
}

func (s *wsStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.conn.Close()
	})
	return err
}

// closeError maps the server's close frame onto the stream contract: a
// normal closure ends the stream, anything else is an *APIError.
func closeError(err error) error {
	var ce *websocket.CloseError
	if !errors.As(err, &ce) {
		return fmt.Errorf("websocket read failed: %w", err)
	}

	switch ce.Code {
	case websocket.CloseNormalClosure:
		return io.EOF
	case websocket.CloseUnsupportedData, websocket.ClosePolicyViolation:
		return &APIError{StatusCode: http.StatusBadRequest, Message: ce.Text}
	case websocket.CloseGoingAway:
		return &APIError{StatusCode: http.StatusServiceUnavailable, Message: ce.Text}
	default:
		return &APIError{StatusCode: http.StatusInternalServerError, Message: ce.Text}
	}
}

func websocketURL(baseURL, path string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid api url %q: %w", baseURL, err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("invalid api url scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + path
	return u.String(), nil
}
