package websocket

import (
	"context"
	"errors"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/deepgram/chatform/internal/connections"
	"github.com/deepgram/chatform/internal/logger"
	chatsvc "github.com/deepgram/chatform/internal/services/chat"
	"github.com/deepgram/chatform/internal/services/chat/models"
	"github.com/deepgram/chatform/internal/services/rag"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	ModePlain     = "plain"
	ModeRetrieval = "retrieval"

	maxRequestBytes = 1 << 20
	// close reasons must fit in a control frame
	maxCloseReason = 123
)

var (
	upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}

	validate = validator.New(validator.WithRequiredStructEnabled())
)

// HandleChatWebSocket serves one chat over a WebSocket. The client sends a
// single JSON request frame and receives the answer as text frames followed
// by a close frame. A normal closure means the answer is complete.
func HandleChatWebSocket(chatService chatsvc.Service, ragService *rag.Service, manager *connections.Manager, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Str("component", logger.WEBSOCKET).Err(err).Msg("Could not upgrade connection")
		return
	}
	defer conn.Close()

	timeouts := manager.Timeouts()
	conn.SetReadLimit(maxRequestBytes)
	conn.SetReadDeadline(time.Now().Add(timeouts.PongWait))

	var req models.StreamRequest
	if err := conn.ReadJSON(&req); err != nil {
		log.Warn().Str("component", logger.WEBSOCKET).Err(err).Msg("Client sent malformed request frame")
		closeWith(conn, timeouts, websocket.CloseUnsupportedData, "Invalid request format")
		return
	}
	if err := validate.Struct(req); err != nil {
		log.Warn().Str("component", logger.WEBSOCKET).Err(err).Msg("Request validation failed")
		closeWith(conn, timeouts, websocket.ClosePolicyViolation, "Invalid request: "+err.Error())
		return
	}

	mode := req.Mode
	if mode == "" {
		mode = ModePlain
	}

	release := manager.Track(conn, connections.StreamInfo{
		Mode:       mode,
		RemoteAddr: r.RemoteAddr,
		StartedAt:  time.Now(),
	})
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up ping/pong handlers
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(timeouts.PongWait))
	})

	done := make(chan struct{})
	defer close(done)
	go manager.KeepAlive(conn, done)

	// The reader only sees control frames and the client's close. Any read
	// failure means the client is gone, so the stream is cancelled.
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		for {
			conn.SetReadDeadline(time.Now().Add(timeouts.PongWait))
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	log.Info().
		Str("component", logger.WEBSOCKET).
		Str("client_ip", r.RemoteAddr).
		Str("mode", mode).
		Int("active", manager.Count()).
		Msg("Streaming chat over websocket")

	emit := func(delta string) error {
		conn.SetWriteDeadline(time.Now().Add(timeouts.WriteWait))
		return conn.WriteMessage(websocket.TextMessage, []byte(delta))
	}

	if mode == ModeRetrieval {
		err = ragService.StreamChat(ctx, req.RAGChatRequest(), emit)
	} else {
		err = chatService.StreamChat(ctx, req.ChatRequest(), emit)
	}

	switch {
	case err == nil:
		closeWith(conn, timeouts, websocket.CloseNormalClosure, "")
	case ctx.Err() != nil:
		log.Info().Str("component", logger.WEBSOCKET).Msg("Client went away mid-stream")
		return
	case errors.Is(err, rag.ErrNotIndexed):
		closeWith(conn, timeouts, websocket.ClosePolicyViolation, err.Error())
	default:
		log.Error().Str("component", logger.WEBSOCKET).Err(err).Msg("Chat stream failed")
		closeWith(conn, timeouts, websocket.CloseInternalServerErr, err.Error())
	}

	// Give the client a moment to acknowledge the close.
	select {
	case <-readerDone:
	case <-time.After(timeouts.WriteWait):
	}
}

func closeWith(conn *websocket.Conn, timeouts connections.TimeoutConfig, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, truncateReason(reason))
	if err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(timeouts.WriteWait)); err != nil {
		log.Debug().Str("component", logger.WEBSOCKET).Err(err).Msg("Failed to send close frame")
	}
}

// truncateReason cuts reason to fit a close frame without splitting a rune.
func truncateReason(reason string) string {
	if len(reason) <= maxCloseReason {
		return reason
	}
	n := maxCloseReason
	for n > 0 && !utf8.RuneStart(reason[n]) {
		n--
	}
	return reason[:n]
}
