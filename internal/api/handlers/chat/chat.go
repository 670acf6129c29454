package chat

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/deepgram/chatform/internal/logger"
	chatsvc "github.com/deepgram/chatform/internal/services/chat"
	"github.com/deepgram/chatform/internal/services/chat/models"
	"github.com/deepgram/chatform/internal/services/rag"
	"github.com/deepgram/chatform/pkg/httpext"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
)

// use a single instance of Validate, it caches struct info
var validate = validator.New(validator.WithRequiredStructEnabled())

// HandleChat streams a plain chat completion as a text/plain body.
func HandleChat(chatService chatsvc.Service, w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	log.Info().
		Str("component", logger.HANDLER).
		Str("client_ip", r.RemoteAddr).
		Str("model", req.Model).
		Msg("Received chat request")

	streamResponse(w, r, func(emit chatsvc.EmitFunc) error {
		return chatService.StreamChat(r.Context(), req, emit)
	})
}

// HandleRAGChat streams an answer grounded in the indexed document.
func HandleRAGChat(ragService *rag.Service, w http.ResponseWriter, r *http.Request) {
	var req models.RAGChatRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	log.Info().
		Str("component", logger.HANDLER).
		Str("client_ip", r.RemoteAddr).
		Msg("Received document chat request")

	streamResponse(w, r, func(emit chatsvc.EmitFunc) error {
		return ragService.StreamChat(r.Context(), req, emit)
	})
}

func decodeRequest(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		log.Warn().Str("component", logger.HANDLER).Err(err).Msg("Client sent malformed JSON request")
		httpext.JsonError(w, "Invalid request format", http.StatusBadRequest)
		return false
	}

	if err := validate.Struct(v); err != nil {
		log.Warn().Str("component", logger.HANDLER).Err(err).Msg("Request validation failed")
		httpext.JsonError(w, fmt.Sprintf("Invalid request: %v", err), http.StatusBadRequest)
		return false
	}
	return true
}

// streamResponse runs produce against a flushed text body. Failures before
// the first byte become JSON errors. Later failures abort the connection so
// the client sees a broken body rather than a short success.
func streamResponse(w http.ResponseWriter, r *http.Request, produce func(emit chatsvc.EmitFunc) error) {
	stream, err := httpext.NewTextStream(w)
	if err != nil {
		log.Error().Str("component", logger.HANDLER).Err(err).Msg("Response writer cannot stream")
		httpext.JsonError(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	err = produce(stream.Write)
	if err == nil {
		stream.Finish()
		log.Info().
			Str("component", logger.HANDLER).
			Str("client_ip", r.RemoteAddr).
			Int("status", http.StatusOK).
			Msg("Chat stream completed")
		return
	}

	if !stream.Started() {
		status := http.StatusInternalServerError
		message := "Failed to generate response"
		if errors.Is(err, rag.ErrNotIndexed) {
			status = http.StatusBadRequest
			message = "No data source indexed"
		}

		log.Error().Str("component", logger.HANDLER).Err(err).Int("status", status).Msg("Chat stream failed before first byte")
		httpext.JsonErrorWithDetails(w, status, httpext.ErrorResponse{Error: message, Detail: err.Error()})
		return
	}

	log.Error().Str("component", logger.HANDLER).Err(err).Msg("Chat stream failed mid-response")
	panic(http.ErrAbortHandler)
}
