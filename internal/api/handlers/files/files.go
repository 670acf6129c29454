package files

import (
	"errors"
	"io"
	"net/http"

	"github.com/deepgram/chatform/internal/logger"
	"github.com/deepgram/chatform/internal/services/history"
	"github.com/deepgram/chatform/internal/services/rag"
	"github.com/deepgram/chatform/pkg/httpext"
	"github.com/rs/zerolog/log"
)

const maxMemory = 8 << 20

// HistoryResponse is the body of GET /api/file-history.
type HistoryResponse struct {
	Success     bool                 `json:"success"`
	FileHistory []history.FileRecord `json:"file_history"`
}

// HandleUpload indexes a multipart upload carrying "file" and "api_key".
func HandleUpload(ragService *rag.Service, maxBytes int64, w http.ResponseWriter, r *http.Request) {
	if maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	}

	if err := r.ParseMultipartForm(maxMemory); err != nil {
		if isTooLarge(err) {
			log.Warn().Str("component", logger.HANDLER).Int64("limit", maxBytes).Msg("Upload exceeds size limit")
			httpext.JsonError(w, "File too large", http.StatusRequestEntityTooLarge)
			return
		}
		log.Warn().Str("component", logger.HANDLER).Err(err).Msg("Client sent malformed multipart request")
		httpext.JsonError(w, "Invalid multipart request", http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	apiKey := r.FormValue("api_key")
	if apiKey == "" {
		httpext.JsonErrorWithDetails(w, http.StatusBadRequest, httpext.ErrorResponse{
			Error:  "Invalid request",
			Detail: rag.ErrMissingAPIKey.Error(),
		})
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		httpext.JsonError(w, "Missing file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		log.Error().Str("component", logger.HANDLER).Err(err).Msg("Failed to read uploaded file")
		httpext.JsonError(w, "Failed to read file", http.StatusBadRequest)
		return
	}

	log.Info().
		Str("component", logger.HANDLER).
		Str("filename", header.Filename).
		Int("size", len(data)).
		Msg("Received data file upload")

	result, err := ragService.UploadAndIndex(r.Context(), header.Filename, data, apiKey)
	if err != nil {
		status := http.StatusInternalServerError
		message := "Failed to process data source"
		switch {
		case errors.Is(err, rag.ErrUnsupportedFile), errors.Is(err, rag.ErrEmptyDocument), errors.Is(err, rag.ErrMissingAPIKey):
			status = http.StatusBadRequest
			message = "Invalid data source"
		}

		log.Error().Str("component", logger.HANDLER).Err(err).Int("status", status).Msg("Upload failed")
		httpext.JsonErrorWithDetails(w, status, httpext.ErrorResponse{Error: message, Detail: err.Error()})
		return
	}

	httpext.JsonResponse(w, http.StatusOK, result)
}

func HandleIndexStatus(ragService *rag.Service, w http.ResponseWriter, r *http.Request) {
	httpext.JsonResponse(w, http.StatusOK, ragService.Status())
}

func HandleClearIndex(ragService *rag.Service, w http.ResponseWriter, r *http.Request) {
	httpext.JsonResponse(w, http.StatusOK, ragService.Clear())
}

func HandleFileHistory(historyService *history.Service, ragService *rag.Service, w http.ResponseWriter, r *http.Request) {
	records, err := historyService.List(r.Context(), ragService.CurrentDocumentID())
	if err != nil {
		log.Error().Str("component", logger.HANDLER).Err(err).Msg("Failed to load file history")
		httpext.JsonError(w, "Failed to load file history", http.StatusInternalServerError)
		return
	}

	httpext.JsonResponse(w, http.StatusOK, HistoryResponse{Success: true, FileHistory: records})
}

func isTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}
