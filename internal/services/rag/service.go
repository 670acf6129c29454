package rag

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/deepgram/chatform/internal/config"
	"github.com/deepgram/chatform/internal/logger"
	"github.com/deepgram/chatform/internal/services/chat"
	"github.com/deepgram/chatform/internal/services/chat/models"
	"github.com/deepgram/chatform/internal/services/history"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var (
	ErrNotIndexed    = errors.New("no data source has been indexed; upload and index a PDF or TXT file first")
	ErrMissingAPIKey = errors.New("API key is required")
)

// FileInfo describes the currently indexed document.
type FileInfo struct {
	Filename   string    `json:"filename"`
	FileType   string    `json:"file_type"`
	SizeBytes  int64     `json:"size_bytes"`
	UploadedAt time.Time `json:"uploaded_at"`
}

type UploadResult struct {
	Success     bool      `json:"success"`
	Message     string    `json:"message"`
	DocumentID  string    `json:"document_id"`
	ChunksCount int       `json:"chunks_count"`
	FileInfo    *FileInfo `json:"file_info,omitempty"`
}

type IndexStatus struct {
	IsIndexed   bool      `json:"is_indexed"`
	DocumentID  *string   `json:"document_id"`
	ChunksCount int       `json:"chunks_count"`
	FileInfo    *FileInfo `json:"file_info,omitempty"`
}

type ClearResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type document struct {
	id    string
	index *VectorIndex
	info  FileInfo
}

// Service holds at most one indexed document and answers questions against
// it. Uploading replaces the current document.
type Service struct {
	mu       sync.RWMutex
	current  *document
	embedder Embedder
	chat     chat.Service
	history  *history.Service
	cfg      config.RAGConfig
	now      func() time.Time
}

func NewService(embedder Embedder, chatService chat.Service, historyService *history.Service, cfg config.RAGConfig) *Service {
	return &Service{
		embedder: embedder,
		chat:     chatService,
		history:  historyService,
		cfg:      cfg,
		now:      time.Now,
	}
}

// UploadAndIndex extracts, splits and embeds the document, then makes it the
// current index.
func (s *Service) UploadAndIndex(ctx context.Context, filename string, data []byte, apiKey string) (*UploadResult, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	kind, err := KindOf(filename)
	if err != nil {
		return nil, err
	}
	text, err := ExtractText(filename, data)
	if err != nil {
		return nil, err
	}

	chunks := SplitText(text, s.cfg.ChunkSize, s.cfg.ChunkOverlap)
	log.Info().
		Str("component", logger.RAG).
		Str("filename", filename).
		Int("chunks", len(chunks)).
		Msg("Indexing uploaded document")

	vectors, err := s.embedder.Embed(ctx, apiKey, chunks)
	if err != nil {
		log.Error().Str("component", logger.RAG).Err(err).Str("filename", filename).Msg("Failed to embed document")
		return nil, fmt.Errorf("failed to index document: %w", err)
	}

	doc := &document{
		id:    uuid.New().String(),
		index: NewVectorIndex(chunks, vectors),
		info: FileInfo{
			Filename:   filename,
			FileType:   string(kind),
			SizeBytes:  int64(len(data)),
			UploadedAt: s.now().UTC(),
		},
	}

	s.mu.Lock()
	s.current = doc
	s.mu.Unlock()

	info := doc.info
	if s.history != nil {
		if err := s.history.Record(ctx, history.FileRecord{
			DocumentID:      doc.id,
			Filename:        filename,
			FileType:        doc.info.FileType,
			ChunksCount:     len(chunks),
			UploadTimestamp: doc.info.UploadedAt,
		}); err != nil {
			log.Warn().Str("component", logger.RAG).Err(err).Msg("Document indexed but history was not recorded")
		}
	}

	return &UploadResult{
		Success:     true,
		Message:     fmt.Sprintf("File indexed successfully. Extracted %d chunks from %s", len(chunks), filename),
		DocumentID:  doc.id,
		ChunksCount: len(chunks),
		FileInfo:    &info,
	}, nil
}

// StreamChat answers req against the current document. ErrNotIndexed is
// returned before anything is emitted when no document is indexed.
func (s *Service) StreamChat(ctx context.Context, req models.RAGChatRequest, emit chat.EmitFunc) error {
	s.mu.RLock()
	doc := s.current
	s.mu.RUnlock()

	if doc == nil {
		return ErrNotIndexed
	}

	query, err := s.embedder.Embed(ctx, req.APIKey, []string{req.UserMessage})
	if err != nil {
		return fmt.Errorf("failed to embed query: %w", err)
	}
	if len(query) != 1 {
		return fmt.Errorf("failed to embed query: expected 1 vector, got %d", len(query))
	}

	matches := doc.index.Search(query[0], s.cfg.TopK)
	log.Debug().
		Str("component", logger.RAG).
		Str("document_id", doc.id).
		Int("matches", len(matches)).
		Msg("Retrieved context for question")

	prompt := chat.NewSystemPrompt(req.SystemMessage)
	prompt.SetContext(Texts(matches))

	return s.chat.StreamMessages(ctx, req.APIKey, chat.RetrievalMessages(prompt, req.UserMessage), emit)
}

func (s *Service) Status() IndexStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.current == nil {
		return IndexStatus{}
	}

	id := s.current.id
	info := s.current.info
	return IndexStatus{
		IsIndexed:   true,
		DocumentID:  &id,
		ChunksCount: s.current.index.Len(),
		FileInfo:    &info,
	}
}

// CurrentDocumentID returns the id of the indexed document, or "".
func (s *Service) CurrentDocumentID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.current == nil {
		return ""
	}
	return s.current.id
}

func (s *Service) Clear() ClearResult {
	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()

	log.Info().Str("component", logger.RAG).Msg("Cleared document index")
	return ClearResult{Success: true, Message: "Index cleared successfully"}
}
