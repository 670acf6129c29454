package history

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/deepgram/chatform/internal/config"
	"github.com/deepgram/chatform/internal/infrastructure/redis"
	"github.com/deepgram/chatform/internal/logger"
	"github.com/rs/zerolog/log"
)

const historyKey = "chatform:file_history"

// FileRecord describes one indexed upload.
type FileRecord struct {
	DocumentID      string    `json:"document_id"`
	Filename        string    `json:"filename"`
	FileType        string    `json:"file_type"`
	ChunksCount     int       `json:"chunks_count"`
	UploadTimestamp time.Time `json:"upload_timestamp"`
	IsCurrent       bool      `json:"is_current"`
}

type HistoryStore interface {
	Push(ctx context.Context, record FileRecord) error
	List(ctx context.Context) ([]FileRecord, error)
}

type RedisStore struct {
	redisService *redis.Service
	limit        int
}

type MemoryStore struct {
	mu      sync.RWMutex
	records []FileRecord
	limit   int
}

type Service struct {
	store HistoryStore
}

func NewService(redisService *redis.Service) *Service {
	limit := config.GetFileHistoryLimit()

	var store HistoryStore
	if redisService != nil {

		// Test Redis connection
		ctx := context.Background()
		if err := redisService.Ping(ctx); err != nil {
			log.Warn().Str("component", logger.HISTORY).Err(err).Msg("Redis unavailable - keeping file history in memory")
			store = NewMemoryStore(limit)
		} else {
			store = &RedisStore{redisService: redisService, limit: limit}
		}
	} else {
		store = NewMemoryStore(limit)
	}

	return &Service{store: store}
}

// NewServiceWithStore wraps an explicit store.
func NewServiceWithStore(store HistoryStore) *Service {
	return &Service{store: store}
}

func NewMemoryStore(limit int) *MemoryStore {
	return &MemoryStore{limit: limit}
}

// Redis Store implementation
func (rs *RedisStore) Push(ctx context.Context, record FileRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}

	return rs.redisService.PushCapped(ctx, historyKey, string(data), rs.limit)
}

func (rs *RedisStore) List(ctx context.Context) ([]FileRecord, error) {
	entries, err := rs.redisService.Range(ctx, historyKey, 0, -1)
	if err != nil {
		return nil, err
	}

	records := make([]FileRecord, 0, len(entries))
	for _, entry := range entries {
		var record FileRecord
		if err := json.Unmarshal([]byte(entry), &record); err != nil {
			log.Warn().Str("component", logger.HISTORY).Err(err).Msg("Skipping malformed file history entry")
			continue
		}
		records = append(records, record)
	}
	return records, nil
}

// Memory Store implementation
func (ms *MemoryStore) Push(ctx context.Context, record FileRecord) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	ms.records = append([]FileRecord{record}, ms.records...)
	if ms.limit > 0 && len(ms.records) > ms.limit {
		ms.records = ms.records[:ms.limit]
	}
	return nil
}

func (ms *MemoryStore) List(ctx context.Context) ([]FileRecord, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	out := make([]FileRecord, len(ms.records))
	copy(out, ms.records)
	return out, nil
}

// Record stores an upload. The stored copy never carries IsCurrent.
func (s *Service) Record(ctx context.Context, record FileRecord) error {
	record.IsCurrent = false
	if err := s.store.Push(ctx, record); err != nil {
		return fmt.Errorf("failed to record file history: %w", err)
	}

	log.Info().
		Str("component", logger.HISTORY).
		Str("document_id", record.DocumentID).
		Str("filename", record.Filename).
		Msg("Recorded upload in file history")
	return nil
}

// List returns uploads newest first, marking the one whose id matches
// currentID.
func (s *Service) List(ctx context.Context, currentID string) ([]FileRecord, error) {
	records, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list file history: %w", err)
	}

	for i := range records {
		records[i].IsCurrent = currentID != "" && records[i].DocumentID == currentID
	}
	return records, nil
}
