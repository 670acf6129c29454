package config

// RAGConfig holds chunking and retrieval settings for document chat.
type RAGConfig struct {
	ChunkSize      int
	ChunkOverlap   int
	TopK           int
	EmbeddingBatch int
}

func GetRAGConfig() RAGConfig {
	cfg := RAGConfig{
		ChunkSize:      parseEnvInt("RAG_CHUNK_SIZE", 1000),
		ChunkOverlap:   parseEnvInt("RAG_CHUNK_OVERLAP", 200),
		TopK:           parseEnvInt("RAG_TOP_K", 3),
		EmbeddingBatch: parseEnvInt("RAG_EMBEDDING_BATCH", 64),
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 1000
	}
	if cfg.ChunkOverlap < 0 || cfg.ChunkOverlap >= cfg.ChunkSize {
		cfg.ChunkOverlap = 0
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 3
	}
	if cfg.EmbeddingBatch <= 0 {
		cfg.EmbeddingBatch = 64
	}
	return cfg
}
