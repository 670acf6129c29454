package config

const (
	DefaultChatModel      = "gpt-4.1-mini"
	DefaultEmbeddingModel = "text-embedding-3-small"
	DefaultTemperature    = 0.7
)

// GetOpenAIBaseURL returns the OpenAI-compatible API base URL. Empty means
// the library default.
func GetOpenAIBaseURL() string {
	return GetEnvOrDefault("OPENAI_BASE_URL", "")
}

// GetDefaultChatModel returns the model used when a request names none.
func GetDefaultChatModel() string {
	return GetEnvOrDefault("OPENAI_DEFAULT_MODEL", DefaultChatModel)
}

// GetEmbeddingModel returns the model used to embed document chunks.
func GetEmbeddingModel() string {
	return GetEnvOrDefault("OPENAI_EMBEDDING_MODEL", DefaultEmbeddingModel)
}
