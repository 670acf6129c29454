package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	TransportHTTP      = "http"
	TransportWebSocket = "ws"
)

// ClientConfig is the chat CLI's configuration file.
type ClientConfig struct {
	APIURL        string   `yaml:"api_url"`
	APIKey        string   `yaml:"api_key"`
	Model         string   `yaml:"model"`
	SystemMessage string   `yaml:"system_message"`
	Temperature   *float32 `yaml:"temperature,omitempty"`
	// Transport is "http" (chunked response body) or "ws".
	Transport string `yaml:"transport"`
	// RetrievalPolicy is "fallback" or "reject"; see transcript.RetrievalPolicy.
	RetrievalPolicy string `yaml:"retrieval_policy"`
	// ClearIndexOnStart clears the server index at startup when no document
	// is passed on the command line.
	ClearIndexOnStart      bool          `yaml:"clear_index_on_start"`
	PreserveInputOnFailure bool          `yaml:"preserve_input_on_failure"`
	RequestTimeout         time.Duration `yaml:"request_timeout"`
	RenderMarkdown         bool          `yaml:"render_markdown"`
}

// DefaultClientConfig returns the settings used when no file exists.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		APIURL:          "http://localhost:8000",
		Model:           DefaultChatModel,
		SystemMessage:   "You are a helpful assistant.",
		Transport:       TransportHTTP,
		RetrievalPolicy: "fallback",
		RenderMarkdown:  true,
	}
}

// DefaultClientConfigPath returns the per-user config file location.
func DefaultClientConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".", "chatform.yaml")
	}
	return filepath.Join(dir, "chatform", "config.yaml")
}

// LoadClientConfig reads path over the defaults and applies environment
// overrides. A missing file yields the defaults.
func LoadClientConfig(path string) (ClientConfig, error) {
	cfg := DefaultClientConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse client config %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return cfg, fmt.Errorf("failed to read client config %s: %w", path, err)
	}

	cfg.applyEnv()
	return cfg, cfg.Validate()
}

func (c *ClientConfig) applyEnv() {
	c.APIURL = GetEnvOrDefault("CHATFORM_API_URL", c.APIURL)
	c.APIKey = GetEnvOrDefault("OPENAI_API_KEY", c.APIKey)
	c.Model = GetEnvOrDefault("CHATFORM_MODEL", c.Model)
}

// Validate checks enumerated fields.
func (c ClientConfig) Validate() error {
	if strings.TrimSpace(c.APIURL) == "" {
		return errors.New("api_url must not be empty")
	}
	switch c.Transport {
	case TransportHTTP, TransportWebSocket:
	default:
		return fmt.Errorf("unknown transport %q", c.Transport)
	}
	if c.Temperature != nil && (*c.Temperature < 0 || *c.Temperature > 2) {
		return fmt.Errorf("temperature %v out of range [0, 2]", *c.Temperature)
	}
	if c.RequestTimeout < 0 {
		return errors.New("request_timeout must not be negative")
	}
	return nil
}

// Save writes the config to path, creating parent directories.
func (c ClientConfig) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode client config: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}
