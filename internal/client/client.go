package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/deepgram/chatform/internal/api/handlers"
	"github.com/deepgram/chatform/internal/api/handlers/files"
	"github.com/deepgram/chatform/internal/logger"
	"github.com/deepgram/chatform/internal/services/chat/models"
	"github.com/deepgram/chatform/internal/services/rag"
	"github.com/deepgram/chatform/internal/transcript"
	"github.com/deepgram/chatform/pkg/httpext"
	"github.com/rs/zerolog/log"
)

// APIError is returned for any non-success response from the server.
type APIError struct {
	StatusCode int
	Message    string
	Detail     string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if e.Detail != "" && e.Detail != msg {
		return fmt.Sprintf("server returned %d: %s (%s)", e.StatusCode, msg, e.Detail)
	}
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, msg)
}

// Client talks to the chat API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// New returns a client for the API served at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		// no overall timeout: responses are streamed for as long as they last
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) Health(ctx context.Context) (*handlers.HealthResponse, error) {
	var out handlers.HealthResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/health", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// OpenChat starts a plain chat and returns its streamed body.
func (c *Client) OpenChat(ctx context.Context, req models.ChatRequest) (transcript.Stream, error) {
	return c.openStream(ctx, "/api/chat", req)
}

// OpenRAGChat starts a document chat and returns its streamed body.
func (c *Client) OpenRAGChat(ctx context.Context, req models.RAGChatRequest) (transcript.Stream, error) {
	return c.openStream(ctx, "/api/rag-chat", req)
}

func (c *Client) openStream(ctx context.Context, path string, body interface{}) (transcript.Stream, error) {
	resp, err := c.do(ctx, http.MethodPost, path, body)
	if err != nil {
		return nil, err
	}
	if err := checkResponse(resp); err != nil {
		return nil, err
	}
	if resp.Body == nil || resp.Body == http.NoBody {
		return nil, transcript.ErrNoBody
	}

	log.Debug().Str("component", logger.CLIENT).Str("path", path).Msg("Response stream opened")
	return transcript.NewReaderStream(resp.Body), nil
}

// UploadDataFile uploads and indexes the file at path. The credential and
// file type are checked before anything is sent.
func (c *Client) UploadDataFile(ctx context.Context, path, apiKey string) (*rag.UploadResult, error) {
	if err := checkUpload(path, apiKey); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	return c.UploadDataReader(ctx, filepath.Base(path), f, apiKey)
}

// UploadDataReader uploads content read from r under filename.
func (c *Client) UploadDataReader(ctx context.Context, filename string, r io.Reader, apiKey string) (*rag.UploadResult, error) {
	if err := checkUpload(filename, apiKey); err != nil {
		return nil, err
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("api_key", apiKey); err != nil {
		return nil, fmt.Errorf("failed to build upload: %w", err)
	}
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("failed to build upload: %w", err)
	}
	if _, err := io.Copy(fw, r); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filename, err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to build upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/upload-data-file", &body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to upload %s: %w", filename, err)
	}
	defer resp.Body.Close()

	if err := checkResponse(resp); err != nil {
		return nil, err
	}

	var out rag.UploadResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode upload response: %w", err)
	}
	return &out, nil
}

func (c *Client) IndexStatus(ctx context.Context) (*rag.IndexStatus, error) {
	var out rag.IndexStatus
	if err := c.doJSON(ctx, http.MethodGet, "/api/data-file-indexing-status", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ClearIndex(ctx context.Context) (*rag.ClearResult, error) {
	var out rag.ClearResult
	if err := c.doJSON(ctx, http.MethodDelete, "/api/clear-data-file-index", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) FileHistory(ctx context.Context) (*files.HistoryResponse, error) {
	var out files.HistoryResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/file-history", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func checkUpload(filename, apiKey string) error {
	if apiKey == "" {
		return transcript.ErrMissingCredential
	}
	if _, err := rag.KindOf(filename); err != nil {
		return err
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach %s: %w", path, err)
	}
	return resp, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out interface{}) error {
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := checkResponse(resp); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", path, err)
	}
	return nil
}

// checkResponse turns a non-2xx response into an *APIError and closes the
// body.
func checkResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	defer resp.Body.Close()

	apiErr := &APIError{StatusCode: resp.StatusCode}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var body httpext.ErrorResponse
	if err := json.Unmarshal(data, &body); err == nil && body.Error != "" {
		apiErr.Message = body.Error
		apiErr.Detail = body.Detail
	} else {
		apiErr.Message = strings.TrimSpace(string(data))
	}

	log.Debug().Str("component", logger.CLIENT).Int("status", resp.StatusCode).Str("message", apiErr.Message).Msg("Server returned an error")
	return apiErr
}

// IsStatus reports whether err is an *APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}
