package files

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/deepgram/chatform/internal/config"
	"github.com/deepgram/chatform/internal/services/chat"
	"github.com/deepgram/chatform/internal/services/chat/models"
	"github.com/deepgram/chatform/internal/services/history"
	"github.com/deepgram/chatform/internal/services/rag"
	"github.com/deepgram/chatform/pkg/httpext"
	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type constEmbedder struct{}

func (constEmbedder) Embed(_ context.Context, _ string, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1}
	}
	return out, nil
}

type noopChat struct{}

func (noopChat) StreamChat(context.Context, models.ChatRequest, chat.EmitFunc) error { return nil }
func (noopChat) StreamMessages(context.Context, string, []openai.ChatCompletionMessage, chat.EmitFunc) error {
	return nil
}

func newServices() (*rag.Service, *history.Service) {
	hist := history.NewServiceWithStore(history.NewMemoryStore(10))
	return rag.NewService(constEmbedder{}, noopChat{}, hist, config.RAGConfig{ChunkSize: 4, TopK: 1, EmbeddingBatch: 8}), hist
}

func multipartBody(t *testing.T, filename string, content []byte, apiKey string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if apiKey != "" {
		require.NoError(t, mw.WriteField("api_key", apiKey))
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &body, mw.FormDataContentType()
}

func TestHandleUpload(t *testing.T) {
	tests := []struct {
		name           string
		filename       string
		content        []byte
		apiKey         string
		maxBytes       int64
		expectedStatus int
		expectedError  string
	}{
		{
			name:           "Valid text upload",
			filename:       "notes.txt",
			content:        []byte("abcdefghij"),
			apiKey:         "sk-test",
			expectedStatus: http.StatusOK,
		},
		{
			name:           "Unsupported file type",
			filename:       "image.png",
			content:        []byte("png"),
			apiKey:         "sk-test",
			expectedStatus: http.StatusBadRequest,
			expectedError:  "Invalid data source",
		},
		{
			name:           "Empty document",
			filename:       "empty.txt",
			content:        []byte("   "),
			apiKey:         "sk-test",
			expectedStatus: http.StatusBadRequest,
			expectedError:  "Invalid data source",
		},
		{
			name:           "Missing api key",
			filename:       "notes.txt",
			content:        []byte("abc"),
			expectedStatus: http.StatusBadRequest,
			expectedError:  "Invalid request",
		},
		{
			name:           "Missing file",
			apiKey:         "sk-test",
			expectedStatus: http.StatusBadRequest,
			expectedError:  "Missing file",
		},
		{
			name:           "File too large",
			filename:       "big.txt",
			content:        bytes.Repeat([]byte("x"), 8192),
			apiKey:         "sk-test",
			maxBytes:       1024,
			expectedStatus: http.StatusRequestEntityTooLarge,
			expectedError:  "File too large",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ragService, _ := newServices()
			body, contentType := multipartBody(t, tt.filename, tt.content, tt.apiKey)

			req := httptest.NewRequest(http.MethodPost, "/api/upload-data-file", body)
			req.Header.Set("Content-Type", contentType)
			w := httptest.NewRecorder()

			HandleUpload(ragService, tt.maxBytes, w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedStatus == http.StatusOK {
				var result rag.UploadResult
				require.NoError(t, json.NewDecoder(w.Body).Decode(&result))
				assert.True(t, result.Success)
				assert.Equal(t, 3, result.ChunksCount)
				assert.True(t, ragService.Status().IsIndexed)
				return
			}

			var resp httpext.ErrorResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
			assert.Equal(t, tt.expectedError, resp.Error)
			assert.False(t, ragService.Status().IsIndexed)
		})
	}
}

func TestHandleUploadNotMultipart(t *testing.T) {
	ragService, _ := newServices()
	req := httptest.NewRequest(http.MethodPost, "/api/upload-data-file", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	HandleUpload(ragService, 0, w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStatusClearAndHistory(t *testing.T) {
	ragService, hist := newServices()

	w := httptest.NewRecorder()
	HandleIndexStatus(ragService, w, httptest.NewRequest(http.MethodGet, "/api/data-file-indexing-status", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"is_indexed":false,"document_id":null,"chunks_count":0}`, w.Body.String())

	first, err := ragService.UploadAndIndex(context.Background(), "a.txt", []byte("first doc"), "sk-test")
	require.NoError(t, err)
	second, err := ragService.UploadAndIndex(context.Background(), "b.txt", []byte("second"), "sk-test")
	require.NoError(t, err)

	w = httptest.NewRecorder()
	HandleIndexStatus(ragService, w, httptest.NewRequest(http.MethodGet, "/api/data-file-indexing-status", nil))
	var status rag.IndexStatus
	require.NoError(t, json.NewDecoder(w.Body).Decode(&status))
	assert.True(t, status.IsIndexed)
	require.NotNil(t, status.DocumentID)
	assert.Equal(t, second.DocumentID, *status.DocumentID)
	require.NotNil(t, status.FileInfo)
	assert.Equal(t, "b.txt", status.FileInfo.Filename)

	w = httptest.NewRecorder()
	HandleFileHistory(hist, ragService, w, httptest.NewRequest(http.MethodGet, "/api/file-history", nil))
	var historyResp HistoryResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&historyResp))
	assert.True(t, historyResp.Success)
	require.Len(t, historyResp.FileHistory, 2)
	assert.Equal(t, second.DocumentID, historyResp.FileHistory[0].DocumentID)
	assert.True(t, historyResp.FileHistory[0].IsCurrent)
	assert.Equal(t, first.DocumentID, historyResp.FileHistory[1].DocumentID)
	assert.False(t, historyResp.FileHistory[1].IsCurrent)

	w = httptest.NewRecorder()
	HandleClearIndex(ragService, w, httptest.NewRequest(http.MethodDelete, "/api/clear-data-file-index", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"message":"Index cleared successfully"}`, w.Body.String())
	assert.False(t, ragService.Status().IsIndexed)

	w = httptest.NewRecorder()
	HandleFileHistory(hist, ragService, w, httptest.NewRequest(http.MethodGet, "/api/file-history", nil))
	require.NoError(t, json.NewDecoder(w.Body).Decode(&historyResp))
	for _, f := range historyResp.FileHistory {
		assert.False(t, f.IsCurrent)
	}
}

func TestFileHistoryWireFormat(t *testing.T) {
	ragService, hist := newServices()
	_, err := ragService.UploadAndIndex(context.Background(), "a.txt", []byte("hi"), "sk-test")
	require.NoError(t, err)

	w := httptest.NewRecorder()
	HandleFileHistory(hist, ragService, w, httptest.NewRequest(http.MethodGet, "/api/file-history", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.ElementsMatch(t, []string{"success", "file_history"}, keys(body))
	assert.JSONEq(t, `true`, string(body["success"]))

	var records []map[string]interface{}
	require.NoError(t, json.Unmarshal(body["file_history"], &records))
	require.Len(t, records, 1)
	assert.ElementsMatch(t,
		[]string{"document_id", "filename", "file_type", "chunks_count", "upload_timestamp", "is_current"},
		keys(records[0]))
	assert.Equal(t, "a.txt", records[0]["filename"])
	assert.Equal(t, "txt", records[0]["file_type"])
	assert.Equal(t, float64(1), records[0]["chunks_count"])
	assert.Equal(t, true, records[0]["is_current"])
}

func TestUploadResponseIncludesFileInfo(t *testing.T) {
	ragService, _ := newServices()
	body, contentType := multipartBody(t, "notes.txt", []byte("some notes"), "sk-test")
	req := httptest.NewRequest(http.MethodPost, "/api/upload-data-file", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()

	HandleUpload(ragService, 1<<20, w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var result rag.UploadResult
	require.NoError(t, json.NewDecoder(w.Body).Decode(&result))
	require.NotNil(t, result.FileInfo)
	assert.Equal(t, "notes.txt", result.FileInfo.Filename)
	assert.Equal(t, "txt", result.FileInfo.FileType)
	assert.Equal(t, int64(10), result.FileInfo.SizeBytes)
}

func keys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
