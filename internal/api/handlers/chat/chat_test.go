package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/deepgram/chatform/internal/config"
	chatsvc "github.com/deepgram/chatform/internal/services/chat"
	"github.com/deepgram/chatform/internal/services/chat/models"
	"github.com/deepgram/chatform/internal/services/rag"
	"github.com/deepgram/chatform/pkg/httpext"
	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockChatService mocks the chat service
type MockChatService struct {
	mock.Mock
	deltas []string
}

func (m *MockChatService) StreamChat(ctx context.Context, req models.ChatRequest, emit chatsvc.EmitFunc) error {
	args := m.Called(req)
	for _, d := range m.deltas {
		if err := emit(d); err != nil {
			return err
		}
	}
	return args.Error(0)
}

func (m *MockChatService) StreamMessages(ctx context.Context, apiKey string, messages []openai.ChatCompletionMessage, emit chatsvc.EmitFunc) error {
	args := m.Called(apiKey, messages)
	for _, d := range m.deltas {
		if err := emit(d); err != nil {
			return err
		}
	}
	return args.Error(0)
}

type constEmbedder struct{}

func (constEmbedder) Embed(_ context.Context, _ string, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

func encode(t *testing.T, v interface{}) *bytes.Buffer {
	t.Helper()
	var body bytes.Buffer
	if str, ok := v.(string); ok {
		body.WriteString(str)
	} else {
		require.NoError(t, json.NewEncoder(&body).Encode(v))
	}
	return &body
}

func TestHandleChat(t *testing.T) {
	tests := []struct {
		name           string
		requestBody    interface{}
		deltas         []string
		serviceErr     error
		expectCall     bool
		expectedStatus int
		expectedBody   string
		expectedError  string
	}{
		{
			name: "Valid request streams deltas",
			requestBody: map[string]interface{}{
				"system_message": "Be nice",
				"user_message":   "Hello!",
				"api_key":        "sk-test",
				"temperature":    0.5,
			},
			deltas:         []string{"Hi", " there"},
			expectCall:     true,
			expectedStatus: http.StatusOK,
			expectedBody:   "Hi there",
		},
		{
			name: "Empty stream is a success",
			requestBody: map[string]interface{}{
				"user_message": "Hello!",
				"api_key":      "sk-test",
			},
			expectCall:     true,
			expectedStatus: http.StatusOK,
		},
		{
			name:           "Invalid request - malformed JSON",
			requestBody:    "invalid json",
			expectedStatus: http.StatusBadRequest,
			expectedError:  "Invalid request format",
		},
		{
			name: "Invalid request - missing api key",
			requestBody: map[string]interface{}{
				"user_message": "Hello!",
			},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "Invalid request - temperature out of range",
			requestBody: map[string]interface{}{
				"user_message": "Hello!",
				"api_key":      "sk-test",
				"temperature":  3.5,
			},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "Provider failure before first byte",
			requestBody: map[string]interface{}{
				"user_message": "Hello!",
				"api_key":      "sk-bad",
			},
			serviceErr:     errors.New("invalid api key"),
			expectCall:     true,
			expectedStatus: http.StatusInternalServerError,
			expectedError:  "Failed to generate response",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &MockChatService{deltas: tt.deltas}
			if tt.expectCall {
				svc.On("StreamChat", mock.AnythingOfType("models.ChatRequest")).Return(tt.serviceErr)
			}

			req := httptest.NewRequest(http.MethodPost, "/api/chat", encode(t, tt.requestBody))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			HandleChat(svc, w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedStatus == http.StatusOK {
				assert.Equal(t, tt.expectedBody, w.Body.String())
				assert.Equal(t, "text/plain; charset=utf-8", w.Header().Get("Content-Type"))
			} else {
				var resp httpext.ErrorResponse
				require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
				if tt.expectedError != "" {
					assert.Equal(t, tt.expectedError, resp.Error)
				}
			}

			if tt.expectCall {
				svc.AssertExpectations(t)
			} else {
				svc.AssertNotCalled(t, "StreamChat", mock.Anything)
			}
		})
	}
}

func TestHandleChatPassesRequestThrough(t *testing.T) {
	svc := &MockChatService{}
	svc.On("StreamChat", mock.MatchedBy(func(req models.ChatRequest) bool {
		return req.SystemMessage == "sys" &&
			req.UserMessage == "user" &&
			req.Model == "gpt-4o" &&
			req.APIKey == "sk-test" &&
			req.Temperature != nil && *req.Temperature == 0
	})).Return(nil)

	body := encode(t, map[string]interface{}{
		"system_message": "sys",
		"user_message":   "user",
		"model":          "gpt-4o",
		"api_key":        "sk-test",
		"temperature":    0,
	})
	w := httptest.NewRecorder()
	HandleChat(svc, w, httptest.NewRequest(http.MethodPost, "/api/chat", body))

	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}

func TestHandleChatMidStreamFailureAborts(t *testing.T) {
	svc := &MockChatService{deltas: []string{"partial"}}
	svc.On("StreamChat", mock.Anything).Return(errors.New("connection reset"))

	body := encode(t, map[string]interface{}{"user_message": "Hello!", "api_key": "sk-test"})
	w := httptest.NewRecorder()

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		HandleChat(svc, w, httptest.NewRequest(http.MethodPost, "/api/chat", body))
	})
	assert.Equal(t, "partial", w.Body.String())
}

func TestHandleRAGChat(t *testing.T) {
	chatService := &MockChatService{deltas: []string{"From ", "the doc"}}
	chatService.On("StreamMessages", "sk-test", mock.Anything).Return(nil)

	ragService := rag.NewService(constEmbedder{}, chatService, nil, config.RAGConfig{ChunkSize: 100, TopK: 3, EmbeddingBatch: 8})
	body := map[string]interface{}{"user_message": "What does it say?", "api_key": "sk-test"}

	t.Run("no index", func(t *testing.T) {
		w := httptest.NewRecorder()
		HandleRAGChat(ragService, w, httptest.NewRequest(http.MethodPost, "/api/rag-chat", encode(t, body)))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		var resp httpext.ErrorResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.Equal(t, "No data source indexed", resp.Error)
		assert.NotEmpty(t, resp.Detail)
	})

	t.Run("indexed", func(t *testing.T) {
		_, err := ragService.UploadAndIndex(context.Background(), "doc.txt", []byte("some document text"), "sk-test")
		require.NoError(t, err)

		w := httptest.NewRecorder()
		HandleRAGChat(ragService, w, httptest.NewRequest(http.MethodPost, "/api/rag-chat", encode(t, body)))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "From the doc", w.Body.String())
		chatService.AssertExpectations(t)
	})

	t.Run("missing user message", func(t *testing.T) {
		w := httptest.NewRecorder()
		HandleRAGChat(ragService, w, httptest.NewRequest(http.MethodPost, "/api/rag-chat", encode(t, map[string]interface{}{"api_key": "sk-test"})))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
