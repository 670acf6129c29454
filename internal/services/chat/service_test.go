package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	infraopenai "github.com/deepgram/chatform/internal/infrastructure/openai"
	"github.com/deepgram/chatform/internal/services/chat/models"
	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeChunks(w http.ResponseWriter, deltas ...string) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	for i, d := range deltas {
		chunk := openai.ChatCompletionStreamResponse{
			ID:      fmt.Sprintf("chunk-%d", i),
			Object:  "chat.completion.chunk",
			Created: 1,
			Model:   "gpt-4.1-mini",
			Choices: []openai.ChatCompletionStreamChoice{{
				Index: 0,
				Delta: openai.ChatCompletionStreamChoiceDelta{Content: d},
			}},
		}
		data, _ := json.Marshal(chunk)
		fmt.Fprintf(w, "data: %s\n\n", data)
		w.(http.Flusher).Flush()
	}
	fmt.Fprint(w, "data: [DONE]\n\n")
}

func newTestService(t *testing.T, handler http.HandlerFunc) *Implementation {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	svc, err := NewService(infraopenai.NewServiceWithBaseURL(srv.URL + "/v1"))
	require.NoError(t, err)
	return svc
}

func TestNewServiceRequiresOpenAI(t *testing.T) {
	_, err := NewService(nil)
	assert.Error(t, err)
}

func TestStreamChat(t *testing.T) {
	var captured openai.ChatCompletionRequest
	var authHeader string

	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		require.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"))
		authHeader = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		writeChunks(w, "Hel", "", "lo", " world")
	})

	temp := float32(0.3)
	var deltas []string
	err := svc.StreamChat(context.Background(), models.ChatRequest{
		SystemMessage: "Be brief",
		UserMessage:   "Hi",
		APIKey:        "sk-test",
		Temperature:   &temp,
	}, func(delta string) error {
		deltas = append(deltas, delta)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"Hel", "lo", " world"}, deltas)
	assert.Equal(t, "Bearer sk-test", authHeader)
	assert.Equal(t, "gpt-4.1-mini", captured.Model)
	assert.True(t, captured.Stream)
	assert.InDelta(t, 0.3, captured.Temperature, 1e-6)

	require.Len(t, captured.Messages, 4)
	assert.Equal(t, "Be brief", captured.Messages[0].Content)
	assert.Equal(t, LengthGuard, captured.Messages[1].Content)
	assert.Equal(t, MathGuard, captured.Messages[2].Content)
	assert.Equal(t, openai.ChatMessageRoleUser, captured.Messages[3].Role)
	assert.Equal(t, "Hi", captured.Messages[3].Content)
}

func TestStreamChatDefaults(t *testing.T) {
	var captured openai.ChatCompletionRequest
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		writeChunks(w)
	})

	err := svc.StreamChat(context.Background(), models.ChatRequest{
		UserMessage: "Hi",
		APIKey:      "sk-test",
		Model:       "gpt-4o",
	}, func(string) error { return nil })
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o", captured.Model)
	assert.InDelta(t, 0.7, captured.Temperature, 1e-6)
}

func TestStreamChatProviderError(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"Incorrect API key provided","type":"invalid_request_error"}}`)
	})

	called := false
	err := svc.StreamChat(context.Background(), models.ChatRequest{
		UserMessage: "Hi",
		APIKey:      "sk-bad",
	}, func(string) error {
		called = true
		return nil
	})
	require.Error(t, err)
	assert.False(t, called)

	var apiErr *openai.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.HTTPStatusCode)
}

func TestStreamChatEmitError(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		writeChunks(w, "a", "b", "c")
	})

	stop := errors.New("client went away")
	var deltas []string
	err := svc.StreamChat(context.Background(), models.ChatRequest{
		UserMessage: "Hi",
		APIKey:      "sk-test",
	}, func(delta string) error {
		deltas = append(deltas, delta)
		if len(deltas) == 2 {
			return stop
		}
		return nil
	})

	assert.ErrorIs(t, err, stop)
	assert.Equal(t, []string{"a", "b"}, deltas)
}

func TestStreamMessages(t *testing.T) {
	var captured openai.ChatCompletionRequest
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		writeChunks(w, "ok")
	})

	prompt := NewSystemPrompt("")
	prompt.SetContext([]string{"alpha", "beta"})

	var got strings.Builder
	err := svc.StreamMessages(context.Background(), "sk-test", RetrievalMessages(prompt, "What?"), func(delta string) error {
		got.WriteString(delta)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, "ok", got.String())
	require.Len(t, captured.Messages, 2)
	assert.Contains(t, captured.Messages[0].Content, "alpha\n\nbeta")
	assert.Equal(t, "What?", captured.Messages[1].Content)
}

func TestSystemPrompt(t *testing.T) {
	tests := []struct {
		name     string
		custom   string
		chunks   []string
		contains []string
		excludes []string
	}{
		{
			name:     "default prompt",
			chunks:   []string{"one", "two"},
			contains: []string{"You are a helpful assistant", "Context:\none\n\ntwo"},
		},
		{
			name:     "custom prompt",
			custom:   "  Answer like a pirate  ",
			chunks:   []string{"treasure"},
			contains: []string{"  Answer like a pirate  \n\nUse the following context", "treasure"},
			excludes: []string{"You are a helpful assistant"},
		},
		{
			name:     "whitespace custom prompt is kept",
			custom:   "   ",
			chunks:   []string{"map"},
			contains: []string{"   \n\nUse the following context", "map"},
			excludes: []string{"You are a helpful assistant"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prompt := NewSystemPrompt(tt.custom)
			prompt.SetContext(tt.chunks)
			for _, want := range tt.contains {
				assert.Contains(t, prompt.String(), want)
			}
			for _, unwanted := range tt.excludes {
				assert.NotContains(t, prompt.String(), unwanted)
			}
		})
	}
}
