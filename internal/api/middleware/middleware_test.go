package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/deepgram/chatform/internal/config"
	"github.com/stretchr/testify/assert"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestRateLimit(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.RateLimitConfig
		hits     int
		wantLast int
	}{
		{
			name:     "disabled never limits",
			cfg:      config.RateLimitConfig{Enabled: false, MaxHits: 1, Window: time.Minute},
			hits:     3,
			wantLast: http.StatusOK,
		},
		{
			name:     "enabled limits after max hits",
			cfg:      config.RateLimitConfig{Enabled: true, MaxHits: 2, Window: time.Minute},
			hits:     3,
			wantLast: http.StatusTooManyRequests,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := RateLimitWithConfig("chat", tt.cfg)(okHandler)

			var last *httptest.ResponseRecorder
			for i := 0; i < tt.hits; i++ {
				req := httptest.NewRequest(http.MethodPost, "/api/chat", nil)
				req.RemoteAddr = fmt.Sprintf("10.1.1.1:%d", 1000+i)
				last = httptest.NewRecorder()
				handler.ServeHTTP(last, req)
			}
			assert.Equal(t, tt.wantLast, last.Code)
			if tt.wantLast == http.StatusTooManyRequests {
				assert.Equal(t, "60", last.Header().Get("Retry-After"))
			}
		})
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		forwarded  string
		want       string
	}{
		{name: "remote addr without port", remoteAddr: "192.0.2.1:5555", want: "192.0.2.1"},
		{name: "forwarded first hop", remoteAddr: "10.0.0.1:1", forwarded: "203.0.113.9, 10.0.0.1", want: "203.0.113.9"},
		{name: "unparseable remote addr", remoteAddr: "pipe", want: "pipe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			assert.Equal(t, tt.want, ClientIP(req))
		})
	}
}

func TestCORS(t *testing.T) {
	t.Run("preflight any origin", func(t *testing.T) {
		handler := CORS([]string{"*"})(okHandler)
		req := httptest.NewRequest(http.MethodOptions, "/api/chat", nil)
		req.Header.Set("Origin", "https://app.example")
		req.Header.Set("Access-Control-Request-Method", "POST")
		req.Header.Set("Access-Control-Request-Headers", "content-type")
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "https://app.example", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "content-type", w.Header().Get("Access-Control-Allow-Headers"))
		assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "DELETE")
	})

	t.Run("simple request passes through", func(t *testing.T) {
		handler := CORS([]string{"https://app.example"})(okHandler)
		req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
		req.Header.Set("Origin", "https://app.example/")
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "https://app.example/", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("unknown origin gets no allow header", func(t *testing.T) {
		handler := CORS([]string{"https://app.example"})(okHandler)
		req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
		req.Header.Set("Origin", "https://evil.example")
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})
}
