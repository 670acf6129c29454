package handlers

import (
	"net/http"

	"github.com/deepgram/chatform/internal/api/handlers/chat"
	"github.com/deepgram/chatform/internal/api/handlers/files"
	"github.com/deepgram/chatform/internal/api/handlers/websocket"
	"github.com/deepgram/chatform/internal/api/middleware"
	"github.com/deepgram/chatform/internal/services"
	"github.com/gorilla/mux"
)

// RegisterRoutes mounts the chat API under /api.
func RegisterRoutes(router *mux.Router, services *services.Services, uploadMaxBytes int64) {
	api := router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		HandleHealth(services.GetConnectionManager(), w, r)
	}).Methods("GET")

	// Streaming chat routes
	api.Handle("/chat", middleware.RateLimit("chat")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		chat.HandleChat(services.GetChatService(), w, r)
	}))).Methods("POST")
	api.Handle("/rag-chat", middleware.RateLimit("rag_chat")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		chat.HandleRAGChat(services.GetRAGService(), w, r)
	}))).Methods("POST")
	api.Handle("/ws/chat", middleware.RateLimit("chat")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		websocket.HandleChatWebSocket(services.GetChatService(), services.GetRAGService(), services.GetConnectionManager(), w, r)
	}))).Methods("GET")

	// Document routes
	api.Handle("/upload-data-file", middleware.RateLimit("upload")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		files.HandleUpload(services.GetRAGService(), uploadMaxBytes, w, r)
	}))).Methods("POST")
	api.HandleFunc("/data-file-indexing-status", func(w http.ResponseWriter, r *http.Request) {
		files.HandleIndexStatus(services.GetRAGService(), w, r)
	}).Methods("GET")
	api.HandleFunc("/clear-data-file-index", func(w http.ResponseWriter, r *http.Request) {
		files.HandleClearIndex(services.GetRAGService(), w, r)
	}).Methods("DELETE")
	api.HandleFunc("/file-history", func(w http.ResponseWriter, r *http.Request) {
		files.HandleFileHistory(services.GetHistoryService(), services.GetRAGService(), w, r)
	}).Methods("GET")
}
