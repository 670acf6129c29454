package handlers

import (
	"net/http"

	"github.com/deepgram/chatform/internal/connections"
	"github.com/deepgram/chatform/pkg/httpext"
)

// HealthResponse is the body of GET /api/health.
type HealthResponse struct {
	Status        string `json:"status"`
	ActiveStreams int    `json:"active_streams"`
}

func HandleHealth(manager *connections.Manager, w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok"}
	if manager != nil {
		resp.ActiveStreams = manager.Count()
	}
	httpext.JsonResponse(w, http.StatusOK, resp)
}
