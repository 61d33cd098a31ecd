package handlers

import (
	"context"
	"net/http"
	"time"
)

// handleHealth pings storage; 503 when it does not answer
func (h *Handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	if h.Health == nil {
		respondOK(w, HealthResponse{Status: "ok", Storage: "unknown"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.Health.Ping(ctx); err != nil {
		h.Log.Warn("Health check failed", "error", err)
		respondJSON(w, http.StatusServiceUnavailable, envelope{
			Success: false,
			Data:    HealthResponse{Status: "unavailable", Storage: "down"},
		})
		return
	}
	respondOK(w, HealthResponse{Status: "ok", Storage: "up"})
}
