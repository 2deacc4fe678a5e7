package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/sawanruparel/web-presence/access-api/v1/models"
	"github.com/sawanruparel/web-presence/access-api/v1/utils"
)

// Pinger checks the database connection
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler serves GET /health
type HealthHandler struct {
	db      Pinger
	version string
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(db Pinger, version string) *HealthHandler {
	return &HealthHandler{db: db, version: version}
}

// HealthCheck reports ok when the database answers a ping
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	resp := models.HealthResponse{Status: "ok", Version: h.version, Timestamp: time.Now().UTC()}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.db.PingContext(ctx); err != nil {
		slog.Error("Health check failed", "error", err)
		resp.Status = "unhealthy"
		utils.RespondWithJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, resp)
}
