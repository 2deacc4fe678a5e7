package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sawanruparel/web-presence/access-api/v1/services"
	"github.com/sawanruparel/web-presence/access-api/v1/utils"
)

// CatalogHandler serves /api/content-catalog
type CatalogHandler struct {
	catalog *services.CatalogService
}

// NewCatalogHandler creates a new catalog handler
func NewCatalogHandler(catalog *services.CatalogService) *CatalogHandler {
	return &CatalogHandler{catalog: catalog}
}

// GetCatalog handles GET /api/content-catalog and GET /api/content-catalog/{type}
func (h *CatalogHandler) GetCatalog(w http.ResponseWriter, r *http.Request) {
	resp, err := h.catalog.Catalog(r.Context(), chi.URLParam(r, "type"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, resp)
}
