package handlers

import (
	"errors"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sawanruparel/web-presence/access-api/v1/auth"
	"github.com/sawanruparel/web-presence/access-api/v1/middleware"
	"github.com/sawanruparel/web-presence/access-api/v1/models"
	"github.com/sawanruparel/web-presence/access-api/v1/services"
	"github.com/sawanruparel/web-presence/access-api/v1/utils"
)

// ContentReader returns rendered content for a content item
type ContentReader interface {
	Get(contentType, slug string) (string, error)
}

// AccessHandler serves the public /auth endpoints
type AccessHandler struct {
	access  *services.AccessService
	content ContentReader
}

// NewAccessHandler creates a new access handler
func NewAccessHandler(access *services.AccessService, content ContentReader) *AccessHandler {
	return &AccessHandler{access: access, content: content}
}

// CheckAccess handles GET /auth/access/{type}/{slug}
func (h *AccessHandler) CheckAccess(w http.ResponseWriter, r *http.Request) {
	contentType := chi.URLParam(r, "type")
	slug := chi.URLParam(r, "slug")

	resp, err := h.access.CheckAccess(r.Context(), contentType, slug)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, resp)
}

// Verify handles POST /auth/verify
func (h *AccessHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req models.VerifyRequest
	if err := utils.DecodeJSONBody(w, r, &req); err != nil {
		utils.RespondWithErrorDetails(w, http.StatusBadRequest, models.ErrorCodeBadRequest, "invalid request body", err)
		return
	}
	if req.Type == "" || req.Slug == "" {
		utils.RespondWithError(w, http.StatusBadRequest, models.ErrorCodeBadRequest, "missing required fields: type and slug")
		return
	}

	cred, err := req.Credential()
	if err != nil {
		if errors.Is(err, models.ErrConflictingCredentials) {
			utils.RespondWithError(w, http.StatusBadRequest, models.ErrorCodeBadRequest, "provide either a password or an email, not both")
			return
		}
		utils.RespondWithErrorDetails(w, http.StatusBadRequest, models.ErrorCodeBadRequest, "invalid credential", err)
		return
	}

	result, err := h.access.VerifyAndIssue(r.Context(), req.Type, req.Slug, cred, services.RequestMeta{
		IPAddress: clientIP(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	if !result.Granted {
		utils.RespondWithJSON(w, http.StatusOK, models.VerifyResponse{
			Success:    false,
			AccessMode: result.AccessMode,
			Message:    result.Message,
		})
		return
	}

	expiresAt := result.ExpiresAt
	utils.RespondWithJSON(w, http.StatusOK, models.VerifyResponse{
		Success:    true,
		Token:      result.Token,
		AccessMode: result.AccessMode,
		ExpiresAt:  &expiresAt,
	})
}

// GetContent handles GET /auth/content/{type}/{slug}. It must run behind ContentTokenMiddleware.
func (h *AccessHandler) GetContent(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetClaimsFromContext(r.Context())
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, models.ErrorCodeTokenMissing, "access token required")
		return
	}

	html, err := h.content.Get(claims.ContentType, claims.Slug)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, contentResponse(claims, html))
}

func contentResponse(claims *auth.ContentClaims, html string) models.ContentResponse {
	return models.ContentResponse{
		Type:  claims.ContentType,
		Slug:  claims.Slug,
		HTML:  html,
		Email: claims.Email,
	}
}

// clientIP returns the host part of RemoteAddr. Behind a trusted proxy chi's
// RealIP middleware has already replaced it with the forwarded client address.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
