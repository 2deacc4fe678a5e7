package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sawanruparel/web-presence/access-api/internal/content"
	"github.com/sawanruparel/web-presence/access-api/v1/models"
	"github.com/sawanruparel/web-presence/access-api/v1/services"
	"github.com/sawanruparel/web-presence/access-api/v1/utils"
)

// respondServiceError maps domain errors onto HTTP status codes
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, services.ErrPolicyNotFound):
		utils.RespondWithError(w, http.StatusNotFound, models.ErrorCodePolicyNotFound, "no access policy for this content")
	case errors.Is(err, services.ErrEmailNotFound):
		utils.RespondWithError(w, http.StatusNotFound, models.ErrorCodeEmailNotFound, "email is not on the allowlist")
	case errors.Is(err, content.ErrContentNotFound), errors.Is(err, content.ErrInvalidContentPath):
		utils.RespondWithError(w, http.StatusNotFound, models.ErrorCodeContentNotFound, "content not found")
	case services.IsValidationError(err):
		utils.RespondWithError(w, http.StatusBadRequest, models.ErrorCodeValidation, validationMessage(err))
	case errors.Is(err, services.ErrConflict):
		utils.RespondWithError(w, http.StatusConflict, models.ErrorCodeConflict, "access rule already exists")
	case errors.Is(err, services.ErrStoreUnavailable):
		slog.Error("Access store unavailable", "error", err, "path", r.URL.Path, "method", r.Method)
		utils.RespondWithError(w, http.StatusServiceUnavailable, models.ErrorCodeStoreUnavailable, "access store unavailable")
	default:
		slog.Error("Request failed", "error", err, "path", r.URL.Path, "method", r.Method)
		utils.RespondWithError(w, http.StatusInternalServerError, models.ErrorCodeInternalError, "an unexpected error occurred")
	}
}

// validationMessage strips the sentinel prefix from a validation error
func validationMessage(err error) string {
	return strings.TrimPrefix(err.Error(), services.ErrValidation.Error()+": ")
}
