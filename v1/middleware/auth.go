package middleware

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sawanruparel/web-presence/access-api/v1/auth"
	"github.com/sawanruparel/web-presence/access-api/v1/models"
	"github.com/sawanruparel/web-presence/access-api/v1/utils"
)

// contextKey avoids collisions with context keys defined in other packages
type contextKey string

const claimsKey contextKey = "contentClaims"

// APIKeyHeader carries the admin API key
const APIKeyHeader = "X-API-Key"

// ContentTokenValidator checks a content token for a (type, slug) pair
type ContentTokenValidator interface {
	ValidateContentToken(token, contentType, slug string) (*auth.ContentClaims, error)
}

// ContentTokenMiddleware requires a bearer token bound to the {type} and {slug} route params
type ContentTokenMiddleware struct {
	validator ContentTokenValidator
}

// NewContentTokenMiddleware creates a new content token middleware
func NewContentTokenMiddleware(validator ContentTokenValidator) *ContentTokenMiddleware {
	return &ContentTokenMiddleware{validator: validator}
}

// Authenticate validates the bearer token and stores its claims in the request context
func (m *ContentTokenMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := utils.ExtractBearerToken(r)
		if err != nil {
			utils.RespondWithError(w, http.StatusUnauthorized, models.ErrorCodeTokenMalformed, err.Error())
			return
		}
		if token == "" {
			utils.RespondWithError(w, http.StatusUnauthorized, models.ErrorCodeTokenMissing, "access token required")
			return
		}

		contentType := chi.URLParam(r, "type")
		slug := chi.URLParam(r, "slug")

		claims, err := m.validator.ValidateContentToken(token, contentType, slug)
		if err != nil {
			code, message := tokenErrorCode(err)
			slog.Debug("Content token rejected", "type", contentType, "slug", slug, "error", err)
			utils.RespondWithError(w, http.StatusUnauthorized, code, message)
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey, claims)))
	})
}

func tokenErrorCode(err error) (models.ErrorCode, string) {
	switch {
	case errors.Is(err, auth.ErrTokenExpired):
		return models.ErrorCodeTokenExpired, "access token expired"
	case errors.Is(err, auth.ErrTokenContentMismatch):
		return models.ErrorCodeTokenMismatch, "access token is not valid for this content"
	default:
		return models.ErrorCodeTokenMalformed, "invalid access token"
	}
}

// GetClaimsFromContext returns the claims stored by ContentTokenMiddleware
func GetClaimsFromContext(ctx context.Context) (*auth.ContentClaims, bool) {
	claims, ok := ctx.Value(claimsKey).(*auth.ContentClaims)
	return claims, ok && claims != nil
}

// APIKeyMiddleware guards admin routes with a shared API key
func APIKeyMiddleware(apiKey string) func(http.Handler) http.Handler {
	expected := []byte(apiKey)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			provided := []byte(r.Header.Get(APIKeyHeader))
			if len(expected) == 0 || subtle.ConstantTimeCompare(provided, expected) != 1 {
				slog.Warn("Rejected admin request", "path", r.URL.Path, "remote", r.RemoteAddr)
				utils.RespondWithError(w, http.StatusUnauthorized, models.ErrorCodeInvalidCredentials, "invalid or missing api key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
