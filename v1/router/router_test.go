package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sawanruparel/web-presence/access-api/internal/config"
	"github.com/sawanruparel/web-presence/access-api/internal/content"
	"github.com/sawanruparel/web-presence/access-api/v1/auth"
	"github.com/sawanruparel/web-presence/access-api/v1/database"
	"github.com/sawanruparel/web-presence/access-api/v1/handlers"
	"github.com/sawanruparel/web-presence/access-api/v1/middleware"
	"github.com/sawanruparel/web-presence/access-api/v1/models"
	"github.com/sawanruparel/web-presence/access-api/v1/services"
	"github.com/sawanruparel/web-presence/access-api/v1/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const testAPIKey = "test-admin-key"

type testServer struct {
	handler http.Handler
	db      *gorm.DB
	logger  *services.AccessLogger
}

func newTestServer(t *testing.T) *testServer {
	return newTestServerWithProxy(t, false)
}

func newTestServerWithProxy(t *testing.T, trustProxyHeaders bool) *testServer {
	db := testutil.SetupSQLiteTestDB(t)
	types := config.NewContentTypes(config.DefaultContentTypes)

	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "ideas"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ideas", "local-first-ai.html"), []byte("<h1>Local-first AI</h1>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ideas", "sample-protected-idea.html"), []byte("<h1>Secret</h1>"), 0o644))

	ruleRepo := database.NewGormRuleRepository(db, time.Second)
	logRepo := database.NewGormAccessLogRepository(db, time.Second)

	tokenCfg := auth.TokenConfig{Secret: []byte("0123456789abcdef0123456789abcdef"), Issuer: "access-api", Validity: config.DefaultTokenValidity}
	issuer, err := auth.NewTokenIssuer(tokenCfg)
	require.NoError(t, err)
	validator, err := auth.NewTokenValidator(tokenCfg)
	require.NoError(t, err)

	logger := services.NewAccessLogger(logRepo, nil)
	accessService := services.NewAccessService(ruleRepo, issuer, validator, logger)
	provider := content.NewProvider(dir, types)

	sqlDB, err := db.DB()
	require.NoError(t, err)

	h := Handlers{
		Access:  handlers.NewAccessHandler(accessService, provider),
		Admin:   handlers.NewAdminHandler(services.NewRuleService(ruleRepo, types, bcrypt.MinCost), services.NewLogService(logRepo)),
		Catalog: handlers.NewCatalogHandler(services.NewCatalogService(ruleRepo, provider, types)),
		Health:  handlers.NewHealthHandler(sqlDB, "test"),
	}
	cors := middleware.NewCORSConfig(config.ServiceConfig{AllowedOrigins: "http://localhost:5173", CORSMaxAge: 60})
	srv := &testServer{
		handler: NewV1Router(h, accessService, Options{AdminAPIKey: testAPIKey, CORS: cors, TrustProxyHeaders: trustProxyHeaders}).Handler(),
		db:      db,
		logger:  logger,
	}
	t.Cleanup(func() { _ = logger.Close(context.Background()) })

	srv.admin(t, http.MethodPost, "/api/internal/access-rules", models.CreateAccessRuleRequest{
		Type: "ideas", Slug: "local-first-ai", AccessMode: models.AccessModeOpen,
	}, http.StatusCreated)
	srv.admin(t, http.MethodPost, "/api/internal/access-rules", map[string]interface{}{
		"type": "ideas", "slug": "sample-protected-idea", "accessMode": "password", "password": "correct-pw",
	}, http.StatusCreated)
	srv.admin(t, http.MethodPost, "/api/internal/access-rules", map[string]interface{}{
		"type": "publications", "slug": "decisionrecord-io", "accessMode": "email-list", "allowedEmails": []string{"Admin@Example.com"},
	}, http.StatusCreated)
	return srv
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	return w
}

func (s *testServer) admin(t *testing.T, method, path string, body interface{}, status int) *httptest.ResponseRecorder {
	t.Helper()
	w := s.do(t, method, path, body, map[string]string{middleware.APIKeyHeader: testAPIKey})
	require.Equal(t, status, w.Code, w.Body.String())
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)

	w := srv.do(t, http.MethodGet, "/health", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[models.HealthResponse](t, w)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "test", resp.Version)
}

func TestOpenContentFlow(t *testing.T) {
	srv := newTestServer(t)

	w := srv.do(t, http.MethodGet, "/auth/access/ideas/local-first-ai", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	req := decode[models.AccessRequirementsResponse](t, w)
	assert.Equal(t, models.AccessModeOpen, req.AccessMode)
	assert.False(t, req.RequiresPassword)
	assert.False(t, req.RequiresEmail)

	w = srv.do(t, http.MethodPost, "/auth/verify", map[string]string{"type": "ideas", "slug": "local-first-ai"}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	verify := decode[models.VerifyResponse](t, w)
	require.True(t, verify.Success)
	require.NotNil(t, verify.ExpiresAt)

	w = srv.do(t, http.MethodGet, "/auth/content/ideas/local-first-ai", nil, map[string]string{"Authorization": "Bearer " + verify.Token})
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[models.ContentResponse](t, w)
	assert.Equal(t, "<h1>Local-first AI</h1>", body.HTML)
	assert.Equal(t, "local-first-ai", body.Slug)

	w = srv.do(t, http.MethodGet, "/auth/content/ideas/sample-protected-idea", nil, map[string]string{"Authorization": "Bearer " + verify.Token})
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, models.ErrorCodeTokenMismatch, decode[models.ErrorResponse](t, w).Code)

	w = srv.do(t, http.MethodGet, "/auth/content/ideas/local-first-ai", nil, nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, models.ErrorCodeTokenMissing, decode[models.ErrorResponse](t, w).Code)
}

func TestVerify(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name    string
		body    interface{}
		status  int
		success bool
		message string
		code    models.ErrorCode
	}{
		{"correct password", map[string]string{"type": "ideas", "slug": "sample-protected-idea", "password": "correct-pw"}, http.StatusOK, true, "", ""},
		{"wrong password", map[string]string{"type": "ideas", "slug": "sample-protected-idea", "password": "nope"}, http.StatusOK, false, "incorrect password", ""},
		{"allowed email", map[string]string{"type": "publications", "slug": "decisionrecord-io", "email": " ADMIN@example.com "}, http.StatusOK, true, "", ""},
		{"other email", map[string]string{"type": "publications", "slug": "decisionrecord-io", "email": "x@example.com"}, http.StatusOK, false, "not authorized", ""},
		{"no policy", map[string]string{"type": "notes", "slug": "never-configured", "password": "x"}, http.StatusNotFound, false, "", models.ErrorCodePolicyNotFound},
		{"both credentials", map[string]string{"type": "ideas", "slug": "sample-protected-idea", "password": "x", "email": "a@example.com"}, http.StatusBadRequest, false, "", models.ErrorCodeBadRequest},
		{"missing slug", map[string]string{"type": "ideas"}, http.StatusBadRequest, false, "", models.ErrorCodeBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := srv.do(t, http.MethodPost, "/auth/verify", tt.body, nil)
			require.Equal(t, tt.status, w.Code, w.Body.String())
			if tt.code != "" {
				assert.Equal(t, tt.code, decode[models.ErrorResponse](t, w).Code)
				return
			}
			resp := decode[models.VerifyResponse](t, w)
			assert.Equal(t, tt.success, resp.Success)
			assert.Equal(t, tt.message, resp.Message)
			assert.Equal(t, tt.success, resp.Token != "")
		})
	}

	w := srv.do(t, http.MethodPost, "/auth/verify", "not an object", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCheckAccess_NotFound(t *testing.T) {
	srv := newTestServer(t)

	w := srv.do(t, http.MethodGet, "/auth/access/notes/missing", nil, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, models.ErrorCodePolicyNotFound, decode[models.ErrorResponse](t, w).Code)
}

func TestStoreUnavailable(t *testing.T) {
	srv := newTestServer(t)
	sqlDB, err := srv.db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	w := srv.do(t, http.MethodGet, "/auth/access/ideas/local-first-ai", nil, nil)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, models.ErrorCodeStoreUnavailable, decode[models.ErrorResponse](t, w).Code)

	w = srv.do(t, http.MethodPost, "/auth/verify", map[string]string{"type": "ideas", "slug": "local-first-ai"}, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = srv.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestAdminRequiresAPIKey(t *testing.T) {
	srv := newTestServer(t)

	for _, path := range []string{"/api/internal/access-rules", "/api/internal/logs", "/api/internal/stats", "/api/content-catalog"} {
		w := srv.do(t, http.MethodGet, path, nil, map[string]string{middleware.APIKeyHeader: "wrong"})
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
		assert.Equal(t, "invalid or missing api key", decode[models.ErrorResponse](t, w).Error)
	}
}

func TestAdminRuleLifecycle(t *testing.T) {
	srv := newTestServer(t)

	w := srv.admin(t, http.MethodGet, "/api/internal/access-rules/ideas/sample-protected-idea", nil, http.StatusOK)
	assert.NotContains(t, w.Body.String(), "correct-pw")
	assert.NotContains(t, w.Body.String(), "passwordHash")
	assert.True(t, decode[models.AccessRuleResponse](t, w).HasPassword)

	w = srv.admin(t, http.MethodGet, "/api/internal/access-rules?type=ideas", nil, http.StatusOK)
	assert.Equal(t, 2, decode[models.ListAccessRulesResponse](t, w).Count)

	w = srv.admin(t, http.MethodPost, "/api/internal/access-rules", map[string]string{"type": "ideas", "slug": "local-first-ai", "accessMode": "open"}, http.StatusConflict)
	assert.Equal(t, models.ErrorCodeConflict, decode[models.ErrorResponse](t, w).Code)

	w = srv.admin(t, http.MethodPost, "/api/internal/access-rules", map[string]string{"type": "notes", "slug": "x", "accessMode": "email-list"}, http.StatusBadRequest)
	assert.Contains(t, decode[models.ErrorResponse](t, w).Error, "email list must not be empty")

	w = srv.admin(t, http.MethodPut, "/api/internal/access-rules/ideas/local-first-ai", map[string]interface{}{"accessMode": "password", "password": "new-pw"}, http.StatusOK)
	assert.Equal(t, models.AccessModePassword, decode[models.AccessRuleResponse](t, w).AccessMode)

	w = srv.do(t, http.MethodPost, "/auth/verify", map[string]string{"type": "ideas", "slug": "local-first-ai", "password": "new-pw"}, nil)
	assert.True(t, decode[models.VerifyResponse](t, w).Success)

	w = srv.admin(t, http.MethodPost, "/api/internal/access-rules/publications/decisionrecord-io/emails", map[string]string{"email": "new@example.com"}, http.StatusOK)
	assert.ElementsMatch(t, []string{"admin@example.com", "new@example.com"}, decode[models.AccessRuleResponse](t, w).AllowedEmails)

	w = srv.admin(t, http.MethodDelete, "/api/internal/access-rules/publications/decisionrecord-io/emails/admin@example.com", nil, http.StatusOK)
	assert.Equal(t, []string{"new@example.com"}, decode[models.AccessRuleResponse](t, w).AllowedEmails)

	srv.admin(t, http.MethodDelete, "/api/internal/access-rules/publications/decisionrecord-io/emails/admin@example.com", nil, http.StatusNotFound)
	srv.admin(t, http.MethodDelete, "/api/internal/access-rules/publications/decisionrecord-io/emails/new@example.com", nil, http.StatusBadRequest)

	srv.admin(t, http.MethodDelete, "/api/internal/access-rules/ideas/local-first-ai", nil, http.StatusNoContent)
	srv.admin(t, http.MethodGet, "/api/internal/access-rules/ideas/local-first-ai", nil, http.StatusNotFound)

	w = srv.do(t, http.MethodGet, "/auth/access/ideas/local-first-ai", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdminLogsAndStats(t *testing.T) {
	srv := newTestServer(t)

	srv.do(t, http.MethodPost, "/auth/verify", map[string]string{"type": "ideas", "slug": "sample-protected-idea", "password": "nope"}, map[string]string{"User-Agent": "router-test"})
	srv.do(t, http.MethodPost, "/auth/verify", map[string]string{"type": "ideas", "slug": "sample-protected-idea", "password": "correct-pw"}, nil)
	srv.do(t, http.MethodPost, "/auth/verify", map[string]string{"type": "publications", "slug": "decisionrecord-io", "email": "x@example.com"}, nil)
	require.NoError(t, srv.logger.Close(context.Background()))

	w := srv.admin(t, http.MethodGet, "/api/internal/logs?failed=true", nil, http.StatusOK)
	logs := decode[models.AccessLogsResponse](t, w)
	require.Len(t, logs.Logs, 2)
	assert.Equal(t, int64(2), logs.Pagination.Total)
	assert.NotContains(t, w.Body.String(), "nope")

	w = srv.admin(t, http.MethodGet, "/api/internal/logs?type=ideas&slug=sample-protected-idea&limit=1&page=2", nil, http.StatusOK)
	logs = decode[models.AccessLogsResponse](t, w)
	require.Len(t, logs.Logs, 1)
	assert.True(t, logs.Pagination.HasPrev)

	today := time.Now().UTC().Format("2006-01-02")
	w = srv.admin(t, http.MethodGet, "/api/internal/logs?start="+today+"&end="+today, nil, http.StatusOK)
	assert.Len(t, decode[models.AccessLogsResponse](t, w).Logs, 3)

	srv.admin(t, http.MethodGet, "/api/internal/logs?limit=abc", nil, http.StatusBadRequest)
	srv.admin(t, http.MethodGet, "/api/internal/logs?limit=10&page=9223372036854775807", nil, http.StatusBadRequest)
	srv.admin(t, http.MethodGet, "/api/internal/logs?start=yesterday", nil, http.StatusBadRequest)

	w = srv.admin(t, http.MethodGet, "/api/internal/stats", nil, http.StatusOK)
	stats := decode[models.AccessStats](t, w)
	assert.Equal(t, int64(3), stats.TotalAttempts)
	assert.Equal(t, int64(1), stats.Granted)
	assert.Equal(t, int64(2), stats.ByCredentialType[models.CredentialTypePassword])
}

func TestForwardedClientAddress(t *testing.T) {
	tests := []struct {
		name   string
		trust  bool
		wantIP string
	}{
		{name: "HeadersIgnoredByDefault", trust: false, wantIP: "192.0.2.1"},
		{name: "HeadersUsedBehindTrustedProxy", trust: true, wantIP: "203.0.113.7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServerWithProxy(t, tt.trust)

			srv.do(t, http.MethodPost, "/auth/verify", map[string]string{"type": "ideas", "slug": "local-first-ai"},
				map[string]string{"X-Forwarded-For": "203.0.113.7"})
			require.NoError(t, srv.logger.Close(context.Background()))

			logs := decode[models.AccessLogsResponse](t, srv.admin(t, http.MethodGet, "/api/internal/logs", nil, http.StatusOK))
			require.Len(t, logs.Logs, 1)
			require.NotNil(t, logs.Logs[0].IPAddress)
			assert.Equal(t, tt.wantIP, *logs.Logs[0].IPAddress)
		})
	}
}

func TestCatalog(t *testing.T) {
	srv := newTestServer(t)

	w := srv.admin(t, http.MethodGet, "/api/content-catalog/ideas", nil, http.StatusOK)
	catalog := decode[models.CatalogResponse](t, w)
	require.Equal(t, 2, catalog.Count)
	assert.Equal(t, "open", catalog.Items[0].AccessMode)
	assert.True(t, catalog.Items[1].HasContent)

	w = srv.admin(t, http.MethodGet, "/api/content-catalog", nil, http.StatusOK)
	assert.Equal(t, 3, decode[models.CatalogResponse](t, w).Count)

	srv.admin(t, http.MethodGet, "/api/content-catalog/videos", nil, http.StatusBadRequest)
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t)

	w := srv.do(t, http.MethodOptions, "/auth/verify", nil, map[string]string{
		"Origin":                        "http://localhost:5173",
		"Access-Control-Request-Method": "POST",
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
}
