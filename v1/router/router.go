package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/sawanruparel/web-presence/access-api/internal/monitoring"
	"github.com/sawanruparel/web-presence/access-api/v1/handlers"
	"github.com/sawanruparel/web-presence/access-api/v1/middleware"
	"github.com/sawanruparel/web-presence/access-api/v1/models"
	"github.com/sawanruparel/web-presence/access-api/v1/utils"
)

// Handlers groups the HTTP handlers served by the router
type Handlers struct {
	Access  *handlers.AccessHandler
	Admin   *handlers.AdminHandler
	Catalog *handlers.CatalogHandler
	Health  *handlers.HealthHandler
}

// Options configures the router middleware
type Options struct {
	AdminAPIKey string
	CORS        middleware.CORSConfig

	// TrustProxyHeaders enables chi's RealIP so logged client addresses come from
	// X-Forwarded-For / X-Real-IP instead of the connection
	TrustProxyHeaders bool
}

// V1Router handles all V1 API route registration
type V1Router struct {
	handlers          Handlers
	tokenMiddleware   *middleware.ContentTokenMiddleware
	apiKeyMiddleware  func(http.Handler) http.Handler
	corsMiddleware    func(http.Handler) http.Handler
	trustProxyHeaders bool
}

// NewV1Router creates a new V1 router with all dependencies
func NewV1Router(h Handlers, validator middleware.ContentTokenValidator, opts Options) *V1Router {
	return &V1Router{
		handlers:          h,
		tokenMiddleware:   middleware.NewContentTokenMiddleware(validator),
		apiKeyMiddleware:  middleware.APIKeyMiddleware(opts.AdminAPIKey),
		corsMiddleware:    middleware.CORSMiddleware(opts.CORS),
		trustProxyHeaders: opts.TrustProxyHeaders,
	}
}

// Handler builds the chi mux with the shared middleware chain
func (rt *V1Router) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	if rt.trustProxyHeaders {
		r.Use(chimiddleware.RealIP)
	}
	r.Use(utils.PanicRecoveryMiddleware)
	r.Use(rt.corsMiddleware)
	r.Use(monitoring.HTTPMetricsMiddleware)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		utils.RespondWithError(w, http.StatusNotFound, models.ErrorCodeBadRequest, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		utils.RespondWithError(w, http.StatusMethodNotAllowed, models.ErrorCodeBadRequest, "method not allowed")
	})

	rt.RegisterRoutes(r)
	return r
}

// RegisterRoutes registers all V1 API routes on r
func (rt *V1Router) RegisterRoutes(r chi.Router) {
	r.Get("/health", rt.handlers.Health.HealthCheck)
	r.Method(http.MethodGet, "/metrics", monitoring.Handler())

	rt.registerPublicRoutes(r)
	rt.registerAdminRoutes(r)
}

// registerPublicRoutes registers the access discovery, verification and content routes
func (rt *V1Router) registerPublicRoutes(r chi.Router) {
	r.Route("/auth", func(r chi.Router) {
		r.Get("/access/{type}/{slug}", rt.handlers.Access.CheckAccess)
		r.Post("/verify", rt.handlers.Access.Verify)
		r.With(rt.tokenMiddleware.Authenticate).Get("/content/{type}/{slug}", rt.handlers.Access.GetContent)
	})
}

// registerAdminRoutes registers the API-key protected management routes
func (rt *V1Router) registerAdminRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(rt.apiKeyMiddleware)

		r.Route("/api/internal/access-rules", func(r chi.Router) {
			r.Get("/", rt.handlers.Admin.ListRules)
			r.Post("/", rt.handlers.Admin.CreateRule)
			r.Route("/{type}/{slug}", func(r chi.Router) {
				r.Get("/", rt.handlers.Admin.GetRule)
				r.Put("/", rt.handlers.Admin.UpdateRule)
				r.Delete("/", rt.handlers.Admin.DeleteRule)
				r.Post("/emails", rt.handlers.Admin.AddEmail)
				r.Delete("/emails/{email}", rt.handlers.Admin.RemoveEmail)
			})
		})
		r.Get("/api/internal/logs", rt.handlers.Admin.ListLogs)
		r.Get("/api/internal/stats", rt.handlers.Admin.Stats)

		r.Get("/api/content-catalog", rt.handlers.Catalog.GetCatalog)
		r.Get("/api/content-catalog/{type}", rt.handlers.Catalog.GetCatalog)
	})
}
