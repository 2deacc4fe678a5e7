package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/sawanruparel/web-presence/access-api/internal/config"
)

// CORSConfig holds CORS settings
type CORSConfig struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	AllowCredentials bool
	MaxAge           int
}

// NewCORSConfig builds the CORS settings from service config
func NewCORSConfig(cfg config.ServiceConfig) CORSConfig {
	var origins []string
	wildcard := false
	for _, o := range strings.Split(cfg.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
			wildcard = wildcard || o == "*"
		}
	}
	return CORSConfig{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-API-Key", "X-Requested-With", "Accept", "Origin"},
		AllowCredentials: !wildcard,
		MaxAge:           cfg.CORSMaxAge,
	}
}

func (c CORSConfig) allowedOrigin(origin string) (string, bool) {
	for _, o := range c.AllowedOrigins {
		if o == "*" {
			return "*", true
		}
		if o == origin {
			return origin, true
		}
	}
	return "", false
}

// CORSMiddleware creates a CORS middleware
func CORSMiddleware(c CORSConfig) func(http.Handler) http.Handler {
	methods := strings.Join(c.AllowedMethods, ", ")
	headers := strings.Join(c.AllowedHeaders, ", ")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			w.Header().Add("Vary", "Origin")

			allowed, ok := "", false
			if origin != "" {
				allowed, ok = c.allowedOrigin(origin)
			}
			if ok {
				w.Header().Set("Access-Control-Allow-Origin", allowed)
				if methods != "" {
					w.Header().Set("Access-Control-Allow-Methods", methods)
				}
				if headers != "" {
					w.Header().Set("Access-Control-Allow-Headers", headers)
				}
				// credentials are never allowed for a wildcard origin
				if c.AllowCredentials && allowed != "*" {
					w.Header().Set("Access-Control-Allow-Credentials", "true")
				}
				if c.MaxAge > 0 {
					w.Header().Set("Access-Control-Max-Age", strconv.Itoa(c.MaxAge))
				}
			}

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.Header().Add("Vary", "Access-Control-Request-Method")
				w.Header().Add("Vary", "Access-Control-Request-Headers")
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
