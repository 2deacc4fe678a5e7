package main

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sawanruparel/web-presence/access-api/internal/config"
	"github.com/sawanruparel/web-presence/access-api/internal/content"
	"github.com/sawanruparel/web-presence/access-api/internal/monitoring"
	"github.com/sawanruparel/web-presence/access-api/internal/redis"
	"github.com/sawanruparel/web-presence/access-api/v1/auth"
	"github.com/sawanruparel/web-presence/access-api/v1/database"
	"github.com/sawanruparel/web-presence/access-api/v1/handlers"
	"github.com/sawanruparel/web-presence/access-api/v1/middleware"
	"github.com/sawanruparel/web-presence/access-api/v1/router"
	"github.com/sawanruparel/web-presence/access-api/v1/services"
	"github.com/sawanruparel/web-presence/access-api/v1/utils"
)

const serviceName = "access-api"

func main() {
	// Load .env file if it exists (optional - fails silently if not found)
	_ = godotenv.Load()

	cfg, err := config.LoadConfig(serviceName, os.Args[1:])
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	utils.SetupLogging(cfg.Logging.Format, cfg.Logging.Level)
	slog.Info("Starting access API initialization", "environment", cfg.Environment, "version", cfg.Version)

	if err := monitoring.Initialize(monitoring.Config{
		ExporterType:   cfg.Metrics.Exporter,
		ServiceName:    serviceName,
		ServiceVersion: cfg.Version,
		OTLPEndpoint:   cfg.Metrics.OTLPEndpoint,
	}); err != nil {
		slog.Warn("Metrics disabled", "error", err)
	}

	contentTypes, err := config.LoadContentTypes(cfg.Content.TypesFile)
	if err != nil {
		slog.Error("Failed to load content types", "error", err, "path", cfg.Content.TypesFile)
		os.Exit(1)
	}

	gormDB, err := database.ConnectGormDB(database.NewDatabaseConfig(&cfg.DB))
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		slog.Error("Failed to get underlying sql.DB", "error", err)
		os.Exit(1)
	}

	var publisher services.AccessLogPublisher
	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient, err = redis.NewClient(&redis.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Stream:   cfg.Redis.Stream,
			MaxLen:   100000,
		})
		if err != nil {
			slog.Warn("Access log stream disabled", "error", err, "addr", cfg.Redis.Addr)
		} else {
			publisher = redisClient
			slog.Info("Mirroring access logs to Redis stream", "stream", cfg.Redis.Stream)
		}
	}

	tokenConfig := auth.TokenConfig{
		Secret:   []byte(cfg.Token.Secret),
		Issuer:   cfg.Token.Issuer,
		Validity: cfg.Token.Validity,
	}
	issuer, err := auth.NewTokenIssuer(tokenConfig)
	if err != nil {
		slog.Error("Invalid token configuration", "error", err)
		os.Exit(1)
	}
	validator, err := auth.NewTokenValidator(tokenConfig)
	if err != nil {
		slog.Error("Invalid token configuration", "error", err)
		os.Exit(1)
	}

	ruleRepo := database.NewGormRuleRepository(gormDB, cfg.DB.StoreTimeout)
	logRepo := database.NewGormAccessLogRepository(gormDB, cfg.DB.StoreTimeout)

	accessLogger := services.NewAccessLogger(logRepo, publisher)
	go func() {
		for err := range accessLogger.Errors() {
			slog.Error("Access log write failed", "error", err)
		}
	}()

	accessService := services.NewAccessService(ruleRepo, issuer, validator, accessLogger)
	provider := content.NewProvider(cfg.Content.Dir, contentTypes)

	v1Router := router.NewV1Router(router.Handlers{
		Access:  handlers.NewAccessHandler(accessService, provider),
		Admin:   handlers.NewAdminHandler(services.NewRuleService(ruleRepo, contentTypes, cfg.Security.BcryptCost), services.NewLogService(logRepo)),
		Catalog: handlers.NewCatalogHandler(services.NewCatalogService(ruleRepo, provider, contentTypes)),
		Health:  handlers.NewHealthHandler(sqlDB, cfg.Version),
	}, accessService, router.Options{
		AdminAPIKey:       cfg.Security.AdminAPIKey,
		CORS:              middleware.NewCORSConfig(cfg.Service),
		TrustProxyHeaders: cfg.Service.TrustProxyHeaders,
	})

	addr := net.JoinHostPort(cfg.Service.Host, cfg.Service.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      v1Router.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("Access API starting", "addr", addr, "contentDir", cfg.Content.Dir, "tokenValidity", cfg.Token.Validity)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Failed to start access API", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down access API...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}
	if err := accessLogger.Close(ctx); err != nil {
		slog.Error("Pending access log writes were abandoned", "error", err)
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			slog.Error("Failed to close Redis client", "error", err)
		}
	}
	if err := monitoring.Shutdown(ctx); err != nil {
		slog.Error("Failed to shut down metrics", "error", err)
	}
	if err := sqlDB.Close(); err != nil {
		slog.Error("Failed to close database connection", "error", err)
	}

	slog.Info("Access API exited")
}
