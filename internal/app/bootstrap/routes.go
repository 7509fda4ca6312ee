// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"
	"time"

	errorsfeature "github.com/dalemusser/stratacms/internal/app/features/errors"
	healthfeature "github.com/dalemusser/stratacms/internal/app/features/health"
	pagesfeature "github.com/dalemusser/stratacms/internal/app/features/pages"
	sectionsfeature "github.com/dalemusser/stratacms/internal/app/features/sections"
	translatefeature "github.com/dalemusser/stratacms/internal/app/features/translate"
	contentstore "github.com/dalemusser/stratacms/internal/app/store/content"
	"github.com/dalemusser/stratacms/internal/app/system/apicors"
	"github.com/dalemusser/stratacms/internal/app/system/metrics"
	"github.com/dalemusser/stratacms/internal/app/system/resolver"
	"github.com/dalemusser/stratacms/internal/app/system/translation"
	"github.com/dalemusser/waffle/config"
	"github.com/dalemusser/waffle/middleware"
	"github.com/dalemusser/waffle/pantry/fileserver"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// any Startup hooks have completed.
//
// Every route is part of the JSON API:
//   - reads are public; writes require auth.APIKeyAuth (Bearer api_key)
//   - apicors.Middleware answers preflight for the configured origins
//   - jsonutil writes every body, errors included
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	// Content writes bump the view cache generation.
	store := contentstore.New(deps.MongoDatabase, logger,
		contentstore.WithStorageTimeout(appCfg.StorageTimeout),
		contentstore.WithOnChange(deps.Cache.Invalidate),
	)
	res := resolver.New(store, deps.Cache, logger)
	translations := translation.New(store, deps.Translator, logger)

	// Create error logger for handlers.
	errLog := errorsfeature.NewErrorLogger(logger)

	reg := metrics.NewRegistry()

	r := chi.NewRouter()

	// ─────────────────────────────────────────────────────────────────────────────
	// Global Middleware (applies to ALL routes)
	// ─────────────────────────────────────────────────────────────────────────────

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	// Request timeout middleware: prevents requests from hanging indefinitely.
	r.Use(chimw.Timeout(30 * time.Second))

	// CORS middleware: must be early in the chain to handle preflight requests.
	r.Use(apicors.Middleware(appCfg.APICORSOrigins))

	// Security headers middleware: adds X-Frame-Options, X-Content-Type-Options, etc.
	r.Use(middleware.SecurityHeadersFromConfig(coreCfg))

	// Request counts and latency per route pattern.
	r.Use(metrics.Middleware)

	// ─────────────────────────────────────────────────────────────────────────────
	// Routes
	// ─────────────────────────────────────────────────────────────────────────────

	// Health check endpoints for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(deps.MongoClient, deps.Cache, logger)
	if taskRunner != nil {
		healthHandler.WithJobs(taskRunner)
	}
	healthfeature.MountRootEndpoints(r, healthHandler)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	r.Handle("/metrics", metrics.Handler(reg))

	// Uploaded section images (local storage only)
	if appCfg.StorageType == "local" || appCfg.StorageType == "" {
		r.Handle(appCfg.StorageLocalURL+"/*", fileserver.Handler(appCfg.StorageLocalURL, appCfg.StorageLocalPath))
	}

	pagesHandler := pagesfeature.NewHandler(store, res, errLog, logger)
	r.Mount("/pages", pagesfeature.Routes(pagesHandler, appCfg.APIKey, logger))

	sectionsHandler := sectionsfeature.NewHandler(store, deps.FileStorage, appCfg.UploadMaxBytes, appCfg.DefaultLanguage, errLog, logger)
	r.Mount("/sections", sectionsfeature.Routes(sectionsHandler, appCfg.APIKey, logger))

	translateHandler := translatefeature.NewHandler(store, translations, appCfg.APIKey, appCfg.DefaultLanguage, errLog, logger)
	r.Mount("/translate", translatefeature.Routes(translateHandler))

	// JSON error bodies for unknown routes and methods
	errorsHandler := errorsfeature.NewHandler()
	r.NotFound(errorsHandler.NotFound)
	r.MethodNotAllowed(errorsHandler.MethodNotAllowed)

	logger.Info("routes mounted",
		zap.Bool("view_cache", deps.Cache.Enabled()),
		zap.Bool("api_key_configured", appCfg.APIKey != ""),
		zap.Strings("cors_origins", appCfg.APICORSOrigins),
	)

	return r, nil
}
