package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Velipetroll/Backend-Cloudinary/internal/api"
	"github.com/Velipetroll/Backend-Cloudinary/internal/cache"
	"github.com/Velipetroll/Backend-Cloudinary/internal/config"
	"github.com/Velipetroll/Backend-Cloudinary/internal/domain"
	"github.com/Velipetroll/Backend-Cloudinary/internal/ingest"
	"github.com/Velipetroll/Backend-Cloudinary/internal/service"
	"github.com/Velipetroll/Backend-Cloudinary/internal/storage"
	"github.com/Velipetroll/Backend-Cloudinary/pkg/logger"
)

func main() {
	cfg := config.Load()

	logger.Configure(cfg.Log.Level, cfg.Log.Format)
	if cfg.Server.Mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router, cleanup := buildRouter(cfg)
	defer cleanup()

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Log.Info().Str("port", cfg.Server.Port).Str("backend", cfg.Storage.Backend).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Error().Err(err).Msg("Server forced to shutdown")
	}

	logger.Log.Info().Msg("Server exiting")
}

// buildRouter refuses to start on incomplete credentials unless degraded mode
// is enabled, in which case every asset route reports ConfigIncomplete.
func buildRouter(cfg *config.Config) (*gin.Engine, func()) {
	if err := cfg.Validate(); err != nil {
		if errors.Is(err, domain.ErrConfigIncomplete) && cfg.Server.DegradedOnIncompleteConfig {
			logger.Log.Error().Err(err).Msg("configuration incomplete, serving in degraded mode")
			return api.NewUnavailableRouter(err, cfg.Server.AllowedOrigins), func() {}
		}
		logger.Log.Fatal().Err(err).Msg("Invalid configuration")
	}

	switch cfg.Storage.Backend {
	case config.BackendCloudinary:
		logger.Log.Info().Object("cloudinary", cfg.Cloudinary).Msg("Using Cloudinary backend")
	case config.BackendMinio:
		logger.Log.Info().Object("minio", cfg.Minio).Msg("Using MinIO backend")
	default:
		logger.Log.Warn().Msg("Using in-memory backend; assets are lost on restart")
	}

	gateway, err := storage.New(cfg)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to initialize storage gateway")
	}

	listingCache, err := cache.NewListingCache(cfg.Cache)
	if err != nil {
		logger.Log.Warn().Err(err).Msg("listing cache unavailable, continuing without it")
		listingCache = cache.NewNoopListingCache()
	}

	assetService := service.NewAssetService(gateway,
		service.WithCache(listingCache),
		service.WithListMode(storage.ListMode(cfg.Storage.ListMode)),
		service.WithListMax(cfg.Storage.ListMax),
	)

	ingestor := ingest.New(ingest.Options{
		MaxBytes:     cfg.Upload.MaxBytes,
		Staging:      ingest.Staging(cfg.Upload.Staging),
		TempDir:      cfg.Upload.TempDir,
		AllowedTypes: cfg.Upload.AllowedTypes,
	})

	router := api.NewRouter(&api.Services{
		AssetService: assetService,
		Ingestor:     ingestor,
	}, cfg.Server.AllowedOrigins)

	return router, func() {
		if err := listingCache.Close(); err != nil {
			logger.Log.Warn().Err(err).Msg("failed to close listing cache")
		}
	}
}
