package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/Velipetroll/Backend-Cloudinary/internal/api/handlers"
	"github.com/Velipetroll/Backend-Cloudinary/internal/api/middleware"
	"github.com/Velipetroll/Backend-Cloudinary/internal/ingest"
	"github.com/Velipetroll/Backend-Cloudinary/internal/service"
)

type Services struct {
	AssetService *service.AssetService
	Ingestor     *ingest.Ingestor
}

// NewRouter wires the upload, list and download routes. Each is reachable
// under its Spanish path, which existing clients use, and an English alias.
func NewRouter(services *Services, allowedOrigins []string) *gin.Engine {
	router := newEngine(allowedOrigins)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if services != nil && services.AssetService != nil && services.Ingestor != nil {
		assetHandler := handlers.NewAssetHandler(services.AssetService, services.Ingestor)

		router.POST("/upload", assetHandler.Upload)
		router.GET("/imagenes", assetHandler.List)
		router.GET("/list", assetHandler.List)
		router.GET("/descargar", assetHandler.Download)
		router.GET("/download", assetHandler.Download)
	}

	return router
}

// NewUnavailableRouter answers every asset route with cause, mapped through
// the usual error table (ConfigIncomplete becomes 503).
func NewUnavailableRouter(cause error, allowedOrigins []string) *gin.Engine {
	router := newEngine(allowedOrigins)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "degraded"})
	})

	unavailable := func(c *gin.Context) {
		handlers.RespondError(c, cause)
	}
	router.POST("/upload", unavailable)
	for _, path := range []string{"/imagenes", "/list", "/descargar", "/download"} {
		router.GET(path, unavailable)
	}

	return router
}

func newEngine(allowedOrigins []string) *gin.Engine {
	router := gin.New()
	router.Use(
		middleware.RequestID(),
		middleware.Logger(),
		middleware.Recovery(),
		cors.New(corsConfig(allowedOrigins)),
	)
	return router
}

func corsConfig(allowedOrigins []string) cors.Config {
	defaultOrigins := []string{"http://localhost:3000", "http://127.0.0.1:3000"}
	corsConfig := cors.Config{
		AllowOrigins:     defaultOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(allowedOrigins) > 0 {
		normalizedOrigins, allowAll := normalizeAllowedOrigins(allowedOrigins)
		if allowAll {
			// Any origin may call, but none may send credentials.
			corsConfig.AllowOrigins = nil
			corsConfig.AllowAllOrigins = true
			corsConfig.AllowCredentials = false
		} else if len(normalizedOrigins) > 0 {
			corsConfig.AllowOrigins = normalizedOrigins
		}
	}
	return corsConfig
}

func normalizeAllowedOrigins(origins []string) ([]string, bool) {
	var (
		parsed   []string
		allowAll bool
	)
	for _, origin := range origins {
		parts := strings.Split(origin, ",")
		for _, part := range parts {
			trimmed := strings.TrimRight(strings.TrimSpace(part), "/")
			if trimmed == "" {
				continue
			}
			if trimmed == "*" {
				allowAll = true
				continue
			}
			parsed = append(parsed, trimmed)
		}
	}
	return parsed, allowAll
}
