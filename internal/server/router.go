package server

import (
	"net/http"

	"github.com/abduss/assetgate/internal/asset"
	"github.com/abduss/assetgate/internal/config"
	"github.com/abduss/assetgate/internal/logger"
	"github.com/abduss/assetgate/internal/metrics"
	"github.com/gin-gonic/gin"
)

// Dependencies groups the services required by the HTTP router.
type Dependencies struct {
	Config       config.Config
	AssetService *asset.Service
}

// NewRouter builds a Gin engine with foundational middleware and routes.
func NewRouter(deps Dependencies) *gin.Engine {
	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(gin.Recovery())
	router.Use(logger.Middleware())
	router.Use(metrics.Middleware())
	router.Use(corsMiddleware())

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Not Found"})
	})
	router.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"success": false, "message": "Method Not Allowed"})
	})

	registerHealthRoutes(router, deps)
	if deps.Config.Metrics.PrometheusPath != "" {
		metrics.Register(router, deps.Config.Metrics.PrometheusPath)
	}

	api := router.Group("/api")
	if deps.AssetService != nil {
		asset.RegisterRoutes(api, deps.AssetService, deps.Config.Upload.MaxRequestBytes)
	}

	return router
}
